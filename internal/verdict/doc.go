// Package verdict turns raw reviewer-model output into a structured
// [Verdict] with status PASS, FAIL, FIX or MANUAL.
//
// Model output is unreliable, so [Parse] tries several extraction
// strategies and normalizes whatever JSON it finds into one canonical
// shape. A reply that cannot be read never passes: it becomes MANUAL by
// default, or FAIL when [Options.Unparseable] says so.
package verdict
