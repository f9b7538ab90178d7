// Package review runs configured checks against a reviewer model.
//
// Each check moves through PENDING, CONTEXT_BUILDING, INVOKING and PARSING
// to one of PASS, FAIL, FIX or MANUAL, then DONE. A check whose context is
// empty is SKIPPED without calling the model, and a context error makes it
// FAILED, also without a call. SKIPPED and MANUAL do not fail the run. FIX
// suggestions are saved as patches and still count as failures.
//
// The engine is the only place that ties the other packages together:
// contextprov builds the payload, redact scrubs it, cache and providers
// produce the raw reply, verdict parses it, and patch and dump record the
// outcome. The human-readable report is printed with fatih/color.
package review
