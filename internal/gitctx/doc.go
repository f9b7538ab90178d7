// Package gitctx runs git for the review pipeline.
//
// Every call takes a [ReviewContext] naming the diff target and working
// directory, so nothing depends on the process environment. The package
// lists changed files, produces diffs, filters them by include/exclude
// glob patterns, and reads commit messages for skip tags.
package gitctx
