// Package patch saves the full-file fixes suggested by FIX verdicts as
// unified diffs under .aireview/patches, and reverses applied ones with
// git apply --reverse.
package patch
