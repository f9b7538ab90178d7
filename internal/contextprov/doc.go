// Package contextprov gathers the text context sent to a reviewer model.
//
// A [Provider] runs each context definition: shell commands through
// sh -c with a timeout, and internal:<action> commands from a closed
// registry (git_diff, changed_files_content, push_diff). Failures are
// reported as [*CommandError].
//
// [Build] assembles a check's context blocks in declared order and
// enforces its character budget with the configured overflow policy.
package contextprov
