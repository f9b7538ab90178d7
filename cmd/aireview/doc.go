// Command aireview gates git pushes on AI code review.
//
// Usage:
//
//	aireview init                  write a starter ai-checks.yaml
//	aireview run [--check id]      review staged changes (or AI_DIFF_TARGET)
//	aireview install               add the pre-push hook
//	aireview revert [patch]        undo an applied fix
//
// Run "aireview help" for the full command list.
package main
