// Package redact scrubs secrets from a review payload before it leaves the
// process.
//
// Detection is heuristic: API keys, JWTs, private key headers, AWS keys,
// bearer tokens, database URLs with inline credentials, and vendor tokens
// (Anthropic, OpenAI, GitHub, Slack). Files matching settings.redact_paths
// are blanked section by section instead of being scanned.
package redact
