// Package config loads and validates the aireview check configuration.
//
// The configuration file (ai-checks.yaml by default) declares three lists:
//
//   - definitions: named context sources, each a shell command or an
//     internal:<action> URI
//   - prompts: reviewer instructions, inline or read from a file
//   - checks: review rules binding a prompt, a model, and an ordered list of
//     context ids
//
// An optional settings block tunes overflow handling, parser defaults, command
// timeouts, redaction, and the response cache.
//
// Validation is strict. Unknown keys, dangling references, and checks without
// a prompt all fail with a [*ConfigError]; nothing is filled in silently.
// Use [Load] to read a file and [Parse] to validate raw YAML.
package config
