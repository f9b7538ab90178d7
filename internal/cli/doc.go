// Package cli builds the cobra command tree for the aireview binary.
//
// Commands: run, init, lint, install, uninstall, revert, cache, models and
// version. Flags are merged with AIREVIEW_* environment variables through
// viper, a .env file is loaded when present, and every command reports
// through exit codes so a git hook can gate on them.
package cli
