package config

import "fmt"

// ConfigError reports a malformed or inconsistent configuration.
// It is always fatal: no check runs against a config that failed to load.
type ConfigError struct {
	Msg   string
	Cause error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Cause }

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}
