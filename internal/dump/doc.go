// Package dump saves each check's request payload and parsed verdict under
// .aireview/debug when --dump or --verbose is set.
package dump
