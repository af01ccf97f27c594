// Package sumplog centralizes the charmbracelet/log setup shared by
// every cmd/ entrypoint. Library packages never reach for a global
// logger; they accept a *log.Logger (or a narrower interface) and the
// caller decides verbosity.
package sumplog

import (
	"os"

	"github.com/charmbracelet/log"
)

// New builds a logger writing to stderr at the given level, with a
// timestamp and the given name as a static "component" field.
func New(name string, debug bool) *log.Logger {
	lvl := log.InfoLevel
	if debug {
		lvl = log.DebugLevel
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
	})

	return logger.With("component", name)
}

// Discard is used by tests and library defaults where no caller
// supplied a logger.
func Discard() *log.Logger {
	logger := log.New(os.Stderr)
	logger.SetLevel(log.FatalLevel + 1)

	return logger
}
