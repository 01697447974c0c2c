// Package common holds small helpers shared across tiny-make's packages:
// logging and a couple of filesystem utilities. Kept deliberately thin —
// no third-party logging library appears anywhere in the examined corpus,
// so a verbosity-gated wrapper around the standard library's log package
// is the idiomatic choice here, not a stopgap.
package common

import (
	"fmt"
	"log"
	"os"
	"time"
)

// Logger is a verbosity-gated wrapper around the standard logger.
// Info messages below the configured verbosity are dropped; errors are
// always printed, since tiny-make is a short-lived CLI process, not a
// daemon, and has no log file to rotate.
type Logger struct {
	impl      *log.Logger
	verbosity int
}

// NewLogger builds a Logger writing to stderr, gated at the given verbosity.
// verbosity 0 means only -v-independent Info(0, ...) calls are printed;
// higher values also unlock Info(1, ...) and Info(2, ...) calls.
func NewLogger(verbose bool) *Logger {
	v := 0
	if verbose {
		v = 2
	}
	return &Logger{
		impl:      log.New(os.Stderr, "", 0),
		verbosity: v,
	}
}

func formatStr(prefix string, v ...interface{}) string {
	return fmt.Sprintf("%s [%s] %s", time.Now().Format("15:04:05"), prefix, fmt.Sprintln(v...))
}

// Info prints v if the logger's verbosity is at least the given level.
func (l *Logger) Info(verbosity int, v ...interface{}) {
	if l.verbosity >= verbosity {
		_ = l.impl.Output(0, formatStr("INFO", v...))
	}
}

// Error always prints, regardless of verbosity.
func (l *Logger) Error(v ...interface{}) {
	_ = l.impl.Output(0, formatStr("ERROR", v...))
}
