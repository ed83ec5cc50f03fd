// Package log writes leveled messages to stderr. Debug output can be
// switched on and off at runtime from any goroutine.
package log

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/contentsquare/atomiccell/cell"
)

var (
	stdLogFlags      = log.LstdFlags | log.LUTC
	stdDebugLogFlags = log.LstdFlags | log.Lshortfile | log.LUTC
	outputCallDepth  = 2

	DebugLogger = log.New(os.Stderr, "DEBUG: ", stdDebugLogFlags)
	InfoLogger  = log.New(os.Stderr, "INFO: ", stdLogFlags)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", stdLogFlags)
	FatalLogger = log.New(os.Stderr, "FATAL: ", log.LstdFlags|log.Llongfile|log.LUTC)
)

// loggers whose output may be suppressed in tests
var suppressible = []*log.Logger{DebugLogger, InfoLogger, ErrorLogger}

// debug is 1 while debug output is enabled.
var debug cell.Int32

// SuppressOutput discards everything but fatal messages while suppress
// is true. Used by tests.
func SuppressOutput(suppress bool) {
	var w io.Writer = os.Stderr
	if suppress {
		w = io.Discard
	}
	for _, l := range suppressible {
		l.SetOutput(w)
	}
}

// SetDebug enables or disables debug output. Info and error messages
// gain the caller's file and line while it is enabled.
func SetDebug(val bool) {
	flags, v := stdLogFlags, int32(0)
	if val {
		flags, v = stdDebugLogFlags, 1
	}
	InfoLogger.SetFlags(flags)
	ErrorLogger.SetFlags(flags)
	debug.SetRelease(v)
}

// IsDebug reports whether debug output is enabled.
func IsDebug() bool {
	return debug.GetAcquire() != 0
}

func Debugf(format string, args ...interface{}) {
	if !IsDebug() {
		return
	}
	DebugLogger.Output(outputCallDepth, fmt.Sprintf(format, args...))
}

func Infof(format string, args ...interface{}) {
	InfoLogger.Output(outputCallDepth, fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	ErrorLogger.Output(outputCallDepth, fmt.Sprintf(format, args...))
}

// Fatalf logs the message and exits with status 1.
func Fatalf(format string, args ...interface{}) {
	FatalLogger.Output(outputCallDepth, fmt.Sprintf(format, args...))
	os.Exit(1)
}
