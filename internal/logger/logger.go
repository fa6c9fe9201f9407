// Package logger provides leveled logging for the submittal reviewer.
//
// Debug, Info and Section output is shown only in verbose mode (--verbose)
// and traces the index build and review pipeline. Warnings and errors are
// always written. Output goes to stderr so it never mixes with command
// results written to stdout.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu         sync.RWMutex
	verbose    bool
	timestamps bool
	output     io.Writer = os.Stderr

	// writeMu serialises writes so concurrent reviews never interleave lines.
	writeMu sync.Mutex
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetTimestamps prefixes every line with an RFC 3339 timestamp.
// Long-running servers enable this; one-shot commands leave it off.
func SetTimestamps(v bool) {
	mu.Lock()
	defer mu.Unlock()
	timestamps = v
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(true, "[DEBUG] ", format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	logf(true, "[INFO] ", format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	logf(false, "[WARN] ", format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	logf(false, "[ERROR] ", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		writeMu.Lock()
		fmt.Fprintf(output, "\n=== %s ===\n", name)
		writeMu.Unlock()
	}
}

// Stage logs a review state transition.
func Stage(reviewID string, from, to fmt.Stringer) {
	logf(true, "[DEBUG] ", "review %s: %s -> %s", reviewID, from, to)
}

func logf(verboseOnly bool, level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verboseOnly && !verbose {
		return
	}
	prefix := level
	if timestamps {
		prefix = time.Now().Format(time.RFC3339) + " " + level
	}
	writeMu.Lock()
	fmt.Fprintf(output, prefix+format+"\n", args...)
	writeMu.Unlock()
}
