// Package debug provides leveled stderr logging in the style already used
// by this codebase's WHEP client: plain fmt.Fprintf to os.Stderr gated by a
// package-level verbosity flag, not a structured logging library.
package debug

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Verbose gates Logf output. Warnf/Errorf always print; only the
// debug-level Logf is silenced when Verbose is false.
var Verbose bool

var throttleMu sync.Mutex
var throttleState = make(map[string]time.Time)

// Logf prints a debug-level message only when Verbose is enabled.
func Logf(format string, v ...interface{}) {
	if Verbose {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", v...)
	}
}

// Warnf always prints a warning-level message.
func Warnf(format string, v ...interface{}) {
	fmt.Fprintf(os.Stderr, "[WARN] "+format+"\n", v...)
}

// Errorf always prints an error-level message.
func Errorf(format string, v ...interface{}) {
	fmt.Fprintf(os.Stderr, "[ERROR] "+format+"\n", v...)
}

// Infof always prints an info-level message.
func Infof(format string, v ...interface{}) {
	fmt.Fprintf(os.Stderr, "[INFO] "+format+"\n", v...)
}

// LogfPeriodic prints a debug-level message at most once per interval for
// each key, to avoid flooding stderr from a hot loop.
func LogfPeriodic(key string, interval time.Duration, format string, v ...interface{}) {
	if !Verbose {
		return
	}
	if interval <= 0 {
		Logf(format, v...)
		return
	}

	now := time.Now()

	throttleMu.Lock()
	last, exists := throttleState[key]
	if exists && now.Sub(last) < interval {
		throttleMu.Unlock()
		return
	}
	throttleState[key] = now
	throttleMu.Unlock()

	Logf(format, v...)
}
