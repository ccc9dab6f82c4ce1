// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides leveled logging for the runner binaries. Level 0 is
// printed by default; higher levels are enabled with the -v flag.
package log

import (
	"flag"
	"fmt"
	golog "log"
	"os"
	"sync/atomic"
)

var (
	flagV = flag.Int("v", 0, "verbosity of logging output")

	level atomic.Int32
)

func init() {
	golog.SetFlags(golog.Ltime | golog.Lmicroseconds)
}

// EnableVerbose applies the -v flag value; call after flag.Parse.
func EnableVerbose() {
	level.Store(int32(*flagV))
}

// SetLevel overrides the current verbosity level.
func SetLevel(v int) {
	level.Store(int32(v))
}

// V reports whether messages at verbosity v are printed.
func V(v int) bool {
	return v <= int(level.Load())
}

// Logf prints a message if verbosity v is enabled.
func Logf(v int, msg string, args ...interface{}) {
	if V(v) {
		golog.Printf(msg, args...)
	}
}

// Errorf prints a message unconditionally to stderr.
func Errorf(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
}

// Fatalf prints a message and terminates the process with a failure code.
func Fatalf(msg string, args ...interface{}) {
	golog.Fatalf(msg, args...)
}
