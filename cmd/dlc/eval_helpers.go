package main

import (
	"log"
	"time"
)

// stdLogger adapts internal/eval's progress logging (which speaks
// stdlib *log.Logger, matching the teacher's own RecomputeRules) to this
// CLI's output, writing through standard error.
func stdLogger() *log.Logger {
	return log.Default()
}

// progressInterval returns how often a long-running recursive stratum
// should report progress: only when --debug is set, mirroring the
// teacher's verbose-gated logging.
func progressInterval() time.Duration {
	if debug {
		return 10 * time.Second
	}
	return 0
}
