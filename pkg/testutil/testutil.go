package testutil

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// IterCount scales randomized test iterations down for -short runs.
func IterCount() int {
	iters := 1000
	if testing.Short() {
		iters /= 10
	}
	return iters
}

// RandSource returns a time-seeded random source, overridable with the
// MADKV_SEED env var for reproducing failures.
func RandSource(t *testing.T) rand.Source {
	seed := time.Now().UnixNano()
	if fixed := os.Getenv("MADKV_SEED"); fixed != "" {
		seed, _ = strconv.ParseInt(fixed, 0, 64)
	}
	t.Logf("seed=%v", seed)
	return rand.NewSource(seed)
}
