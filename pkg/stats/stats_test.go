// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stats

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josehu07/madkv/pkg/testutil"
)

func singleClient(runMs, tput float64, ops int, avg, minLat, maxLat, p99 float64) *Stats {
	s := New()
	s.Merged = 1
	s.TotalMs = runMs
	s.TputAll = tput
	s.NumOps["READ"] = ops
	s.LatAvg["READ"] = avg
	s.LatMin["READ"] = minLat
	s.LatMax["READ"] = maxLat
	s.LatP99["READ"] = p99
	return s
}

func TestStatsMergeRules(t *testing.T) {
	merged := New()
	merged.Merge(singleClient(1000, 50, 500, 100, 10, 900, 800))
	merged.Merge(singleClient(2000, 70, 700, 200, 20, 950, 850))

	assert.Equal(t, 2, merged.Merged)
	assert.Equal(t, 2000.0, merged.TotalMs)      // max
	assert.Equal(t, 120.0, merged.TputAll)       // sum
	assert.Equal(t, 1200, merged.NumOps["READ"]) // sum
	// Averages are weighted by each side's operation count.
	assert.Equal(t, (100.0*500+200.0*700)/1200, merged.LatAvg["READ"])
	assert.Equal(t, 10.0, merged.LatMin["READ"])
	assert.Equal(t, 950.0, merged.LatMax["READ"])
	assert.Equal(t, 850.0, merged.LatP99["READ"])
}

func TestStatsMergeIntoFresh(t *testing.T) {
	single := singleClient(1000, 50, 500, 100, 10, 900, 800)
	merged := New()
	merged.Merge(single)
	assert.Equal(t, 1, merged.Merged)
	assert.Equal(t, single.TotalMs, merged.TotalMs)

	// Merging must not alias the source's maps.
	merged.NumOps["READ"] = 9999
	assert.Equal(t, 500, single.NumOps["READ"])

	// Merging an unfilled record is a no-op.
	merged.Merge(New())
	assert.Equal(t, 1, merged.Merged)
}

// Merging N single-client records keeps every field within the bounds of
// the individual inputs.
func TestStatsMergeBounds(t *testing.T) {
	rnd := rand.New(testutil.RandSource(t))
	const n = 8

	merged := New()
	var sumOps int
	var sumTput float64
	loAvg, hiAvg := 1e18, 0.0
	loMin, hiMax := 1e18, 0.0
	for i := 0; i < n; i++ {
		avg := 50 + rnd.Float64()*100
		minLat := rnd.Float64() * 50
		maxLat := 200 + rnd.Float64()*100
		ops := 100 + rnd.Intn(900)
		tput := 10 + rnd.Float64()*90
		sumOps += ops
		sumTput += tput
		loAvg = min(loAvg, avg)
		hiAvg = max(hiAvg, avg)
		loMin = min(loMin, minLat)
		hiMax = max(hiMax, maxLat)
		merged.Merge(singleClient(1000, tput, ops, avg, minLat, maxLat, maxLat))
	}
	assert.Equal(t, n, merged.Merged)
	assert.Equal(t, sumOps, merged.NumOps["READ"])
	assert.InDelta(t, sumTput, merged.TputAll, 1e-6)
	assert.GreaterOrEqual(t, merged.LatAvg["READ"], loAvg)
	assert.LessOrEqual(t, merged.LatAvg["READ"], hiAvg)
	assert.Equal(t, loMin, merged.LatMin["READ"])
	assert.Equal(t, hiMax, merged.LatMax["READ"])
	assert.Equal(t, hiMax, merged.LatP99["READ"])
}

func TestStatsMergeDisjointOps(t *testing.T) {
	a := singleClient(1000, 50, 500, 100, 10, 900, 800)
	b := New()
	b.Merged = 1
	b.NumOps["SCAN"] = 10
	b.LatAvg["SCAN"] = 5000
	b.LatMin["SCAN"] = 100
	b.LatMax["SCAN"] = 9000
	b.LatP99["SCAN"] = 8000

	a.Merge(b)
	assert.Equal(t, 500, a.NumOps["READ"])
	assert.Equal(t, 10, a.NumOps["SCAN"])
	assert.Equal(t, 5000.0, a.LatAvg["SCAN"])
	assert.Equal(t, []string{"READ", "SCAN"}, a.Ops())
}

func TestLatencyTracker(t *testing.T) {
	lt := NewLatencyTracker()
	for i := 0; i < 100; i++ {
		lt.Record("Get", time.Millisecond)
	}
	lt.Record("Put", 2*time.Millisecond)
	lt.Record("Put", 4*time.Millisecond)

	s := lt.Snapshot()
	require.Equal(t, 1, s.Merged)
	assert.Equal(t, 100, s.NumOps["Get"])
	assert.Equal(t, 2, s.NumOps["Put"])
	assert.InDelta(t, 1000.0, s.LatAvg["Get"], 1.0)
	assert.InDelta(t, 1000.0, s.LatP99["Get"], 1.0)
	assert.Equal(t, 1000.0, s.LatMin["Get"])
	assert.Equal(t, 1000.0, s.LatMax["Get"])
	assert.Equal(t, 2000.0, s.LatMin["Put"])
	assert.Equal(t, 4000.0, s.LatMax["Put"])
	assert.InDelta(t, 3000.0, s.LatAvg["Put"], 1.0)
}

func TestStatsFormat(t *testing.T) {
	s := singleClient(1000, 50, 500, 100, 10, 900, 800)
	var sb strings.Builder
	s.Format(&sb, "Load")
	out := sb.String()
	assert.Contains(t, out, "[Load]")
	assert.Contains(t, out, "Throughput")
	assert.Contains(t, out, "READ")
}
