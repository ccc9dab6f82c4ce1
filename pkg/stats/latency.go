// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stats

import (
	"sync"
	"time"

	"github.com/VividCortex/gohistogram"
)

// Streaming histogram resolution; enough bins for a stable p99 estimate.
const histogramBins = 80

type opRecord struct {
	hist  *gohistogram.NumericHistogram
	count int
	sumUs float64
	minUs float64
	maxUs float64
}

// LatencyTracker measures per-operation latencies of one driver using
// streaming histograms, so p99 estimation needs no sample retention.
type LatencyTracker struct {
	mu    sync.Mutex
	ops   map[string]*opRecord
	start time.Time
}

func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{
		ops:   make(map[string]*opRecord),
		start: time.Now(),
	}
}

// Record adds one completed operation of the given type.
func (lt *LatencyTracker) Record(op string, elapsed time.Duration) {
	us := float64(elapsed.Microseconds())
	lt.mu.Lock()
	defer lt.mu.Unlock()
	rec := lt.ops[op]
	if rec == nil {
		rec = &opRecord{
			hist:  gohistogram.NewHistogram(histogramBins),
			minUs: us,
			maxUs: us,
		}
		lt.ops[op] = rec
	}
	rec.hist.Add(us)
	rec.count++
	rec.sumUs += us
	if us < rec.minUs {
		rec.minUs = us
	}
	if us > rec.maxUs {
		rec.maxUs = us
	}
}

// Snapshot folds the tracked figures into a single-client Stats record.
func (lt *LatencyTracker) Snapshot() *Stats {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	s := New()
	s.Merged = 1
	s.TotalMs = float64(time.Since(lt.start).Milliseconds())
	total := 0
	for op, rec := range lt.ops {
		s.NumOps[op] = rec.count
		s.LatAvg[op] = rec.sumUs / float64(rec.count)
		s.LatMin[op] = rec.minUs
		s.LatMax[op] = rec.maxUs
		s.LatP99[op] = rec.hist.Quantile(0.99)
		total += rec.count
	}
	if s.TotalMs > 0 {
		s.TputAll = float64(total) / (s.TotalMs / 1000.0)
	}
	return s
}
