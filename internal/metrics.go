// Copyright (c) 2025 the whambam.dev authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package internal

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"

	"github.com/cloudy-native/whambam.dev/api"
)

const (
	// Latency histogram domain, in microseconds: 1µs to 60s at three
	// significant digits.
	histogramMinMicros = 1
	histogramMaxMicros = 60_000_000
	histogramSigFigs   = 3

	// foldInterval is the number of completed requests between
	// drain-and-fold passes. The worker whose increment crosses the
	// boundary pays for the fold, amortizing the histogram lock.
	foldInterval = 100
)

// noSample is the min-latency sentinel. It reads as "no samples yet" and
// loses every compare-and-set against a real latency.
const noSample = math.MaxUint64

// Accumulator folds MetricRecords into live run statistics. Record is
// safe to call from any number of workers concurrently; Snapshot is meant
// for a single low-rate reader and never blocks the append path on more
// than the brief status-map read.
//
// Counters and min/max/percentile cells are atomics. The histogram and
// status map sit behind a read-write lock that is only taken for batched
// folds, so the common append path touches no locks beyond the pending
// queue's.
type Accumulator struct {
	start time.Time
	// endNanos is the frozen end-of-run instant as nanoseconds since
	// start. 0 while the run is live.
	endNanos atomic.Int64

	completed     atomic.Int64
	errors        atomic.Int64
	bytesSent     atomic.Int64
	bytesReceived atomic.Int64

	// Latency scalars in microseconds.
	minMicros atomic.Uint64
	maxMicros atomic.Uint64
	p50Micros atomic.Uint64
	p90Micros atomic.Uint64
	p95Micros atomic.Uint64
	p99Micros atomic.Uint64

	// pending holds records queued for the next fold. Pushes never fail.
	pendingMu sync.Mutex
	pending   []MetricRecord

	// foldMu guards hist and statusCounts.
	foldMu       sync.RWMutex
	hist         *hdrhistogram.Histogram
	statusCounts map[int]int64
}

// NewAccumulator returns an empty accumulator whose elapsed clock starts
// at start.
func NewAccumulator(start time.Time) *Accumulator {
	a := &Accumulator{
		start:        start,
		hist:         hdrhistogram.New(histogramMinMicros, histogramMaxMicros, histogramSigFigs),
		statusCounts: make(map[int]int64),
	}
	a.minMicros.Store(noSample)
	return a
}

// Record absorbs one request outcome. Counters update immediately; the
// latency distribution and status tally are folded in batches of
// foldInterval records.
func (a *Accumulator) Record(m MetricRecord) {
	completed := a.completed.Add(1)
	a.bytesSent.Add(m.BytesSent)
	a.bytesReceived.Add(m.BytesReceived)
	if m.IsError {
		a.errors.Add(1)
	}

	micros := latencyMicros(m.LatencyMillis)
	for {
		cur := a.minMicros.Load()
		if micros >= cur || a.minMicros.CompareAndSwap(cur, micros) {
			break
		}
	}
	for {
		cur := a.maxMicros.Load()
		if micros <= cur || a.maxMicros.CompareAndSwap(cur, micros) {
			break
		}
	}

	a.pendingMu.Lock()
	a.pending = append(a.pending, m)
	a.pendingMu.Unlock()

	if completed%foldInterval == 0 {
		a.drainAndFold()
	}
}

// drainAndFold moves everything queued since the last fold into the
// histogram and status map, then republishes the percentile cells.
func (a *Accumulator) drainAndFold() {
	a.pendingMu.Lock()
	batch := a.pending
	a.pending = nil
	a.pendingMu.Unlock()

	if len(batch) > 0 {
		a.foldMu.Lock()
		for _, m := range batch {
			// Values are clamped into the histogram domain, so
			// recording cannot fail.
			_ = a.hist.RecordValue(int64(latencyMicros(m.LatencyMillis)))
			if m.StatusCode > 0 {
				a.statusCounts[m.StatusCode]++
			}
		}
		a.foldMu.Unlock()
	}

	a.publishPercentiles()
}

func (a *Accumulator) publishPercentiles() {
	a.foldMu.RLock()
	p50 := a.hist.ValueAtQuantile(50)
	p90 := a.hist.ValueAtQuantile(90)
	p95 := a.hist.ValueAtQuantile(95)
	p99 := a.hist.ValueAtQuantile(99)
	a.foldMu.RUnlock()

	a.p50Micros.Store(uint64(p50))
	a.p90Micros.Store(uint64(p90))
	a.p95Micros.Store(uint64(p95))
	a.p99Micros.Store(uint64(p99))
}

// FinalDrain folds every remaining queued record and publishes exact
// percentiles. Call once the metric channel has drained; a snapshot taken
// afterwards is exact.
func (a *Accumulator) FinalDrain() {
	a.drainAndFold()
}

// MarkComplete freezes the elapsed clock. Idempotent.
func (a *Accumulator) MarkComplete(end time.Time) {
	a.endNanos.CompareAndSwap(0, end.Sub(a.start).Nanoseconds())
}

// Completed returns the live completed-request count.
func (a *Accumulator) Completed() int64 {
	return a.completed.Load()
}

// Elapsed returns time since start, or the frozen run duration once
// MarkComplete has been called.
func (a *Accumulator) Elapsed() time.Duration {
	if end := a.endNanos.Load(); end > 0 {
		return time.Duration(end)
	}
	return time.Since(a.start)
}

// Snapshot returns a value copy of the current statistics.
func (a *Accumulator) Snapshot() api.Snapshot {
	s := api.Snapshot{
		Completed:     a.completed.Load(),
		Errors:        a.errors.Load(),
		BytesSent:     a.bytesSent.Load(),
		BytesReceived: a.bytesReceived.Load(),
		Elapsed:       a.Elapsed(),
	}
	s.Success = s.Completed - s.Errors

	if min := a.minMicros.Load(); min != noSample {
		s.HasSamples = true
		s.MinLatency = float64(min) / 1000.0
		s.MaxLatency = float64(a.maxMicros.Load()) / 1000.0
		s.P50 = float64(a.p50Micros.Load()) / 1000.0
		s.P90 = float64(a.p90Micros.Load()) / 1000.0
		s.P95 = float64(a.p95Micros.Load()) / 1000.0
		s.P99 = float64(a.p99Micros.Load()) / 1000.0
	}

	s.StatusCounts = a.statusCountsCopy()

	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.Throughput = float64(s.Completed) / secs
	}
	return s
}

func (a *Accumulator) statusCountsCopy() map[int]int64 {
	a.foldMu.RLock()
	defer a.foldMu.RUnlock()
	counts := make(map[int]int64, len(a.statusCounts))
	for status, n := range a.statusCounts {
		counts[status] = n
	}
	return counts
}

// latencyMicros converts a millisecond latency to integer microseconds
// clamped into the histogram domain.
func latencyMicros(millis float64) uint64 {
	micros := int64(millis * 1000.0)
	if micros < histogramMinMicros {
		return histogramMinMicros
	}
	if micros > histogramMaxMicros {
		return histogramMaxMicros
	}
	return uint64(micros)
}
