package internal

import (
	"sync/atomic"
	"time"

	"github.com/cloudy-native/whambam.dev/api"
)

// Job is a single request directive. Jobs are produced by the job source
// and consumed exactly once by one worker.
type Job struct {
	URL           string
	Method        string
	Headers       []api.Header
	Body          []byte
	BasicAuthUser string
	BasicAuthPass string
	HasBasicAuth  bool
	// Timeout bounds this attempt. 0 means no timeout.
	Timeout time.Duration
	// DispatchedAt is stamped when the job is pushed onto the queue.
	DispatchedAt time.Time
}

// MetricRecord describes the outcome of one request attempt.
type MetricRecord struct {
	// LatencyMillis is the wall-clock time from just before send to
	// response complete, or to the failure.
	LatencyMillis float64
	// StatusCode is 0 when the attempt never produced a response.
	StatusCode int
	// IsError is true for transport failures and for responses with a
	// status of 400 or higher.
	IsError bool
	// BytesSent is an estimate of the textual request size.
	BytesSent int64
	// BytesReceived is the response body length.
	BytesReceived int64
	// DispatchedAt is copied from the Job.
	DispatchedAt time.Time
}

// RunState is shared by every component of a run. The running flag flips
// to false exactly once, under any of: request quota reached, deadline
// reached, external cancellation.
type RunState struct {
	running atomic.Bool
	// Start is the run start instant.
	Start time.Time
	// Deadline is the end-of-run instant for duration-bounded runs,
	// zero otherwise.
	Deadline time.Time
}

// NewRunState returns a RunState in the running state. A nonzero duration
// sets the deadline to start + duration.
func NewRunState(start time.Time, duration time.Duration) *RunState {
	rs := &RunState{Start: start}
	if duration > 0 {
		rs.Deadline = start.Add(duration)
	}
	rs.running.Store(true)
	return rs
}

// Running reports whether the run is still live.
func (rs *RunState) Running() bool {
	return rs.running.Load()
}

// Stop clears the running flag. It is idempotent and reports whether this
// call was the one that cleared it.
func (rs *RunState) Stop() bool {
	return rs.running.CompareAndSwap(true, false)
}
