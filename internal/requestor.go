// Copyright (c) 2025 the whambam.dev authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package internal

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// requestOverheadBytes approximates the request line, protocol version
// and delimiters that aren't covered by the summed header and body sizes.
const requestOverheadBytes = 50

// Requestor runs the pool of workers that execute Jobs against the
// target. Workers share one receive end of the job channel; the
// concurrency cap is additionally enforced by a counting semaphore so the
// number of in-flight requests never exceeds Concurrency even if the
// queue briefly overshoots.
type Requestor struct {
	// Client is the shared HTTP client. Read-only.
	Client *http.Client
	// JobC is the job queue. Workers exit when it closes.
	JobC <-chan Job
	// MetricC receives one MetricRecord per attempt.
	MetricC chan<- MetricRecord
	// State carries the running flag checked at each loop top.
	State *RunState
	// Concurrency is the worker count.
	Concurrency int
	// RateLimit is the per-worker QPS cap. 0 means unlimited.
	RateLimit float64
}

// Start launches the worker pool and blocks until every worker has
// exited. Workers exit when the job channel drains and closes, when the
// running flag clears, or when ctx is cancelled while waiting.
func (r *Requestor) Start(ctx context.Context) {
	sem := make(chan struct{}, r.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < r.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.worker(ctx, id, sem)
		}(i)
	}
	wg.Wait()
	log.Debug().Msg("requestor: all workers exited")
}

func (r *Requestor) worker(ctx context.Context, id int, sem chan struct{}) {
	var limiter *rate.Limiter
	if r.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.RateLimit), 1)
	}

	for {
		if !r.State.Running() {
			log.Debug().Int("worker", id).Msg("requestor: run stopped, worker exiting")
			return
		}

		var job Job
		var ok bool
		select {
		case <-ctx.Done():
			return
		case job, ok = <-r.JobC:
			if !ok {
				log.Debug().Int("worker", id).Msg("requestor: job queue closed, worker exiting")
				return
			}
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}
		if !r.State.Running() {
			return
		}

		sem <- struct{}{}
		metric := r.executeRequest(job)
		r.send(metric)
		<-sem
	}
}

// send forwards a record to the metric channel. While the run is live the
// consumer is guaranteed to be draining, so a blocking send is safe.
// After shutdown the consumer may be gone; a full channel then drops the
// record rather than wedging the worker.
func (r *Requestor) send(metric MetricRecord) {
	if r.State.Running() {
		r.MetricC <- metric
		return
	}
	select {
	case r.MetricC <- metric:
	default:
		log.Debug().Msg("requestor: metric channel unavailable after shutdown, record dropped")
	}
}

// executeRequest issues one attempt and always produces a MetricRecord.
// Failures before a response arrives (DNS, connect, TLS, timeout) produce
// status 0 with the measured time to failure; a failure while reading the
// response body keeps the response's status and is an error; responses
// with status 400 or higher are errors with their real status.
func (r *Requestor) executeRequest(job Job) MetricRecord {
	metric := MetricRecord{
		BytesSent:    estimateRequestSize(job),
		DispatchedAt: job.DispatchedAt,
	}

	ctx := context.Background()
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	var body io.Reader
	if len(job.Body) > 0 {
		body = bytes.NewReader(job.Body)
	}
	req, err := http.NewRequestWithContext(ctx, job.Method, job.URL, body)
	if err != nil {
		metric.IsError = true
		return metric
	}
	for _, h := range job.Headers {
		req.Header.Add(h.Name, h.Value)
	}
	if job.HasBasicAuth {
		req.SetBasicAuth(job.BasicAuthUser, job.BasicAuthPass)
	}

	start := time.Now()
	resp, err := r.Client.Do(req)
	if err != nil {
		metric.LatencyMillis = millis(time.Since(start))
		metric.IsError = true
		return metric
	}

	received, readErr := io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	metric.LatencyMillis = millis(time.Since(start))
	metric.StatusCode = resp.StatusCode
	metric.BytesReceived = received
	metric.IsError = resp.StatusCode >= http.StatusBadRequest || readErr != nil
	return metric
}

// estimateRequestSize approximates the textual size of the request as it
// would appear on the wire. The client does not expose exact counts, so
// this sums the method, path, query, headers and body plus a fixed
// overhead.
func estimateRequestSize(job Job) int64 {
	size := int64(len(job.Method))
	if u, err := url.Parse(job.URL); err == nil {
		size += int64(len(u.Path)) + int64(len(u.RawQuery))
	}
	for _, h := range job.Headers {
		size += int64(len(h.Name)) + int64(len(h.Value)) + 4
	}
	size += int64(len(job.Body))
	return size + requestOverheadBytes
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
