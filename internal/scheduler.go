// Copyright (c) 2025 the whambam.dev authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package internal

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cloudy-native/whambam.dev/api"
)

// Scheduler owns a load test run from client construction through the
// final report: it feeds the job queue, spawns the worker pool and the
// metric consumer, observes the stop conditions, and assembles the
// RunReport.
type Scheduler struct {
	config api.TestConfig
	client *http.Client
	accum  *Accumulator
	state  *RunState
}

// NewScheduler validates and normalizes the configuration and builds the
// shared HTTP client. Any error it returns is a configuration error; no
// goroutine has been spawned yet.
func NewScheduler(config api.TestConfig) (*Scheduler, error) {
	config.Normalize()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := NewClient(config)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	return &Scheduler{
		config: config,
		client: client,
		accum:  NewAccumulator(start),
		state:  NewRunState(start, config.Duration),
	}, nil
}

// Config returns the normalized run configuration.
func (s *Scheduler) Config() api.TestConfig {
	return s.config
}

// Snapshot exposes live statistics for progress displays. Safe to call
// concurrently with Run.
func (s *Scheduler) Snapshot() api.Snapshot {
	return s.accum.Snapshot()
}

// Run executes the load test and blocks until it finishes. The run ends
// when the request quota is met, the duration deadline fires, or ctx is
// cancelled, whichever happens first; in every case the report reflects
// whatever was captured.
func (s *Scheduler) Run(ctx context.Context) (api.RunReport, error) {
	config := s.config
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobC := make(chan Job, 2*config.Concurrency)
	metricC := make(chan MetricRecord, 2*config.Concurrency)
	quotaC := make(chan struct{})
	handlerDoneC := make(chan struct{})
	handlerStopC := make(chan struct{})

	handler := &ResponseHandler{
		MetricC:  metricC,
		Accum:    s.accum,
		NumRqsts: int64(config.NumRequests),
		QuotaC:   quotaC,
		DoneC:    handlerDoneC,
		StopC:    handlerStopC,
	}
	go handler.Start()

	requestor := &Requestor{
		Client:      s.client,
		JobC:        jobC,
		MetricC:     metricC,
		State:       s.state,
		Concurrency: config.Concurrency,
		RateLimit:   config.RateLimit,
	}
	workersDoneC := make(chan struct{})
	go func() {
		requestor.Start(runCtx)
		close(workersDoneC)
	}()

	go s.feedJobs(runCtx, jobC)

	var deadlineC <-chan time.Time
	if config.Duration > 0 {
		timer := time.NewTimer(config.Duration)
		defer timer.Stop()
		deadlineC = timer.C
	}

	select {
	case <-quotaC:
		log.Debug().Msg("scheduler: request quota reached")
	case <-deadlineC:
		log.Debug().Dur("duration", config.Duration).Msg("scheduler: run duration reached")
	case <-ctx.Done():
		log.Debug().Msg("scheduler: run cancelled")
	}
	s.state.Stop()
	cancel()

	// Workers finish their in-flight requests; the join is bounded so a
	// wedged connection cannot hold the report hostage.
	joined := true
	select {
	case <-workersDoneC:
	case <-time.After(config.JoinGrace):
		joined = false
		log.Warn().Dur("grace", config.JoinGrace).Msg("scheduler: abandoning worker join")
	}

	if joined {
		close(metricC)
	} else {
		close(handlerStopC)
	}
	<-handlerDoneC

	s.accum.FinalDrain()
	s.accum.MarkComplete(time.Now())

	return buildReport(config, s.accum.Snapshot()), nil
}

// feedJobs is the job source. Count-bounded runs push exactly
// config.NumRequests jobs then close the queue; duration-bounded and
// unlimited runs push until the context is cancelled.
func (s *Scheduler) feedJobs(ctx context.Context, jobC chan<- Job) {
	defer close(jobC)

	if n := s.config.NumRequests; n > 0 {
		for i := 0; i < n; i++ {
			select {
			case jobC <- s.newJob():
			case <-ctx.Done():
				return
			}
		}
		log.Debug().Int("jobs", n).Msg("scheduler: job source finished")
		return
	}

	for {
		select {
		case jobC <- s.newJob():
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) newJob() Job {
	config := s.config
	return Job{
		URL:           config.URL,
		Method:        config.Method,
		Headers:       config.Headers,
		Body:          config.Body,
		BasicAuthUser: config.BasicAuthUser,
		BasicAuthPass: config.BasicAuthPass,
		HasBasicAuth:  config.HasBasicAuth,
		Timeout:       config.Timeout,
		DispatchedAt:  time.Now(),
	}
}

// buildReport derives the final report from an exact post-drain snapshot.
func buildReport(config api.TestConfig, snap api.Snapshot) api.RunReport {
	report := api.RunReport{
		URL:            config.URL,
		Method:         config.Method,
		TotalTime:      snap.Elapsed,
		Completed:      snap.Completed,
		Errors:         snap.Errors,
		RequestsPerSec: snap.Throughput,
		BytesSent:      snap.BytesSent,
		BytesReceived:  snap.BytesReceived,
		MinLatency:     snap.MinLatency,
		MaxLatency:     snap.MaxLatency,
		P50:            snap.P50,
		P90:            snap.P90,
		P95:            snap.P95,
		P99:            snap.P99,
	}

	denom := snap.Completed
	if denom < 1 {
		denom = 1
	}
	report.ErrorPct = 100 * float64(snap.Errors) / float64(denom)

	report.StatusDist = make([]api.StatusCount, 0, len(snap.StatusCounts))
	for status, count := range snap.StatusCounts {
		report.StatusDist = append(report.StatusDist, api.StatusCount{
			Status:  status,
			Count:   count,
			Percent: 100 * float64(count) / float64(denom),
		})
	}
	sort.Slice(report.StatusDist, func(i, j int) bool {
		return report.StatusDist[i].Status < report.StatusDist[j].Status
	})
	return report
}
