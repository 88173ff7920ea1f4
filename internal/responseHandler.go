package internal

import (
	"github.com/rs/zerolog/log"
)

// ResponseHandler drains the metric channel into the accumulator. It is
// the single consumer of MetricC and expects to be run as a goroutine.
type ResponseHandler struct {
	// MetricC is the channel of request outcomes from the workers.
	MetricC <-chan MetricRecord
	// Accum receives every record.
	Accum *Accumulator
	// NumRqsts is the request quota for count-bounded runs, 0 otherwise.
	NumRqsts int64
	// QuotaC is closed once NumRqsts records have been absorbed.
	QuotaC chan struct{}
	// DoneC is closed when the handler exits.
	DoneC chan struct{}
	// StopC aborts the handler if the coordinator abandons the run; the
	// handler drains whatever is already buffered and exits.
	StopC <-chan struct{}
}

// Start consumes records until the metric channel closes or StopC fires.
func (rh *ResponseHandler) Start() {
	defer close(rh.DoneC)

	quotaSignalled := false
	absorb := func(m MetricRecord) {
		rh.Accum.Record(m)
		if rh.NumRqsts > 0 && !quotaSignalled && rh.Accum.Completed() >= rh.NumRqsts {
			quotaSignalled = true
			log.Debug().Int64("requests", rh.NumRqsts).Msg("responseHandler: request quota reached")
			close(rh.QuotaC)
		}
	}

	for {
		select {
		case m, ok := <-rh.MetricC:
			if !ok {
				return
			}
			absorb(m)
		case <-rh.StopC:
			// Drain without blocking, then bail.
			for {
				select {
				case m, ok := <-rh.MetricC:
					if !ok {
						return
					}
					absorb(m)
				default:
					log.Debug().Msg("responseHandler: stopped before metric channel closed")
					return
				}
			}
		}
	}
}
