package internal

import (
	"fmt"
	"time"

	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"

	"github.com/cloudy-native/whambam.dev/api"
)

const progressRefresh = 100 * time.Millisecond

// ShowProgress renders a live progress bar fed from run snapshots and
// blocks until doneC closes. Count-bounded runs track completed requests
// against the quota, duration-bounded runs track elapsed time, and
// unlimited runs show a running counter. The snapshot reader is the only
// observer the run pays for.
func ShowProgress(snapshot func() api.Snapshot, numRequests int, duration time.Duration, doneC <-chan struct{}) {
	p := mpb.New(mpb.WithWidth(60), mpb.WithRefreshRate(progressRefresh))

	throughput := decor.Any(func(decor.Statistics) string {
		return fmt.Sprintf("%.0f req/s", snapshot().Throughput)
	})

	var bar *mpb.Bar
	switch {
	case numRequests > 0:
		bar = p.AddBar(int64(numRequests),
			mpb.PrependDecorators(
				decor.Name("requests "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(decor.Percentage(), decor.Name(" "), throughput),
		)
	case duration > 0:
		bar = p.AddBar(duration.Milliseconds(),
			mpb.PrependDecorators(decor.Name("elapsed ")),
			mpb.AppendDecorators(decor.Percentage(), decor.Name(" "), throughput),
		)
	default:
		// Unbounded run: keep the total one ahead so the bar never
		// completes until the run does.
		bar = p.AddBar(1,
			mpb.PrependDecorators(
				decor.Name("requests "),
				decor.Any(func(st decor.Statistics) string {
					return fmt.Sprintf("%d", st.Current)
				}),
			),
			mpb.AppendDecorators(throughput),
		)
	}

	ticker := time.NewTicker(progressRefresh)
	defer ticker.Stop()

	update := func(final bool) {
		s := snapshot()
		switch {
		case numRequests > 0:
			bar.SetCurrent(s.Completed)
			if final {
				bar.SetTotal(int64(numRequests), true)
			}
		case duration > 0:
			elapsed := s.Elapsed.Milliseconds()
			if elapsed > duration.Milliseconds() {
				elapsed = duration.Milliseconds()
			}
			bar.SetCurrent(elapsed)
			if final {
				bar.SetTotal(duration.Milliseconds(), true)
			}
		default:
			bar.SetTotal(s.Completed+1, final)
			bar.SetCurrent(s.Completed)
		}
	}

	for {
		select {
		case <-doneC:
			update(true)
			p.Wait()
			return
		case <-ticker.C:
			update(false)
		}
	}
}
