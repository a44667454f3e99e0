package estimator

import (
	"context"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Job is one independent fit.
type Job struct {
	Series  Series
	Options Options
}

// BatchOutcome is the result of one Job. Exactly one of Result and Err is set.
type BatchOutcome struct {
	Result *Result
	Err    error
}

// FitBatch fits every job on at most workers goroutines (GOMAXPROCS when
// workers <= 0). Jobs share nothing, so one failing series does not affect
// the others. Once ctx is done, jobs that have not started report ctx.Err();
// fits already running finish normally.
func FitBatch(ctx context.Context, jobs map[string]Job, workers int) map[string]BatchOutcome {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make(map[string]BatchOutcome, len(jobs))
	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(workers)
	for id, job := range jobs {
		p.Go(func() {
			var o BatchOutcome
			if err := ctx.Err(); err != nil {
				o.Err = err
			} else {
				o.Result, o.Err = Fit(job.Series, job.Options)
			}
			mu.Lock()
			out[id] = o
			mu.Unlock()
		})
	}
	p.Wait()
	return out
}
