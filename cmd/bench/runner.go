package bench

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	gometrics "github.com/rcrowley/go-metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// percentiles reported for the request latency
var (
	percentiles     = []float64{0.5, 0.9, 0.99, 0.999}
	percentileNames = []string{"p50", "p90", "p99", "p99.9"}
)

// options configures a benchmark run
type options struct {
	Clients  int
	Requests int
	// Rate limits the requests per second over all clients, 0 is unlimited
	Rate     int
	DataSize int
}

// result holds the measurements of a benchmark run
type result struct {
	Requests int64
	Errors   int64
	Bytes    uint64
	Elapsed  time.Duration
	latency  gometrics.Histogram // microseconds
}

// runBenchmark issues opts.Requests calls of do from opts.Clients goroutines.
// Failed calls are counted, they do not stop the run.
func runBenchmark(ctx context.Context, opts options, do func() error) (*result, error) {
	if opts.Clients <= 0 || opts.Requests <= 0 {
		return nil, fmt.Errorf("clients and requests must be positive")
	}

	limiter := rate.NewLimiter(rate.Inf, opts.Clients)
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), opts.Clients)
	}

	res := &result{latency: gometrics.NewHistogram(gometrics.NewUniformSample(100_000))}
	meter := gometrics.NewMeter()
	defer meter.Stop()
	failures := gometrics.NewCounter()

	var remaining atomic.Int64
	remaining.Store(int64(opts.Requests))

	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()

	for i := 0; i < opts.Clients; i++ {
		g.Go(func() error {
			for remaining.Add(-1) >= 0 {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}

				t := time.Now()
				if err := do(); err != nil {
					failures.Inc(1)
					Logger.Debugf("request failed: %v", err)
					continue
				}
				res.latency.Update(time.Since(t).Microseconds())
				meter.Mark(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Elapsed = time.Since(start)
	res.Requests = meter.Count()
	res.Errors = failures.Count()
	res.Bytes = uint64(res.Requests) * uint64(opts.DataSize)
	return res, nil
}

// Throughput returns the successful requests per second
func (r *result) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Requests) / r.Elapsed.Seconds()
}

// Print writes a human readable summary to w
func (r *result) Print(w io.Writer) {
	fmt.Fprintf(w, "%-14s%d (%d failed)\n", "requests:", r.Requests, r.Errors)
	fmt.Fprintf(w, "%-14s%s\n", "elapsed:", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "%-14s%s req/s\n", "throughput:", humanize.CommafWithDigits(r.Throughput(), 0))
	fmt.Fprintf(w, "%-14s%s (%s/s)\n", "payload:", humanize.Bytes(r.Bytes), humanize.Bytes(uint64(float64(r.Bytes)/max(r.Elapsed.Seconds(), 1e-9))))

	if r.latency.Count() == 0 {
		return
	}
	fmt.Fprintf(w, "%-14smin %s  mean %s  max %s\n", "latency:",
		micros(float64(r.latency.Min())), micros(r.latency.Mean()), micros(float64(r.latency.Max())))
	for i, p := range r.latency.Percentiles(percentiles) {
		fmt.Fprintf(w, "%-14s%s\n", "  "+percentileNames[i]+":", micros(p))
	}
}

func micros(us float64) time.Duration {
	return time.Duration(us * float64(time.Microsecond))
}
