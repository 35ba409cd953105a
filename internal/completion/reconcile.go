package completion

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/verte-zerg/osutrack/internal/model"
)

// DefaultRefreshInterval is how often the baseline is fetched again.
const DefaultRefreshInterval = 5 * time.Minute

const defaultFetchTimeout = 30 * time.Second

// BaselineFetcher returns the authoritative completion count.
type BaselineFetcher interface {
	FetchBaseline(ctx context.Context) (model.Baseline, error)
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	// Post installs fetched baselines on the counter's writer goroutine.
	// When nil the baseline is installed from the Reconciler's goroutine.
	Post Poster
	// OnRefresh is called after a baseline is installed.
	OnRefresh func(model.Baseline)
	Logger    *log.Logger
}

// Reconciler periodically replaces the counter's baseline.
type Reconciler struct {
	fetcher   BaselineFetcher
	counter   *Counter
	interval  time.Duration
	timeout   time.Duration
	post      Poster
	onRefresh func(model.Baseline)
	logger    *log.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(fetcher BaselineFetcher, counter *Counter, opts ReconcilerOptions) *Reconciler {
	r := &Reconciler{
		fetcher:   fetcher,
		counter:   counter,
		interval:  opts.Interval,
		timeout:   opts.Timeout,
		post:      opts.Post,
		onRefresh: opts.OnRefresh,
		logger:    opts.Logger,
	}
	if r.interval <= 0 {
		r.interval = DefaultRefreshInterval
	}
	if r.timeout <= 0 {
		r.timeout = defaultFetchTimeout
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard, "", 0)
	}
	return r
}

// Run refreshes immediately and then on every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	_ = r.Refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.Refresh(ctx)
		}
	}
}

// Refresh fetches once. On failure the previous baseline and delta are kept.
func (r *Reconciler) Refresh(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	b, err := r.fetcher.FetchBaseline(fetchCtx)
	if err != nil {
		r.logger.Printf("completion: baseline refresh failed, keeping previous: %v", err)
		return err
	}
	install := func() {
		r.counter.SetBaseline(b)
		r.logger.Printf("completion: baseline %d/%d installed", b.Completed, b.Total)
		if r.onRefresh != nil {
			installed, _ := r.counter.Baseline()
			r.onRefresh(installed)
		}
	}
	if r.post == nil {
		install()
	} else {
		r.post(install)
	}
	return nil
}
