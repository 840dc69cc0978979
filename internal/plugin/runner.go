package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/xssweep/internal/model"
	"github.com/nao1215/xssweep/internal/result"
)

// DefaultConcurrency is the number of plugins run at once.
const DefaultConcurrency = 2

// Runner executes plugins concurrently.
type Runner struct {
	plugins     []Plugin
	concurrency int
	logger      *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConcurrency sets how many plugins run at once.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a runner for plugins.
func NewRunner(plugins []Plugin, opts ...RunnerOption) *Runner {
	r := &Runner{
		plugins:     plugins,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every plugin against env and returns their results in the
// order they finished. Every plugin yields a result even when it fails; the
// returned error joins the plugin failures.
func (r *Runner) Run(ctx context.Context, env *Env) ([]*model.PluginResult, error) {
	agg := result.NewAggregator(env.Pages, r.concurrency)

	var (
		results  []*model.PluginResult
		drainErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Every plugin goroutine records exactly once, so the drain always completes.
		results, drainErr = agg.Drain(context.WithoutCancel(ctx), len(r.plugins))
	}()

	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for _, p := range r.plugins {
		g.Go(func() error {
			res, err := r.runOne(ctx, p, env)
			agg.Record(p.Name(), p.Color(), res)

			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("plugin %s: %w", p.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // plugin goroutines never return errors
	<-done
	if drainErr != nil {
		errs = append(errs, drainErr)
	}
	return results, errors.Join(errs...)
}

func (r *Runner) runOne(ctx context.Context, p Plugin, env *Env) (*model.PluginResult, error) {
	if err := ctx.Err(); err != nil {
		res := model.NewPluginResult(p.Name(), p.Color())
		res.Error = err.Error()
		return res, err
	}

	r.logger.Info("plugin started", "plugin", p.Name())
	start := time.Now()

	res, err := p.Run(ctx, env)
	if res == nil {
		res = model.NewPluginResult(p.Name(), p.Color())
	}
	if err != nil {
		res.Error = err.Error()
		r.logger.Warn("plugin failed", "plugin", p.Name(), "error", err)
		return res, err
	}

	r.logger.Info("plugin finished",
		"plugin", p.Name(),
		"findings", res.FindingCount(),
		"elapsed", time.Since(start))
	return res, nil
}
