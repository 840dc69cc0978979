package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/xssweep/internal/model"
)

// DefaultBatchConcurrency is the number of targets scanned at once. Every
// scan drives its own browsers, so this stays small.
const DefaultBatchConcurrency = 2

// BatchProcessor scans several targets concurrently.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each target, so per-site
	// settings apply in batch mode too.
	pipelineFactory func(target string) *Pipeline

	concurrency int
	logger      *slog.Logger

	mu      sync.Mutex
	results []*model.ScanReport
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent scans.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func(target string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultBatchConcurrency,
		results:         make([]*model.ScanReport, 0),
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch scans targets and returns one report per target in input
// order. A failed scan keeps its error in its report; targets not started
// before cancellation have a nil report.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.ScanReport, error) {
	bp.logger.Info("starting batch processing", "targets", len(targets), "concurrency", bp.concurrency)
	start := time.Now()

	bp.mu.Lock()
	bp.results = make([]*model.ScanReport, len(targets))
	bp.mu.Unlock()

	err := bp.process(ctx, targets, func(report *model.ScanReport, i int) {
		bp.mu.Lock()
		bp.results[i] = report
		bp.mu.Unlock()
	})

	bp.logger.Info("batch processing complete", "targets", len(targets), "elapsed", time.Since(start))

	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.results, err
}

// ProcessBatchWithCallback scans targets and calls callback as each scan
// completes. callback runs on the scanning goroutine.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(report *model.ScanReport, index int),
) error {
	return bp.process(ctx, targets, callback)
}

func (bp *BatchProcessor) process(ctx context.Context, targets []string, done func(*model.ScanReport, int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("scanning target", "target", target, "index", i+1, "total", len(targets))

			report := model.NewScanReport(target)
			if err := bp.pipelineFactory(target).Execute(ctx, report); err != nil {
				// The error lives in the report; other targets go on.
				bp.logger.Warn("scan failed", "target", target, "error", err)
			} else {
				bp.logger.Info("scan completed", "target", target)
			}
			done(report, i)
			return nil
		})
	}
	return g.Wait()
}
