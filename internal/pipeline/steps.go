package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/xssweep/internal/browser"
	"github.com/nao1215/xssweep/internal/crawler"
	"github.com/nao1215/xssweep/internal/model"
	"github.com/nao1215/xssweep/internal/plugin"
)

// CrawlStep discovers the page set of the target.
type CrawlStep struct {
	spider *crawler.Spider
	opts   crawler.DiscoverOptions
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step around spider.
func NewCrawlStep(spider *crawler.Spider, opts crawler.DiscoverOptions, stepOpts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		spider: spider,
		opts:   opts,
		logger: slog.Default(),
	}
	for _, opt := range stepOpts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls report.Target. An interrupted crawl still stores the pages it
// found so far.
func (s *CrawlStep) Do(ctx context.Context, report *model.ScanReport) error {
	result, err := s.spider.Discover(ctx, report.Target, s.opts)
	if result != nil {
		report.Pages = result.Pages
		report.Troublesome = result.Troublesome
	}
	if err != nil {
		return err
	}

	stats := s.spider.Stats()
	s.logger.Info("crawl complete",
		"target", report.Target,
		"pages", len(report.Pages),
		"session_pages", stats.SessionPages,
		"troublesome", stats.Troublesome,
		"navigations", stats.Navigations,
	)
	return nil
}

// CheckStep runs the plugins over the crawled page set.
type CheckStep struct {
	runner   *plugin.Runner
	launcher browser.Launcher
}

// NewCheckStep creates a check step. launcher serves plugins that drive a
// browser of their own.
func NewCheckStep(runner *plugin.Runner, launcher browser.Launcher) *CheckStep {
	return &CheckStep{runner: runner, launcher: launcher}
}

// Name returns the step name.
func (s *CheckStep) Name() string {
	return "check"
}

// Do stores every plugin result, including those of failed plugins.
func (s *CheckStep) Do(ctx context.Context, report *model.ScanReport) error {
	env := &plugin.Env{Pages: report.Pages, Launcher: s.launcher}
	results, err := s.runner.Run(ctx, env)
	report.PluginResults = append(report.PluginResults, results...)
	if err != nil {
		return fmt.Errorf("plugin failed: %w", err)
	}
	return nil
}

// ReportStore persists finished reports.
type ReportStore interface {
	SaveScanReport(ctx context.Context, report *model.ScanReport) error
}

// SaveStep writes the report to a ReportStore.
type SaveStep struct {
	store ReportStore
}

// NewSaveStep creates a step that persists the report to store.
func NewSaveStep(store ReportStore) *SaveStep {
	return &SaveStep{store: store}
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return "save"
}

// Do saves the report. A save in progress is not interrupted by
// cancellation.
func (s *SaveStep) Do(ctx context.Context, report *model.ScanReport) error {
	if err := s.store.SaveScanReport(context.WithoutCancel(ctx), report); err != nil {
		return fmt.Errorf("failed to save scan report: %w", err)
	}
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// MaxPages caps the crawled page set. Zero means unlimited.
	MaxPages int

	// Recursive follows anchors during the crawl.
	Recursive bool

	// Credentials enable the login pass when non-nil.
	Credentials *crawler.Credentials

	// Cookies import an existing session before crawling.
	Cookies []model.Cookie

	// IgnorePatterns are URL path patterns to skip during crawling.
	IgnorePatterns []string

	// FollowPatterns are URL path patterns to follow during crawling.
	FollowPatterns []string

	// Blacklist and Whitelist decide which pages the plugins see.
	Blacklist []string
	Whitelist []string

	// RateLimit is the number of navigations per second. Zero keeps the
	// crawler default and a negative value disables pacing.
	RateLimit float64

	// Concurrency is the number of plugins run at once.
	Concurrency int

	// Store, when set, receives the finished report.
	Store ReportStore

	Logger *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineMaxPages sets the maximum pages to crawl.
func WithPipelineMaxPages(maxPages int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxPages = maxPages
	}
}

// WithPipelineRecursive enables anchor following.
func WithPipelineRecursive(recursive bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Recursive = recursive
	}
}

// WithPipelineCredentials enables the login pass.
func WithPipelineCredentials(username, password string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		if username == "" && password == "" {
			c.Credentials = nil
			return
		}
		c.Credentials = &crawler.Credentials{Username: username, Password: password}
	}
}

// WithPipelineCookies imports a session from cookies.
func WithPipelineCookies(cookies []model.Cookie) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Cookies = cookies
	}
}

// WithPipelineIgnorePatterns sets URL patterns to skip during crawling.
func WithPipelineIgnorePatterns(patterns []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.IgnorePatterns = patterns
	}
}

// WithPipelineFollowPatterns sets URL patterns to follow during crawling.
func WithPipelineFollowPatterns(patterns []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.FollowPatterns = patterns
	}
}

// WithPipelineScope sets the black and white word lists.
func WithPipelineScope(blacklist, whitelist []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Blacklist = blacklist
		c.Whitelist = whitelist
	}
}

// WithPipelineRateLimit sets the navigation rate.
func WithPipelineRateLimit(perSecond float64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.RateLimit = perSecond
	}
}

// WithPipelineConcurrency sets how many plugins run at once.
func WithPipelineConcurrency(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Concurrency = n
	}
}

// WithPipelineStore persists finished reports to store.
func WithPipelineStore(store ReportStore) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Store = store
	}
}

// WithPipelineLogger sets the logger shared by every step.
func WithPipelineLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// DefaultPipeline creates the standard scan: crawl, check and, when a store
// is configured, save. With a store the pipeline keeps going after a failed
// step so the partial report is saved.
func DefaultPipeline(launcher browser.Launcher, plugins []plugin.Plugin, opts ...DefaultPipelineOption) *Pipeline {
	cfg := &DefaultPipelineConfig{
		Concurrency: plugin.DefaultConcurrency,
		Logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	spiderOpts := []crawler.SpiderOption{
		crawler.WithIgnorePatterns(cfg.IgnorePatterns),
		crawler.WithFollowPatterns(cfg.FollowPatterns),
		crawler.WithScope(crawler.NewScope(cfg.Blacklist, cfg.Whitelist, cfg.Logger)),
		crawler.WithLogger(cfg.Logger),
	}
	if len(cfg.Cookies) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithCookies(cfg.Cookies))
	}
	if cfg.RateLimit != 0 {
		spiderOpts = append(spiderOpts, crawler.WithRateLimit(cfg.RateLimit))
	}

	spider := crawler.NewSpider(launcher, spiderOpts...)
	discover := crawler.DiscoverOptions{
		MaxPages:    cfg.MaxPages,
		Recursive:   cfg.Recursive,
		Credentials: cfg.Credentials,
	}
	runner := plugin.NewRunner(plugins,
		plugin.WithConcurrency(cfg.Concurrency),
		plugin.WithLogger(cfg.Logger),
	)

	p := New(WithLogger(cfg.Logger), WithContinueOnError(cfg.Store != nil))
	p.AddSteps(
		NewCrawlStep(spider, discover, WithCrawlLogger(cfg.Logger)),
		NewCheckStep(runner, launcher),
	)
	if cfg.Store != nil {
		p.AddStep(NewSaveStep(cfg.Store))
	}
	return p
}
