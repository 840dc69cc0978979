package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/xssweep/internal/browser"
	"github.com/nao1215/xssweep/internal/config"
	"github.com/nao1215/xssweep/internal/database"
	"github.com/nao1215/xssweep/internal/model"
	"github.com/nao1215/xssweep/internal/pipeline"
	"github.com/nao1215/xssweep/internal/plugin"
	"github.com/nao1215/xssweep/internal/report"
)

// passwordEnv supplies the login password without exposing it in the
// process list.
const passwordEnv = "XSSWEEP_PASSWORD"

// ErrScansFailed is returned when at least one target could not be scanned.
var ErrScansFailed = errors.New("scan failed")

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url...]",
		Short: "Crawl web applications and check them for XSS",
		Long: `Scan opens each target in a browser, follows links, scripts and
stylesheets, and logs in through the first login form it meets when
credentials are given. Pages that only render inside the session are kept
apart from anonymous ones.

Every discovered page is then checked by the selected plugins:
  xss      CSP gating and, with --aggressive, payload injection into forms
  dom_xss  script sources that flow into dangerous sinks
  headers  missing CSP, unsafe script sources, cookies without HttpOnly

Examples:
  # Passive scan
  xssweep scan http://localhost:8080/

  # Log in and submit payloads through every form
  XSSWEEP_PASSWORD=secret xssweep scan --aggressive -u admin http://localhost:8080/

  # Reuse an exported browser session
  xssweep scan --cookie-file cookies.json https://app.example.com/

  # Markdown report of two targets
  xssweep scan -m -o report.md http://a.test/ http://b.test/`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each page navigation")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages, "Maximum number of pages per target (0 = unlimited)")
	cmd.Flags().Bool("no-recursive", false, "Do not follow anchors (scripts and stylesheets are still fetched)")

	cmd.Flags().StringP("username", "u", "", "Username for login forms")
	cmd.Flags().StringP("password", "P", "", "Password for login forms (or set "+passwordEnv+")")
	cmd.Flags().String("cookie-file", "", "JSON cookie export to start the crawl inside a session")
	cmd.Flags().String("blacklist", "", "File of comma-separated URL words the checks skip")
	cmd.Flags().String("whitelist", "", "File of comma-separated URL words the checks always include")

	cmd.Flags().StringSlice("plugins", plugin.Names(), "Checks to run")
	cmd.Flags().String("payloads", "", "Payload file replacing the built-in corpus")
	cmd.Flags().BoolP("aggressive", "a", false, "Submit payloads through forms (changes server state)")
	cmd.Flags().Duration("alert-wait", config.DefaultAlertWait, "Time to wait for an alert after a submission")

	cmd.Flags().Int("concurrency", config.DefaultConcurrency, "Number of plugins run at once per target")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of targets scanned at once")
	cmd.Flags().Float64("rate", config.DefaultRateLimit, "Navigations per second (0 = unlimited)")

	cmd.Flags().Bool("headless", true, "Run the browser without a window")
	cmd.Flags().String("browser", "", "Path to the Chrome executable")
	cmd.Flags().String("proxy", "", "Proxy server for the browser (e.g., http://127.0.0.1:8080)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "Browser user agent")

	cmd.Flags().StringP("config", "c", "", "Configuration file path (default: .xssweep in current or home directory)")

	cmd.Flags().BoolP("json", "j", false, "Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "", "Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the scan history database")
	cmd.Flags().Bool("no-db", false, "Do not save reports to the database")

	return cmd
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	launcher := browser.NewChromeLauncher(
		browser.WithHeadless(cfg.Headless),
		browser.WithExecPath(cfg.BrowserPath),
		browser.WithProxy(cfg.Proxy),
		browser.WithUserAgent(cfg.UserAgent),
		browser.WithNavigationTimeout(cfg.Timeout),
		browser.WithLogger(logger),
	)
	return runScan(ctx, cfg, launcher, cmd.OutOrStdout(), logger)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Username, err = flags.GetString("username"); err != nil {
		return nil, err
	}
	if cfg.Password, err = flags.GetString("password"); err != nil {
		return nil, err
	}
	if cfg.CookieFile, err = flags.GetString("cookie-file"); err != nil {
		return nil, err
	}
	if cfg.BlacklistFile, err = flags.GetString("blacklist"); err != nil {
		return nil, err
	}
	if cfg.WhitelistFile, err = flags.GetString("whitelist"); err != nil {
		return nil, err
	}
	if cfg.Plugins, err = flags.GetStringSlice("plugins"); err != nil {
		return nil, err
	}
	if cfg.PayloadFile, err = flags.GetString("payloads"); err != nil {
		return nil, err
	}
	if cfg.Aggressive, err = flags.GetBool("aggressive"); err != nil {
		return nil, err
	}
	if cfg.AlertWait, err = flags.GetDuration("alert-wait"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.Headless, err = flags.GetBool("headless"); err != nil {
		return nil, err
	}
	if cfg.BrowserPath, err = flags.GetString("browser"); err != nil {
		return nil, err
	}
	if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	noRecursive, err := flags.GetBool("no-recursive")
	if err != nil {
		return nil, err
	}
	cfg.Recursive = !noRecursive

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB && cfg.DBDir != ""

	if cfg.Password == "" && cfg.Username != "" {
		cfg.Password = os.Getenv(passwordEnv)
	}
	cfg.Verbose = boolFlag(cmd, "verbose")
	cfg.LogJSON = boolFlag(cmd, "log-json")

	// An explicit config path must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.Targets = make([]string, 0, len(args))
	for _, arg := range args {
		cfg.Targets = append(cfg.Targets, normalizeTarget(arg))
	}
	return cfg, nil
}

// normalizeTarget adds the http scheme to bare hosts.
func normalizeTarget(target string) string {
	target = strings.TrimSpace(target)
	if target != "" && !strings.Contains(target, "://") {
		return "http://" + target
	}
	return target
}

// targetPlan is everything needed to build the pipeline of one target.
type targetPlan struct {
	plugins []plugin.Plugin
	opts    []pipeline.DefaultPipelineOption
}

// planTargets resolves site settings, loads the referenced files and
// selects plugins for every target before any browser starts.
func planTargets(cfg *config.Config, store pipeline.ReportStore, logger *slog.Logger) (map[string]*targetPlan, error) {
	var blacklist, whitelist []string
	var err error
	if cfg.BlacklistFile != "" {
		if blacklist, err = config.LoadListFile(cfg.BlacklistFile); err != nil {
			return nil, err
		}
	}
	if cfg.WhitelistFile != "" {
		if whitelist, err = config.LoadListFile(cfg.WhitelistFile); err != nil {
			return nil, err
		}
	}

	plans := make(map[string]*targetPlan, len(cfg.Targets))
	for _, target := range cfg.Targets {
		site := cfg.SiteConfigs.GetSiteConfig(target)
		plan, err := planTarget(cfg, site, blacklist, whitelist, store, logger)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", target, err)
		}
		plans[target] = plan
	}
	return plans, nil
}

// planTarget applies site settings over the command line ones.
func planTarget(cfg *config.Config, site config.SiteConfig, blacklist, whitelist []string, store pipeline.ReportStore, logger *slog.Logger) (*targetPlan, error) {
	names := cfg.Plugins
	if len(site.Plugins) > 0 {
		names = site.Plugins
	}
	aggressive := cfg.Aggressive
	if site.Aggressive != nil {
		aggressive = *site.Aggressive
	}
	plugins, err := plugin.Select(names, plugin.Options{
		Aggressive:  aggressive,
		PayloadFile: cfg.PayloadFile,
		AlertWait:   cfg.AlertWait,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	maxPages := cfg.MaxPages
	if site.MaxPages > 0 {
		maxPages = site.MaxPages
	}
	rate := cfg.RateLimit
	if rate <= 0 {
		rate = -1
	}

	opts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineMaxPages(maxPages),
		pipeline.WithPipelineRecursive(cfg.Recursive),
		pipeline.WithPipelineIgnorePatterns(site.IgnorePatterns),
		pipeline.WithPipelineFollowPatterns(site.FollowPatterns),
		pipeline.WithPipelineScope(slices.Concat(blacklist, site.Blacklist), slices.Concat(whitelist, site.Whitelist)),
		pipeline.WithPipelineRateLimit(rate),
		pipeline.WithPipelineConcurrency(cfg.Concurrency),
		pipeline.WithPipelineLogger(logger),
	}
	if store != nil {
		opts = append(opts, pipeline.WithPipelineStore(store))
	}

	username, password := cfg.Username, cfg.Password
	if site.Username != "" {
		username, password = site.Username, site.Password
	}
	cookieFile := cfg.CookieFile
	if site.CookieFile != "" {
		cookieFile = site.CookieFile
	}
	switch {
	case cookieFile != "" && username != "":
		return nil, config.ErrConflictingSession
	case cookieFile != "":
		cookies, err := config.LoadCookieFile(cookieFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithPipelineCookies(cookies))
	case username != "":
		opts = append(opts, pipeline.WithPipelineCredentials(username, password))
	}

	return &targetPlan{plugins: plugins, opts: opts}, nil
}

// runScan scans every target and writes one report per target as scans
// finish.
func runScan(ctx context.Context, cfg *config.Config, launcher browser.Launcher, stdout io.Writer, logger *slog.Logger) error {
	var store *database.ScanDB
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		store = db
		logger.Info("database opened", "path", db.Path())
	}

	var reportStore pipeline.ReportStore
	if store != nil {
		reportStore = store
	}
	plans, err := planTargets(cfg, reportStore, logger)
	if err != nil {
		return err
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()
	writer := newReportWriter(cfg, output)

	bp := pipeline.NewBatchProcessor(
		func(target string) *pipeline.Pipeline {
			plan := plans[target]
			return pipeline.DefaultPipeline(launcher, plan.plugins, plan.opts...)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	logger.Info("starting scan", "targets", len(cfg.Targets), "batch", cfg.BatchSize, "saveToDB", cfg.SaveToDB)
	start := time.Now()

	var (
		mu     sync.Mutex
		failed []string
	)
	err = bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r *model.ScanReport, _ int) {
		mu.Lock()
		defer mu.Unlock()

		if r.ErrorMessage != "" {
			failed = append(failed, r.Target)
		}
		if _, err := writer.Write(r); err != nil {
			logger.Error("failed to write report", "target", r.Target, "error", err)
		}
	})
	logger.Info("scan finished", "elapsed", time.Since(start).Round(time.Millisecond))

	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d targets: %s", ErrScansFailed, len(failed), len(cfg.Targets), strings.Join(failed, ", "))
	}
	return nil
}

// openOutput opens the report file, or returns stdout when path is empty.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	// Reports may contain session URLs and payload evidence.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// newReportWriter selects the writer for the configured report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
