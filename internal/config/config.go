package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "xssweep"

	// DefaultTimeout bounds a single page navigation.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPages caps the page set of one target.
	DefaultMaxPages = 100

	// DefaultConcurrency is the number of plugins run at once per target.
	DefaultConcurrency = 2

	// DefaultBatchSize is the number of targets scanned at once.
	DefaultBatchSize = 2

	// DefaultRateLimit is the number of navigations per second.
	DefaultRateLimit = 5.0

	// DefaultAlertWait bounds the wait for an alert after a form submission.
	DefaultAlertWait = 2 * time.Second

	// DefaultUserAgent identifies the scanner in server logs.
	DefaultUserAgent = "xssweep/1.0 (+https://github.com/nao1215/xssweep)"
)

// Config holds every option of a scan. It is populated from CLI flags and
// passed down explicitly.
type Config struct {
	// Targets are the start URLs. A URL without scheme is crawled over http.
	Targets []string

	// Timeout bounds each page navigation.
	Timeout time.Duration

	// MaxPages caps the page set per target. Zero means unlimited.
	MaxPages int

	// Recursive follows anchors. Scripts and stylesheets are always followed.
	Recursive bool

	// Username and Password fill login forms found during the crawl.
	Username string
	Password string

	// CookieFile imports an existing session instead of logging in.
	CookieFile string

	// BlacklistFile and WhitelistFile hold comma-separated URL words that
	// decide which pages the plugins see.
	BlacklistFile string
	WhitelistFile string

	// Plugins are the registry names of the checks to run.
	Plugins []string

	// PayloadFile replaces the built-in payload corpus.
	PayloadFile string

	// Aggressive enables live form submission.
	Aggressive bool

	// AlertWait bounds the wait for an alert after a submission.
	AlertWait time.Duration

	// Concurrency is the number of plugins run at once per target.
	Concurrency int

	// BatchSize is the number of targets scanned at once.
	BatchSize int

	// RateLimit is the number of navigations per second. Zero or less disables pacing.
	RateLimit float64

	// Headless runs Chrome without a window.
	Headless bool

	// BrowserPath overrides the Chrome executable.
	BrowserPath string

	// Proxy is passed to Chrome as --proxy-server.
	Proxy string

	// UserAgent overrides the browser user agent.
	UserAgent string

	// JSONReport and MarkdownReport select the report format. Both false
	// selects the simple text report.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile is the output path. Empty writes to stdout.
	ReportFile string

	// DBDir is the directory of the scan database. Empty disables persistence.
	DBDir string

	// SaveToDB stores each report in the database at DBDir.
	SaveToDB bool

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON writes logs as JSON.
	LogJSON bool

	// ConfigFilePath is the .xssweep file to load. Empty searches the
	// current and home directories.
	ConfigFilePath string

	// SiteConfigs holds per-site settings loaded from the config file.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:     DefaultTimeout,
		MaxPages:    DefaultMaxPages,
		Recursive:   true,
		AlertWait:   DefaultAlertWait,
		Concurrency: DefaultConcurrency,
		BatchSize:   DefaultBatchSize,
		RateLimit:   DefaultRateLimit,
		Headless:    true,
		UserAgent:   DefaultUserAgent,
	}
}

// XDGDataDir returns the XDG data directory, home of the scan database.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, t := range c.Targets {
		if !validTarget(t) {
			return ErrInvalidTarget
		}
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if (c.Username == "") != (c.Password == "") {
		return ErrIncompleteCredentials
	}
	if c.Username != "" && c.CookieFile != "" {
		return ErrConflictingSession
	}
	return nil
}

// validTarget accepts http(s) URLs with a host, and bare hosts.
func validTarget(target string) bool {
	target = strings.TrimSpace(target)
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
