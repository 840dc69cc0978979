package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nao1215/xssweep/internal/browser"
	"github.com/nao1215/xssweep/internal/model"
)

// DefaultRateLimit is the default number of navigations per second.
const DefaultRateLimit = 5.0

// Spider discovers pages through browser sessions.
// A Spider may run several Discover calls one after another; each call
// owns its own CrawlState and browsers.
type Spider struct {
	// launcher starts the main and the shadow browser.
	launcher browser.Launcher

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	// If set, only URLs matching these patterns are crawled.
	followPatterns []string

	// scope marks pages excluded from vulnerability checks.
	scope *Scope

	// cookies seed the main browser with an existing session.
	cookies []model.Cookie

	// limiter paces navigations of every browser the spider drives.
	limiter *rate.Limiter

	logger *slog.Logger

	mutex sync.Mutex
	stats SpiderStats
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithScope sets the black/white-list filter.
func WithScope(scope *Scope) SpiderOption {
	return func(s *Spider) {
		s.scope = scope
	}
}

// WithCookies imports a session: the cookies seed the main browser and the
// crawl starts authenticated.
func WithCookies(cookies []model.Cookie) SpiderOption {
	return func(s *Spider) {
		s.cookies = cookies
	}
}

// WithRateLimit sets the maximum navigations per second. Zero or less disables pacing.
func WithRateLimit(perSecond float64) SpiderOption {
	return func(s *Spider) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a new Spider that launches browsers with launcher.
func NewSpider(launcher browser.Launcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		launcher: launcher,
		limiter:  rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Credentials are used to fill login forms.
type Credentials struct {
	Username string
	Password string
}

// DiscoverOptions controls one Discover call.
type DiscoverOptions struct {
	// MaxPages caps the page set. Zero means unlimited.
	MaxPages int

	// Recursive follows anchors. Scripts and stylesheets are always followed.
	Recursive bool

	// Credentials enables the login pass when non-nil.
	Credentials *Credentials
}

// CrawlResult is the outcome of Discover.
type CrawlResult struct {
	// Pages in discovery order.
	Pages []*model.Page

	// Troublesome lists URLs that failed to produce a usable page.
	Troublesome []string
}

// Discover crawls from startURL and returns the deduplicated page set.
// It returns ErrNoPagesDiscovered when not a single page loads.
func (s *Spider) Discover(ctx context.Context, startURL string, opts DiscoverOptions) (*CrawlResult, error) {
	start, err := url.Parse(startURL)
	if err != nil || start.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStartURL, startURL)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		start.Scheme = "http"
	}

	main, err := browser.LaunchWithRetry(ctx, s.launcher, s.logger)
	if err != nil {
		return nil, err
	}
	defer main.Close()

	st := newCrawlState(main, opts)
	defer func() {
		if st.shadow != nil {
			_ = st.shadow.Close()
		}
	}()

	if len(s.cookies) > 0 {
		if err := s.importSession(ctx, st, start.String()); err != nil {
			return nil, err
		}
	}

	s.crawl(ctx, st, start.String(), "")

	if opts.Credentials != nil && (st.login == nil || !st.login.viaCookies) {
		if err := s.discoverSessionPages(ctx, st, opts.Credentials); err != nil {
			return nil, err
		}
	}

	result := &CrawlResult{
		Pages:       st.pages,
		Troublesome: append([]string(nil), st.troubleList...),
	}
	for _, p := range result.Pages {
		p.Excluded = s.scope.Excluded(p.URL)
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("crawl interrupted: %w", err)
	}
	if len(result.Pages) == 0 {
		return result, fmt.Errorf("%w: %s (%d troublesome)", ErrNoPagesDiscovered, start, len(result.Troublesome))
	}

	s.logger.Info("crawl finished",
		"pages", len(result.Pages),
		"session_pages", len(st.sessionPages()),
		"troublesome", len(result.Troublesome))
	return result, nil
}

// crawl visits rawURL and recurses into its links.
func (s *Spider) crawl(ctx context.Context, st *CrawlState, rawURL, parent string) {
	if ctx.Err() != nil || st.limitReached() || st.isLogoutURL(rawURL) || !s.shouldCrawl(rawURL) {
		return
	}
	st.markChecked(rawURL)

	page, state, err := s.fetch(ctx, st.main, rawURL, parent)
	if err != nil {
		if isUnreachable(err) {
			s.logger.Debug("page unreachable", "url", rawURL, "error", err)
		} else {
			s.logger.Warn("navigation aborted", "url", rawURL, "error", err)
		}
		st.markTroublesome(rawURL)
		s.count(func(stats *SpiderStats) { stats.Troublesome++ })
		return
	}
	st.markChecked(page.URL)

	if st.shadow != nil {
		contentMatch := st.findByContent(page)
		if strings.Contains(strings.ToLower(page.URL), "logout") || contentMatch != nil {
			if !s.sessionAlive(ctx, st) {
				s.handleLogout(st, rawURL)
				return
			}
		}
		if contentMatch != nil {
			return
		}
		s.classify(ctx, st, page, parent)
	}

	if !st.isDuplicate(page) {
		st.addPage(page)
		s.printPage(st, page)
	}

	parser, err := NewParser(page.URL)
	if err != nil || !page.IsHTML() {
		return
	}
	links, err := parser.Parse(strings.NewReader(page.Content))
	if err != nil {
		s.logger.Debug("failed to parse page", "url", page.URL, "error", err)
		return
	}

	for _, link := range parser.SameHost(append(links.Scripts, links.Stylesheets...)) {
		if st.shouldStop() {
			return
		}
		if !state.HasResource(link) || st.isChecked(link) || st.isTroublesome(link) {
			continue
		}
		s.crawl(ctx, st, link, page.URL)
	}

	if !st.recursive {
		return
	}
	for _, link := range parser.SameHost(links.Anchors) {
		if st.shouldStop() {
			return
		}
		if st.isChecked(link) || st.isTroublesome(link) {
			continue
		}
		s.crawl(ctx, st, link, page.URL)
	}
}

// fetch navigates session to rawURL and builds a page from the result.
func (s *Spider) fetch(ctx context.Context, session browser.Session, rawURL, parent string) (*model.Page, *browser.State, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	s.count(func(stats *SpiderStats) { stats.Navigations++ })

	if err := session.Navigate(ctx, rawURL); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	_ = session.DismissAlerts(ctx)

	state, err := session.State(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if !state.Loaded() {
		return nil, nil, fmt.Errorf("%w: %s returned status %d (%q)",
			ErrUnreachable, rawURL, state.StatusCode, state.ContentType)
	}
	return state.Page(parent), state, nil
}

func (s *Spider) printPage(st *CrawlState, page *model.Page) {
	key := model.NormalizeURL(page.URL)
	if st.printed[key+page.Kind.String()] {
		return
	}
	st.printed[key+page.Kind.String()] = true
	s.count(func(stats *SpiderStats) {
		stats.PagesVisited++
		if page.IsSession() {
			stats.SessionPages++
		}
	})
	s.logger.Info("page found", "url", page.URL, "kind", page.Kind.String(), "status", page.StatusCode)
}

func (s *Spider) count(update func(*SpiderStats)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	update(&s.stats)
}

// Stats returns crawl statistics accumulated over every Discover call.
func (s *Spider) Stats() SpiderStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesVisited is the number of pages added to a page set.
	PagesVisited int

	// SessionPages is how many of them were session pages.
	SessionPages int

	// Troublesome is the number of failed fetches.
	Troublesome int

	// Navigations is the number of browser navigations issued.
	Navigations int
}

// isUnreachable reports whether err is a per-page failure.
func isUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
