package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/xssweep/internal/model"
)

// DefaultNavigationTimeout bounds a single navigation.
const DefaultNavigationTimeout = 30 * time.Second

// Session is one browser instance.
type Session interface {
	// Navigate loads url in the current tab.
	// It returns ErrNavigationTimeout (wrapped) when the load takes too long.
	Navigate(ctx context.Context, url string) error

	// Refresh reloads the current page.
	Refresh(ctx context.Context) error

	// State returns the page the browser currently shows.
	State(ctx context.Context) (*State, error)

	// SetCookies stores cookies in the browser jar.
	// Cookies without a domain are bound to the current page.
	SetCookies(ctx context.Context, cookies []model.Cookie) error

	// SubmitForm fills the form at formIndex and submits it.
	// values maps an input name (or id) to the text to type.
	// It returns ErrFormNotFound (wrapped) when the form does not exist.
	SubmitForm(ctx context.Context, formIndex int, values map[string]string) error

	// Alerts returns the texts of alert dialogs opened since the last call.
	// When none are pending it waits up to wait for one.
	Alerts(ctx context.Context, wait time.Duration) []string

	// DismissAlerts discards every pending alert.
	DismissAlerts(ctx context.Context) error

	// Close tears down the browser process.
	Close() error
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// State is a snapshot of the page a session shows.
type State struct {
	URL         string
	StatusCode  int
	ContentType string
	Headers     map[string][]string
	Content     string
	Cookies     []model.Cookie
	Request     model.RequestInfo

	// Resources lists the sub-resource URLs the browser requested while
	// loading the page.
	Resources []string
}

// Loaded reports whether the navigation landed on a usable response:
// HTTP 200 with a content type.
func (s *State) Loaded() bool {
	return s.StatusCode == 200 && strings.TrimSpace(s.ContentType) != ""
}

// HasResource reports whether rawURL was requested as a sub-resource.
func (s *State) HasResource(rawURL string) bool {
	key := model.NormalizeURL(rawURL)
	for _, r := range s.Resources {
		if model.NormalizeURL(r) == key {
			return true
		}
	}
	return false
}

// Page builds a page record from the state.
func (s *State) Page(parent string) *model.Page {
	page := &model.Page{
		URL:         s.URL,
		StatusCode:  s.StatusCode,
		ContentType: s.ContentType,
		Content:     s.Content,
		Request:     s.Request,
		Headers:     s.Headers,
		Cookies:     append([]model.Cookie(nil), s.Cookies...),
		Parent:      parent,
	}
	page.ComputeHash()
	return page
}

// LaunchWithRetry launches a session and retries once on failure.
func LaunchWithRetry(ctx context.Context, launcher Launcher, logger *slog.Logger) (Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	session, err := launcher.Launch(ctx)
	if err == nil {
		return session, nil
	}

	logger.Warn("browser launch failed, retrying", "error", err)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunchFailed, ctx.Err())
	}

	session, err = launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	return session, nil
}
