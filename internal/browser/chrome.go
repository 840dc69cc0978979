package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/xssweep/internal/model"
)

const (
	// DefaultSettleTimeout is how long SubmitForm waits for the page to load
	// after submitting before giving up on a navigation.
	DefaultSettleTimeout = 3 * time.Second

	// closeTimeout bounds a graceful shutdown before the process tree is killed.
	closeTimeout = 5 * time.Second
)

// blockedImageExtensions are never fetched.
var blockedImageExtensions = map[string]bool{
	".png": true,
	".jpg": true,
	".gif": true,
}

// ChromeLauncher starts headless Chrome sessions through chromedp.
type ChromeLauncher struct {
	headless      bool
	execPath      string
	proxy         string
	userAgent     string
	navTimeout    time.Duration
	settleTimeout time.Duration
	blockImages   bool
	logger        *slog.Logger
}

// ChromeOption configures a ChromeLauncher.
type ChromeOption func(*ChromeLauncher)

// WithHeadless toggles headless mode.
func WithHeadless(headless bool) ChromeOption {
	return func(l *ChromeLauncher) {
		l.headless = headless
	}
}

// WithExecPath sets the Chrome binary. Empty means chromedp's lookup.
func WithExecPath(p string) ChromeOption {
	return func(l *ChromeLauncher) {
		l.execPath = p
	}
}

// WithProxy routes browser traffic through a proxy server URL.
func WithProxy(proxy string) ChromeOption {
	return func(l *ChromeLauncher) {
		l.proxy = proxy
	}
}

// WithUserAgent overrides the browser User-Agent.
func WithUserAgent(ua string) ChromeOption {
	return func(l *ChromeLauncher) {
		l.userAgent = ua
	}
}

// WithNavigationTimeout bounds each navigation.
func WithNavigationTimeout(d time.Duration) ChromeOption {
	return func(l *ChromeLauncher) {
		if d > 0 {
			l.navTimeout = d
		}
	}
}

// WithSettleTimeout sets how long a form submission waits for a page load.
func WithSettleTimeout(d time.Duration) ChromeOption {
	return func(l *ChromeLauncher) {
		if d > 0 {
			l.settleTimeout = d
		}
	}
}

// WithBlockImages toggles failing .png, .jpg and .gif requests.
func WithBlockImages(block bool) ChromeOption {
	return func(l *ChromeLauncher) {
		l.blockImages = block
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ChromeOption {
	return func(l *ChromeLauncher) {
		l.logger = logger
	}
}

// NewChromeLauncher creates a launcher with the given options.
func NewChromeLauncher(opts ...ChromeOption) *ChromeLauncher {
	l := &ChromeLauncher{
		headless:      true,
		navTimeout:    DefaultNavigationTimeout,
		settleTimeout: DefaultSettleTimeout,
		blockImages:   true,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *ChromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("ignore-certificate-errors", true),
	)
	if l.execPath != "" {
		opts = append(opts, chromedp.ExecPath(l.execPath))
	}
	if l.proxy != "" {
		opts = append(opts, chromedp.ProxyServer(l.proxy))
	}
	if l.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.userAgent))
	}
	return opts
}

// Launch starts a browser process and opens one tab.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx:           browserCtx,
		allocCancel:   allocCancel,
		browserCancel: browserCancel,
		navTimeout:    l.navTimeout,
		settleTimeout: l.settleTimeout,
		logger:        l.logger,
		alertCh:       make(chan struct{}, 1),
		loadCh:        make(chan struct{}, 1),
	}
	chromedp.ListenTarget(browserCtx, s.handleEvent)

	actions := []chromedp.Action{network.Enable(), page.Enable()}
	if l.blockImages {
		actions = append(actions, fetch.Enable())
	}
	actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		s.setMainFrame(tree.Frame.ID)
		return nil
	}))
	if err := chromedp.Run(browserCtx, actions...); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}

	l.logger.Debug("browser launched", "headless", l.headless)
	return s, nil
}

// chromeSession is a Session backed by one Chrome tab.
type chromeSession struct {
	ctx           context.Context //nolint:containedctx // chromedp binds the tab to this context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	navTimeout    time.Duration
	settleTimeout time.Duration
	logger        *slog.Logger

	closeOnce sync.Once
	closed    atomic.Bool

	mu          sync.Mutex
	alerts      []string
	alertCh     chan struct{}
	loadCh      chan struct{}
	mainFrame   cdp.FrameID
	docRequest  network.RequestID
	request     model.RequestInfo
	status      int
	contentType string
	headers     map[string][]string
	resources   []string
}

func (s *chromeSession) handleEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		s.onRequest(e)
	case *network.EventResponseReceived:
		s.onResponse(e)
	case *page.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" {
			s.setMainFrame(e.Frame.ID)
		}
	case *page.EventLoadEventFired:
		signal(s.loadCh)
	case *page.EventJavascriptDialogOpening:
		s.mu.Lock()
		s.alerts = append(s.alerts, e.Message)
		s.mu.Unlock()
		signal(s.alertCh)
		go func() {
			_ = chromedp.Run(s.ctx, page.HandleJavaScriptDialog(true))
		}()
	case *fetch.EventRequestPaused:
		go s.onPaused(e)
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *chromeSession) onRequest(e *network.EventRequestWillBeSent) {
	if e.Request == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isNavigation(e) {
		headers := make(map[string]string, len(e.Request.Headers))
		for k, v := range e.Request.Headers {
			headers[k] = fmt.Sprint(v)
		}
		s.docRequest = e.RequestID
		s.request = model.RequestInfo{
			Method:  e.Request.Method,
			URL:     e.Request.URL,
			Headers: headers,
		}
		s.status = 0
		s.contentType = ""
		s.headers = nil
		s.resources = nil
		return
	}
	s.resources = append(s.resources, e.Request.URL)
}

// isNavigation reports whether e loads a new document into the main frame.
// Iframe documents are sub-resources of the page.
func (s *chromeSession) isNavigation(e *network.EventRequestWillBeSent) bool {
	if e.Type != network.ResourceTypeDocument || string(e.RequestID) != string(e.LoaderID) {
		return false
	}
	return s.mainFrame == "" || e.FrameID == s.mainFrame
}

func (s *chromeSession) setMainFrame(id cdp.FrameID) {
	s.mu.Lock()
	s.mainFrame = id
	s.mu.Unlock()
}

func (s *chromeSession) onResponse(e *network.EventResponseReceived) {
	if e.Response == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.RequestID != s.docRequest {
		return
	}
	s.status = int(e.Response.Status)
	s.contentType = e.Response.MimeType
	s.headers = convertHeaders(e.Response.Headers)
	if ct := firstHeader(s.headers, "Content-Type"); ct != "" {
		s.contentType = ct
	}
}

func (s *chromeSession) onPaused(e *fetch.EventRequestPaused) {
	var action chromedp.Action = fetch.ContinueRequest(e.RequestID)
	if e.Request != nil && isBlockedImage(e.Request.URL) {
		action = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient)
	}
	if err := chromedp.Run(s.ctx, action); err != nil && s.ctx.Err() == nil {
		s.logger.Debug("failed to resolve paused request", "error", err)
	}
}

// isBlockedImage reports whether rawURL points at a blocked image type.
// The query string is ignored.
func isBlockedImage(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return blockedImageExtensions[strings.ToLower(path.Ext(u.Path))]
}

// convertHeaders turns CDP headers into canonical multi-value headers.
// CDP joins repeated headers such as Set-Cookie with newlines.
func convertHeaders(h network.Headers) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, v := range h {
		name := canonicalHeader(k)
		for _, value := range strings.Split(fmt.Sprint(v), "\n") {
			out[name] = append(out[name], value)
		}
	}
	return out
}

func canonicalHeader(name string) string {
	parts := strings.Split(strings.ToLower(name), "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "-")
}

func firstHeader(h map[string][]string, name string) string {
	if v := h[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrNavigationTimeout, err)
	}
	return err
}

func (s *chromeSession) Navigate(ctx context.Context, rawURL string) error {
	if err := s.run(ctx, s.navTimeout, chromedp.Navigate(rawURL)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", rawURL, err)
	}
	return nil
}

func (s *chromeSession) Refresh(ctx context.Context) error {
	if err := s.run(ctx, s.navTimeout, chromedp.Reload()); err != nil {
		return fmt.Errorf("failed to refresh: %w", err)
	}
	return nil
}

func (s *chromeSession) State(ctx context.Context) (*State, error) {
	s.mu.Lock()
	state := &State{
		StatusCode:  s.status,
		ContentType: s.contentType,
		Headers:     s.headers,
		Request:     s.request,
		Resources:   append([]string(nil), s.resources...),
	}
	docRequest := s.docRequest
	s.mu.Unlock()

	var cookies []*network.Cookie
	err := s.run(ctx, s.navTimeout,
		chromedp.Location(&state.URL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read browser state: %w", err)
	}
	state.Cookies = convertCookies(cookies)

	// HTML is read from the live DOM so script-made changes are visible.
	// Other resources are read as the server sent them.
	if strings.Contains(strings.ToLower(state.ContentType), "html") {
		err = s.run(ctx, s.navTimeout, chromedp.OuterHTML("html", &state.Content, chromedp.ByQuery))
	} else if docRequest != "" {
		err = s.run(ctx, s.navTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
			body, err := network.GetResponseBody(docRequest).Do(ctx)
			state.Content = string(body)
			return err
		}))
	}
	if err != nil {
		s.logger.Debug("failed to read page content", "url", state.URL, "error", err)
	}

	return state, nil
}

func convertCookies(cookies []*network.Cookie) []model.Cookie {
	out := make([]model.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, model.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite.String(),
		})
	}
	return out
}

func (s *chromeSession) SetCookies(ctx context.Context, cookies []model.Cookie) error {
	var current string
	if err := s.run(ctx, s.navTimeout, chromedp.Location(&current)); err != nil {
		return fmt.Errorf("failed to read current location: %w", err)
	}

	actions := make([]chromedp.Action, 0, len(cookies))
	for _, c := range cookies {
		p := network.SetCookie(c.Name, c.Value).WithHTTPOnly(c.HTTPOnly).WithSecure(c.Secure)
		if c.Domain != "" {
			p = p.WithDomain(c.Domain)
		} else {
			p = p.WithURL(current)
		}
		if c.Path != "" {
			p = p.WithPath(c.Path)
		} else {
			p = p.WithPath("/")
		}
		actions = append(actions, p)
	}

	if err := s.run(ctx, s.navTimeout, actions...); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

// submitScript fills and submits document.forms[index].
const submitScript = `(function(index, values) {
	const form = document.forms[index];
	if (!form) { return false; }
	for (const [key, value] of Object.entries(values)) {
		let el = form.elements.namedItem(key);
		if (!el) { el = form.querySelector('#' + CSS.escape(key)); }
		if (el && 'value' in el) { el.value = value; }
	}
	if (typeof form.requestSubmit === 'function') { form.requestSubmit(); } else { form.submit(); }
	return true;
})(%d, %s)`

func (s *chromeSession) SubmitForm(ctx context.Context, formIndex int, values map[string]string) error {
	encoded, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode form values: %w", err)
	}

	// Drop load events from earlier navigations.
	select {
	case <-s.loadCh:
	default:
	}

	var found bool
	script := fmt.Sprintf(submitScript, formIndex, encoded)
	if err := s.run(ctx, s.navTimeout, chromedp.Evaluate(script, &found)); err != nil {
		return fmt.Errorf("failed to submit form %d: %w", formIndex, err)
	}
	if !found {
		return fmt.Errorf("%w: index %d", ErrFormNotFound, formIndex)
	}

	timer := time.NewTimer(s.settleTimeout)
	defer timer.Stop()
	select {
	case <-s.loadCh:
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *chromeSession) Alerts(ctx context.Context, wait time.Duration) []string {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		s.mu.Lock()
		if len(s.alerts) > 0 {
			alerts := s.alerts
			s.alerts = nil
			s.mu.Unlock()
			return alerts
		}
		s.mu.Unlock()

		select {
		case <-s.alertCh:
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *chromeSession) DismissAlerts(_ context.Context) error {
	s.mu.Lock()
	s.alerts = nil
	s.mu.Unlock()

	select {
	case <-s.alertCh:
	default:
	}
	return nil
}

// Close cancels the browser contexts. If Chrome does not exit within
// closeTimeout the whole process tree is killed.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		var proc *os.Process
		if c := chromedp.FromContext(s.ctx); c != nil && c.Browser != nil {
			proc = c.Browser.Process()
		}

		done := make(chan struct{})
		go func() {
			s.browserCancel()
			s.allocCancel()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(closeTimeout):
			killProcessTree(proc)
			s.logger.Warn("browser cleanup timed out, killed chrome process tree")
		}
	})
	return nil
}
