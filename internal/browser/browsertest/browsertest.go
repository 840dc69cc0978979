// Package browsertest provides an in-memory browser for tests.
//
// A Site maps paths to handlers. Browsers launched against the site keep
// their own cookie jar, so two browsers behave like an authenticated and an
// anonymous visitor. Alert dialogs are emulated: every alert("text") call in
// a served HTML body opens one alert when the page loads.
package browsertest

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/xssweep/internal/browser"
	"github.com/nao1215/xssweep/internal/model"
)

// Request is what a handler sees.
type Request struct {
	Method  string
	URL     *url.URL
	Form    map[string]string
	Cookies map[string]string
}

// Response is what a handler returns.
type Response struct {
	// Status defaults to 200.
	Status int

	// ContentType defaults to text/html.
	ContentType string

	Body    string
	Headers map[string][]string

	// SetCookies are stored in the visiting browser's jar.
	SetCookies []model.Cookie

	// ClearCookies are removed from the visiting browser's jar.
	ClearCookies []string

	// Redirect, when set, is followed with a GET.
	Redirect string

	// Err makes the navigation itself fail.
	Err error
}

// Handler serves one path.
type Handler func(req *Request) *Response

// Site is a fake web application.
type Site struct {
	mu       sync.Mutex
	handlers map[string]Handler
	visits   map[string]int
}

// NewSite creates an empty site.
func NewSite() *Site {
	return &Site{
		handlers: make(map[string]Handler),
		visits:   make(map[string]int),
	}
}

// Handle registers h for path.
func (s *Site) Handle(path string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = h
}

// HandleHTML serves a static HTML body at path.
func (s *Site) HandleHTML(path, body string) {
	s.Handle(path, func(*Request) *Response {
		return &Response{Body: body}
	})
}

// HandleContent serves a static body with the given content type at path.
func (s *Site) HandleContent(path, contentType, body string) {
	s.Handle(path, func(*Request) *Response {
		return &Response{ContentType: contentType, Body: body}
	})
}

// Visits returns how many requests path has received.
func (s *Site) Visits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visits[path]
}

func (s *Site) serve(req *Request) *Response {
	path := req.URL.Path
	if path == "" {
		path = "/"
	}

	s.mu.Lock()
	s.visits[path]++
	h, ok := s.handlers[path]
	s.mu.Unlock()

	if !ok {
		return &Response{Status: 404, Body: "<html><body>not found</body></html>"}
	}
	resp := h(req)
	if resp == nil {
		resp = &Response{}
	}
	return resp
}

// Launcher launches Browsers against a Site.
type Launcher struct {
	site *Site

	mu           sync.Mutex
	failLaunches int
	launched     int
	browsers     []*Browser
}

// NewLauncher creates a launcher for site.
func NewLauncher(site *Site) *Launcher {
	return &Launcher{site: site}
}

// FailNext makes the next n launches fail.
func (l *Launcher) FailNext(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failLaunches = n
}

// Launch starts a new Browser.
func (l *Launcher) Launch(_ context.Context) (browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failLaunches > 0 {
		l.failLaunches--
		return nil, fmt.Errorf("%w: simulated failure", browser.ErrLaunchFailed)
	}
	b := NewBrowser(l.site)
	l.launched++
	l.browsers = append(l.browsers, b)
	return b, nil
}

// Launched returns the number of successful launches.
func (l *Launcher) Launched() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launched
}

// Open returns the number of launched browsers that were not closed.
func (l *Launcher) Open() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, b := range l.browsers {
		if !b.isClosed() {
			n++
		}
	}
	return n
}

// maxHops bounds redirect chains.
const maxHops = 5

var alertCall = regexp.MustCompile(`alert\(\s*["']([^"'<>]*)["']\s*\)`)

// Browser is an in-memory browser.Session.
type Browser struct {
	site *Site

	mu      sync.Mutex
	closed  bool
	jar     map[string]model.Cookie
	current *browser.State
	alerts  []string
}

// NewBrowser creates a browser with an empty cookie jar.
func NewBrowser(site *Site) *Browser {
	return &Browser{
		site: site,
		jar:  make(map[string]model.Cookie),
	}
}

func (b *Browser) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Browser) cookieValues() map[string]string {
	values := make(map[string]string, len(b.jar))
	for name, c := range b.jar {
		values[name] = c.Value
	}
	return values
}

func (b *Browser) cookies() []model.Cookie {
	out := make([]model.Cookie, 0, len(b.jar))
	for _, c := range b.jar {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (b *Browser) load(method, rawURL string, form map[string]string) error {
	if b.closed {
		return browser.ErrSessionClosed
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", rawURL, err)
	}

	for hop := 0; ; hop++ {
		req := &Request{Method: method, URL: u, Form: form, Cookies: b.cookieValues()}
		resp := b.site.serve(req)
		if resp.Err != nil {
			return fmt.Errorf("failed to navigate to %s: %w", u, resp.Err)
		}

		for _, c := range resp.SetCookies {
			b.jar[c.Name] = c
		}
		for _, name := range resp.ClearCookies {
			delete(b.jar, name)
		}

		if resp.Redirect != "" && hop < maxHops {
			next, err := u.Parse(resp.Redirect)
			if err != nil {
				return fmt.Errorf("failed to follow redirect: %w", err)
			}
			u, method, form = next, "GET", nil
			continue
		}

		b.render(req, resp)
		return nil
	}
}

func (b *Browser) render(req *Request, resp *Response) {
	status := resp.Status
	if status == 0 {
		status = 200
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}

	headers := map[string][]string{"Content-Type": {contentType}}
	for k, v := range resp.Headers {
		headers[k] = append([]string(nil), v...)
	}

	state := &browser.State{
		URL:         req.URL.String(),
		StatusCode:  status,
		ContentType: contentType,
		Headers:     headers,
		Content:     resp.Body,
		Request:     model.RequestInfo{Method: req.Method, URL: req.URL.String()},
	}

	if strings.Contains(contentType, "html") {
		state.Resources = subResources(req.URL, resp.Body)
		for _, m := range alertCall.FindAllStringSubmatch(resp.Body, -1) {
			b.alerts = append(b.alerts, m[1])
		}
	}
	b.current = state
}

// subResources returns the script and stylesheet URLs a browser would fetch.
func subResources(base *url.URL, body string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var out []string
	add := func(ref string) {
		if u, err := base.Parse(ref); err == nil {
			out = append(out, u.String())
		}
	}
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("src", ""))
	})
	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		if strings.EqualFold(s.AttrOr("rel", ""), "stylesheet") {
			add(s.AttrOr("href", ""))
		}
	})
	return out
}

// Navigate implements browser.Session.
func (b *Browser) Navigate(_ context.Context, rawURL string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load("GET", rawURL, nil)
}

// Refresh implements browser.Session.
func (b *Browser) Refresh(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil
	}
	return b.load("GET", b.current.URL, nil)
}

// State implements browser.Session.
func (b *Browser) State(_ context.Context) (*browser.State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, browser.ErrSessionClosed
	}
	if b.current == nil {
		return &browser.State{URL: "about:blank", Cookies: b.cookies()}, nil
	}

	state := *b.current
	state.Cookies = b.cookies()
	state.Resources = append([]string(nil), b.current.Resources...)
	return &state, nil
}

// SetCookies implements browser.Session.
func (b *Browser) SetCookies(_ context.Context, cookies []model.Cookie) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return browser.ErrSessionClosed
	}
	for _, c := range cookies {
		b.jar[c.Name] = c
	}
	return nil
}

// SubmitForm implements browser.Session.
func (b *Browser) SubmitForm(_ context.Context, formIndex int, values map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return browser.ErrSessionClosed
	}
	if b.current == nil {
		return fmt.Errorf("%w: index %d", browser.ErrFormNotFound, formIndex)
	}

	forms, err := model.ParseForms(b.current.Content)
	if err != nil || formIndex < 0 || formIndex >= len(forms) {
		return fmt.Errorf("%w: index %d", browser.ErrFormNotFound, formIndex)
	}
	form := forms[formIndex]

	data := make(map[string]string)
	for _, in := range form.Inputs {
		if in.Key() != "" {
			data[in.Key()] = in.Value
		}
	}
	for k, v := range values {
		if _, ok := data[k]; ok {
			data[k] = v
		}
	}

	base, err := url.Parse(b.current.URL)
	if err != nil {
		return fmt.Errorf("failed to parse current URL: %w", err)
	}
	action, err := base.Parse(form.Action)
	if err != nil {
		return fmt.Errorf("failed to resolve form action: %w", err)
	}

	if form.Method == "POST" {
		return b.load("POST", action.String(), data)
	}

	q := action.Query()
	for k, v := range data {
		q.Set(k, v)
	}
	action.RawQuery = q.Encode()
	return b.load("GET", action.String(), data)
}

// Alerts implements browser.Session. The fake never waits.
func (b *Browser) Alerts(_ context.Context, _ time.Duration) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	alerts := b.alerts
	b.alerts = nil
	return alerts
}

// DismissAlerts implements browser.Session.
func (b *Browser) DismissAlerts(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerts = nil
	return nil
}

// Close implements browser.Session.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
