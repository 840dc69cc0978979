package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/xssweep/internal/browser"
	"github.com/nao1215/xssweep/internal/browser/browsertest"
	"github.com/nao1215/xssweep/internal/model"
)

const testHost = "http://app.test"

func newTestSpider(site *browsertest.Site, opts ...SpiderOption) (*Spider, *browsertest.Launcher) {
	launcher := browsertest.NewLauncher(site)
	opts = append([]SpiderOption{WithRateLimit(0)}, opts...)
	return NewSpider(launcher, opts...), launcher
}

// newLoginSite serves an application with a login form, an account page that
// requires the sid cookie and, when withLogout is set, a logout link.
func newLoginSite(withLogout bool) *browsertest.Site {
	site := browsertest.NewSite()
	site.HandleHTML("/", `<html><body><h1>Home</h1><a href="/login">login</a></body></html>`)
	site.Handle("/login", func(req *browsertest.Request) *browsertest.Response {
		if req.Method == "POST" {
			if req.Form["user"] == "alice" && req.Form["pass"] == "secret" {
				return &browsertest.Response{
					SetCookies: []model.Cookie{{Name: "sid", Value: "1", Path: "/"}},
					Redirect:   "/account",
				}
			}
			return &browsertest.Response{Body: `<html><body>bad credentials</body></html>`}
		}
		return &browsertest.Response{Body: `<html><body>
			<form action="/login" method="POST">
				<input name="user">
				<input type="password" name="pass">
			</form></body></html>`}
	})

	account := `<html><body><h1>Welcome alice</h1><a href="/">home</a></body></html>`
	if withLogout {
		account = `<html><body><h1>Welcome alice</h1><a href="/logout">logout</a><a href="/">home</a></body></html>`
	}
	site.Handle("/account", func(req *browsertest.Request) *browsertest.Response {
		if req.Cookies["sid"] != "1" {
			return &browsertest.Response{Redirect: "/login"}
		}
		return &browsertest.Response{Body: account}
	})
	site.Handle("/logout", func(*browsertest.Request) *browsertest.Response {
		return &browsertest.Response{ClearCookies: []string{"sid"}, Redirect: "/"}
	})
	return site
}

func pageURLs(pages []*model.Page) map[string]model.PageKind {
	out := make(map[string]model.PageKind, len(pages))
	for _, p := range pages {
		out[p.URL] = p.Kind
	}
	return out
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	t.Run("single page", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		site.HandleHTML("/", `<html><body>hello</body></html>`)
		spider, launcher := newTestSpider(site)

		result, err := spider.Discover(context.Background(), testHost+"/", DiscoverOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Pages) != 1 || len(result.Troublesome) != 0 {
			t.Fatalf("expected 1 page and no troublesome URL, got %d and %v", len(result.Pages), result.Troublesome)
		}
		if result.Pages[0].Kind != model.PageKindAnonymous || result.Pages[0].Hash == "" {
			t.Errorf("unexpected page: %+v", result.Pages[0])
		}
		if launcher.Open() != 0 {
			t.Errorf("expected every browser closed, %d open", launcher.Open())
		}
	})

	t.Run("scheme defaults to http", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		site.HandleHTML("/", `<html><body>hello</body></html>`)
		spider, _ := newTestSpider(site)

		result, err := spider.Discover(context.Background(), "//app.test/", DiscoverOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Pages[0].URL != testHost+"/" {
			t.Errorf("got %q", result.Pages[0].URL)
		}
	})

	t.Run("invalid start URL", func(t *testing.T) {
		t.Parallel()

		spider, _ := newTestSpider(browsertest.NewSite())
		_, err := spider.Discover(context.Background(), "not a url", DiscoverOptions{})
		if !errors.Is(err, ErrInvalidStartURL) {
			t.Errorf("expected ErrInvalidStartURL, got %v", err)
		}
	})

	t.Run("nothing reachable", func(t *testing.T) {
		t.Parallel()

		spider, _ := newTestSpider(browsertest.NewSite())
		result, err := spider.Discover(context.Background(), testHost+"/", DiscoverOptions{})
		if !errors.Is(err, ErrNoPagesDiscovered) {
			t.Fatalf("expected ErrNoPagesDiscovered, got %v", err)
		}
		if len(result.Troublesome) != 1 {
			t.Errorf("expected start URL to be troublesome, got %v", result.Troublesome)
		}
	})

	t.Run("launch is retried once", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		site.HandleHTML("/", `<html><body>hello</body></html>`)

		spider, launcher := newTestSpider(site)
		launcher.FailNext(1)
		if _, err := spider.Discover(context.Background(), testHost+"/", DiscoverOptions{}); err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}

		spider, launcher = newTestSpider(site)
		launcher.FailNext(2)
		_, err := spider.Discover(context.Background(), testHost+"/", DiscoverOptions{})
		if !errors.Is(err, browser.ErrLaunchFailed) {
			t.Errorf("expected ErrLaunchFailed, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		site.HandleHTML("/", `<html><body>hello</body></html>`)
		spider, _ := newTestSpider(site)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := spider.Discover(ctx, testHost+"/", DiscoverOptions{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestDiscoverTraversal(t *testing.T) {
	t.Parallel()

	t.Run("failing pages become troublesome", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		site.HandleHTML("/", `<html><body>
			<a href="/ok">ok</a><a href="/missing">missing</a><a href="/broken">broken</a>
			<a href="/empty">empty</a><a href="https://other.test/">other</a></body></html>`)
		site.HandleHTML("/ok", `<html><body>ok</body></html>`)
		site.Handle("/broken", func(*browsertest.Request) *browsertest.Response {
			return &browsertest.Response{Err: errors.New("connection reset")}
		})
		site.Handle("/empty", func(*browsertest.Request) *browsertest.Response {
			return &browsertest.Response{Status: 500}
		})
		spider, _ := newTestSpider(site)

		result, err := spider.Discover(context.Background(), testHost+"/", DiscoverOptions{Recursive: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Pages) != 2 {
			t.Errorf("expected 2 pages, got %v", pageURLs(result.Pages))
		}
		if len(result.Troublesome) != 3 {
			t.Errorf("expected 3 troublesome URLs, got %v", result.Troublesome)
		}
		if spider.Stats().Troublesome != 3 {
			t.Errorf("expected troublesome stat 3, got %d", spider.Stats().Troublesome)
		}
	})

	t.Run("respects max pages", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		site.HandleHTML("/", `<html><body><a href="/a">a</a><a href="/b">b</a><a href="/c">c</a></body></html>`)
		site.HandleHTML("/a", `<html><body>a</body></html>`)
		site.HandleHTML("/b", `<html><body>b</body></html>`)
		site.HandleHTML("/c", `<html><body>c</body></html>`)
		spider, _ := newTestSpider(site)

		result, err := spider.Discover(context.Background(), testHost+"/", DiscoverOptions{MaxPages: 2, Recursive: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Pages) != 2 {
			t.Errorf("expected 2 pages, got %d", len(result.Pages))
		}
		if site.Visits("/c") != 0 {
			t.Error("crawl must stop once the limit is reached")
		}
	})

	t.Run("deduplicates by URL and content", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		site.HandleHTML("/", `<html><body><a href="/a">a</a><a href="/a#top">again</a><a href="/copy">copy</a></body></html>`)
		site.HandleHTML("/a", `<html><body>same</body></html>`)
		site.HandleHTML("/copy", `<html><body>same</body></html>`)
		spider, _ := newTestSpider(site)

		result, err := spider.Discover(context.Background(), testHost+"/", DiscoverOptions{Recursive: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Pages) != 2 {
			t.Errorf("expected 2 unique pages, got %v", pageURLs(result.Pages))
		}
		if site.Visits("/a") != 1 {
			t.Errorf("expected /a visited once, got %d", site.Visits("/a"))
		}
	})

	t.Run("non-recursive follows loaded resources only", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		site.HandleHTML("/", `<html><head>
			<script src="/app.js"></script>
			<link rel="stylesheet" href="/style.css">
		</head><body><a href="/a">a</a></body></html>`)
		site.HandleContent("/app.js", "application/javascript", "var x = location.hash;")
		site.HandleContent("/style.css", "text/css", "body{}")
		site.HandleHTML("/a", `<html><body>a</body></html>`)
		spider, _ := newTestSpider(site)

		result, err := spider.Discover(context.Background(), testHost+"/", DiscoverOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		urls := pageURLs(result.Pages)
		if len(urls) != 3 {
			t.Errorf("expected page, script and stylesheet, got %v", urls)
		}
		if _, ok := urls[testHost+"/app.js"]; !ok {
			t.Error("expected script page")
		}
		if site.Visits("/a") != 0 {
			t.Error("anchors must not be followed without recursion")
		}
	})

	t.Run("ignore patterns and scope", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		site.HandleHTML("/", `<html><body><a href="/admin/panel">admin</a><a href="/files/a.pdf">pdf</a></body></html>`)
		site.HandleHTML("/admin/panel", `<html><body>admin</body></html>`)
		site.HandleContent("/files/a.pdf", "application/pdf", "%PDF")
		spider, _ := newTestSpider(site,
			WithIgnorePatterns([]string{"*.pdf"}),
			WithScope(NewScope([]string{"admin"}, nil, nil)),
		)

		result, err := spider.Discover(context.Background(), testHost+"/", DiscoverOptions{Recursive: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if site.Visits("/files/a.pdf") != 0 {
			t.Error("ignored path must not be visited")
		}
		for _, p := range result.Pages {
			want := p.URL == testHost+"/admin/panel"
			if p.Excluded != want {
				t.Errorf("page %s: Excluded = %v, want %v", p.URL, p.Excluded, want)
			}
		}
	})
}

func TestDiscoverSessions(t *testing.T) {
	t.Parallel()

	creds := &Credentials{Username: "alice", Password: "secret"}

	t.Run("login yields session page", func(t *testing.T) {
		t.Parallel()

		site := newLoginSite(false)
		spider, launcher := newTestSpider(site)

		result, err := spider.Discover(context.Background(), testHost+"/", DiscoverOptions{Recursive: true, Credentials: creds})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		urls := pageURLs(result.Pages)
		if kind, ok := urls[testHost+"/account"]; !ok || kind != model.PageKindSession {
			t.Fatalf("expected session page for /account, got %v", urls)
		}
		if len(result.Pages) != 3 {
			t.Errorf("expected 3 pages, got %v", urls)
		}

		for _, p := range result.Pages {
			if p.Kind != model.PageKindSession {
				continue
			}
			if p.Session.LoginURL != testHost+"/login" {
				t.Errorf("unexpected login URL %q", p.Session.LoginURL)
			}
			if len(p.Session.Cookies) == 0 || p.Session.Cookies[0].Name != "sid" {
				t.Errorf("expected session cookie evidence, got %v", p.Session.Cookies)
			}
			if p.Session.Divergence == 0 {
				t.Error("expected non-zero divergence")
			}
		}
		if launcher.Launched() != 2 || launcher.Open() != 0 {
			t.Errorf("expected main and shadow browsers launched and closed, launched %d open %d",
				launcher.Launched(), launcher.Open())
		}
		if spider.Stats().SessionPages != 1 {
			t.Errorf("expected 1 session page in stats, got %d", spider.Stats().SessionPages)
		}
	})

	t.Run("wrong credentials", func(t *testing.T) {
		t.Parallel()

		site := newLoginSite(false)
		spider, _ := newTestSpider(site)

		result, err := spider.Discover(context.Background(), testHost+"/", DiscoverOptions{
			Recursive:   true,
			Credentials: &Credentials{Username: "alice", Password: "wrong"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, p := range result.Pages {
			if p.IsSession() {
				t.Errorf("unexpected session page %s", p.URL)
			}
		}
	})

	t.Run("logout is excluded and login retried", func(t *testing.T) {
		t.Parallel()

		site := newLoginSite(true)
		spider, _ := newTestSpider(site)

		result, err := spider.Discover(context.Background(), testHost+"/", DiscoverOptions{Recursive: true, Credentials: creds})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		urls := pageURLs(result.Pages)
		if kind, ok := urls[testHost+"/account"]; !ok || kind != model.PageKindSession {
			t.Errorf("expected session page after retry, got %v", urls)
		}
		if _, ok := urls[testHost+"/logout"]; ok {
			t.Error("logout URL must not be a page")
		}
		if site.Visits("/logout") != 1 {
			t.Errorf("expected logout visited once, got %d", site.Visits("/logout"))
		}
	})

	t.Run("imported cookies", func(t *testing.T) {
		t.Parallel()

		site := newLoginSite(false)
		spider, _ := newTestSpider(site, WithCookies([]model.Cookie{{Name: "sid", Value: "1", Path: "/"}}))

		result, err := spider.Discover(context.Background(), testHost+"/account", DiscoverOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Pages) == 0 || !result.Pages[0].IsSession() {
			t.Fatalf("expected session start page, got %v", pageURLs(result.Pages))
		}
		if !result.Pages[0].Session.ViaCookieImport {
			t.Error("expected evidence to record the cookie import")
		}
	})
}
