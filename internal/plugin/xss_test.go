package plugin_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/xssweep/internal/browser/browsertest"
	"github.com/nao1215/xssweep/internal/model"
	"github.com/nao1215/xssweep/internal/plugin"
	"github.com/nao1215/xssweep/internal/xss"
)

const searchPage = `<html><body><form action="/search" method="GET"><input name="q"></form></body></html>`

// crawlPage loads path the way the crawler would, optionally with cookies.
func crawlPage(t *testing.T, site *browsertest.Site, path string, cookies ...model.Cookie) *model.Page {
	t.Helper()

	b := browsertest.NewBrowser(site)
	defer b.Close()

	ctx := context.Background()
	if err := b.SetCookies(ctx, cookies); err != nil {
		t.Fatalf("failed to set cookies: %v", err)
	}
	if err := b.Navigate(ctx, "http://app.test"+path); err != nil {
		t.Fatalf("failed to navigate: %v", err)
	}
	state, err := b.State(ctx)
	if err != nil {
		t.Fatalf("failed to read state: %v", err)
	}
	return state.Page("")
}

func newReflectiveSite() *browsertest.Site {
	site := browsertest.NewSite()
	site.HandleHTML("/", searchPage)
	site.Handle("/search", func(req *browsertest.Request) *browsertest.Response {
		return &browsertest.Response{Body: "<html><body>results for " + req.URL.Query().Get("q") + "</body></html>"}
	})
	return site
}

func TestXSSPlugin(t *testing.T) {
	t.Parallel()

	t.Run("passive mode only warns", func(t *testing.T) {
		t.Parallel()

		site := newReflectiveSite()
		launcher := browsertest.NewLauncher(site)
		env := &plugin.Env{Pages: []*model.Page{crawlPage(t, site, "/")}, Launcher: launcher}

		res, err := plugin.NewXSSPlugin(plugin.Options{}).Run(context.Background(), env)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if w := res.Check(model.FindingInjectionSkipped).Warning; !strings.Contains(w, "incomplete") {
			t.Errorf("expected incomplete warning, got %q", w)
		}
		if site.Visits("/search") != 0 || launcher.Launched() != 0 {
			t.Error("passive mode must not submit forms")
		}
	})

	t.Run("reflected xss", func(t *testing.T) {
		t.Parallel()

		site := newReflectiveSite()
		launcher := browsertest.NewLauncher(site)
		env := &plugin.Env{Pages: []*model.Page{crawlPage(t, site, "/")}, Launcher: launcher}

		res, err := plugin.NewXSSPlugin(plugin.Options{Aggressive: true}).Run(context.Background(), env)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		c := res.Check(model.FindingReflectedXSS)
		if len(c.Pages) != 1 {
			t.Fatalf("expected one reflected finding, got %+v", c.Pages)
		}
		want := `form #0 input "q" executes <script>alert("{{marker}}")</script> (marker xssmark1)`
		if got := c.Pages[0].Problems[0]; got != want {
			t.Errorf("unexpected problem:\n got %s\nwant %s", got, want)
		}
		if n := len(res.Check(model.FindingStoredXSS).Pages); n != 0 {
			t.Errorf("expected no stored finding, got %d", n)
		}
		if launcher.Open() != 0 {
			t.Errorf("expected every browser closed, %d open", launcher.Open())
		}
	})

	t.Run("stored xss", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		var entries []string
		site.Handle("/guestbook", func(req *browsertest.Request) *browsertest.Response {
			if req.Method == "POST" {
				entries = append(entries, req.Form["comment"])
				return &browsertest.Response{Redirect: "/guestbook"}
			}
			body := "<html><body>" + strings.Join(entries, "<hr>")
			body += `<form method="POST" action="/guestbook"><textarea name="comment"></textarea></form></body></html>`
			return &browsertest.Response{Body: body}
		})
		env := &plugin.Env{
			Pages:    []*model.Page{crawlPage(t, site, "/guestbook")},
			Launcher: browsertest.NewLauncher(site),
		}

		res, err := plugin.NewXSSPlugin(plugin.Options{Aggressive: true}).Run(context.Background(), env)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := len(res.Check(model.FindingStoredXSS).Pages); n != 1 {
			t.Errorf("expected one stored finding, got %d", n)
		}
	})

	t.Run("session page uses session cookies", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		site.Handle("/account", func(req *browsertest.Request) *browsertest.Response {
			if req.Cookies["sid"] != "1" {
				return &browsertest.Response{Body: "<html><body>please log in</body></html>"}
			}
			return &browsertest.Response{Body: `<html><body>hello ` + req.URL.Query().Get("name") +
				`<form action="/account" method="GET"><input name="name"></form></body></html>`}
		})

		sid := model.Cookie{Name: "sid", Value: "1"}
		page := crawlPage(t, site, "/account", sid)
		page.Kind = model.PageKindSession
		page.Session = &model.SessionEvidence{Cookies: []model.Cookie{sid}}

		launcher := browsertest.NewLauncher(site)
		env := &plugin.Env{Pages: []*model.Page{page}, Launcher: launcher}

		res, err := plugin.NewXSSPlugin(plugin.Options{Aggressive: true}).Run(context.Background(), env)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := len(res.Check(model.FindingReflectedXSS).Pages); n != 1 {
			t.Errorf("expected one reflected finding on the session page, got %d", n)
		}
		if launcher.Launched() != 1 {
			t.Errorf("expected only the session browser, got %d launches", launcher.Launched())
		}
	})

	t.Run("protected page is skipped", func(t *testing.T) {
		t.Parallel()

		site := newReflectiveSite()
		page := crawlPage(t, site, "/")
		page.Headers["Content-Security-Policy"] = []string{"script-src 'self'; img-src 'self'"}
		env := &plugin.Env{Pages: []*model.Page{page}, Launcher: browsertest.NewLauncher(site)}

		res, err := plugin.NewXSSPlugin(plugin.Options{Aggressive: true}).Run(context.Background(), env)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := len(res.Check(model.FindingCSPProtected).Pages); n != 1 {
			t.Errorf("expected protected page reported, got %d", n)
		}
		if site.Visits("/search") != 0 {
			t.Error("protected page must not be submitted")
		}
	})

	t.Run("payload file without markers", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "payloads.txt")
		if err := os.WriteFile(path, []byte("<script>alert(1)</script>\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		site := newReflectiveSite()
		env := &plugin.Env{Pages: []*model.Page{crawlPage(t, site, "/")}, Launcher: browsertest.NewLauncher(site)}

		_, err := plugin.NewXSSPlugin(plugin.Options{Aggressive: true, PayloadFile: path}).Run(context.Background(), env)
		if !errors.Is(err, xss.ErrEmptyCorpus) {
			t.Errorf("expected ErrEmptyCorpus, got %v", err)
		}
	})
}
