package browsertest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/xssweep/internal/browser"
	"github.com/nao1215/xssweep/internal/model"
)

func TestBrowserNavigate(t *testing.T) {
	t.Parallel()

	site := NewSite()
	site.HandleHTML("/", `<html><head><script src="/app.js"></script><link rel="stylesheet" href="style.css"></head><body>home</body></html>`)
	site.Handle("/old", func(*Request) *Response { return &Response{Redirect: "/"} })
	site.Handle("/slow", func(*Request) *Response { return &Response{Err: browser.ErrNavigationTimeout} })

	ctx := context.Background()
	b := NewBrowser(site)

	t.Run("serves pages and tracks sub-resources", func(t *testing.T) {
		if err := b.Navigate(ctx, "http://a.test/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		state, err := b.State(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !state.Loaded() {
			t.Errorf("expected loaded state, got %+v", state)
		}
		if !state.HasResource("http://a.test/app.js") || !state.HasResource("http://a.test/style.css") {
			t.Errorf("unexpected resources: %v", state.Resources)
		}
	})

	t.Run("unknown path is a 404", func(t *testing.T) {
		if err := b.Navigate(ctx, "http://a.test/missing"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		state, _ := b.State(ctx)
		if state.StatusCode != 404 {
			t.Errorf("got %d, expected 404", state.StatusCode)
		}
	})

	t.Run("follows redirects", func(t *testing.T) {
		if err := b.Navigate(ctx, "http://a.test/old"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		state, _ := b.State(ctx)
		if state.URL != "http://a.test/" {
			t.Errorf("got %q, expected redirect target", state.URL)
		}
	})

	t.Run("navigation errors are returned", func(t *testing.T) {
		err := b.Navigate(ctx, "http://a.test/slow")
		if !errors.Is(err, browser.ErrNavigationTimeout) {
			t.Errorf("expected ErrNavigationTimeout, got %v", err)
		}
	})
}

func TestBrowserSubmitForm(t *testing.T) {
	t.Parallel()

	site := NewSite()
	site.HandleHTML("/", `<form action="/echo" method="post"><input name="q" value="default"><input type="hidden" name="token" value="t1"></form>`)
	site.Handle("/echo", func(r *Request) *Response {
		return &Response{Body: "<p>" + r.Form["q"] + "|" + r.Form["token"] + `</p><script>alert("seen")</script>`}
	})

	ctx := context.Background()
	b := NewBrowser(site)
	if err := b.Navigate(ctx, "http://a.test/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := b.SubmitForm(ctx, 3, nil); !errors.Is(err, browser.ErrFormNotFound) {
		t.Errorf("expected ErrFormNotFound, got %v", err)
	}

	if err := b.SubmitForm(ctx, 0, map[string]string{"q": "typed", "unknown": "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state, _ := b.State(ctx)
	if !strings.Contains(state.Content, "typed|t1") {
		t.Errorf("unexpected content %q", state.Content)
	}
	if state.Request.Method != "POST" {
		t.Errorf("got method %q, expected POST", state.Request.Method)
	}

	alerts := b.Alerts(ctx, 0)
	if len(alerts) != 1 || alerts[0] != "seen" {
		t.Errorf("unexpected alerts: %v", alerts)
	}
	if len(b.Alerts(ctx, 0)) != 0 {
		t.Error("alerts must be cleared after reading")
	}
}

func TestBrowserCookies(t *testing.T) {
	t.Parallel()

	site := NewSite()
	site.Handle("/login", func(*Request) *Response {
		return &Response{SetCookies: []model.Cookie{{Name: "sid", Value: "s1"}}, Redirect: "/account"}
	})
	site.Handle("/account", func(r *Request) *Response {
		if r.Cookies["sid"] == "" {
			return &Response{Body: "please log in"}
		}
		return &Response{Body: "welcome"}
	})
	site.Handle("/logout", func(*Request) *Response {
		return &Response{ClearCookies: []string{"sid"}, Body: "bye"}
	})

	ctx := context.Background()
	authed := NewBrowser(site)
	anon := NewBrowser(site)

	_ = authed.Navigate(ctx, "http://a.test/login")
	_ = anon.Navigate(ctx, "http://a.test/account")

	a, _ := authed.State(ctx)
	n, _ := anon.State(ctx)
	if a.Content != "welcome" || n.Content != "please log in" {
		t.Errorf("cookie jars must be separate: %q / %q", a.Content, n.Content)
	}

	if err := anon.SetCookies(ctx, a.Cookies); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = anon.Refresh(ctx)
	n, _ = anon.State(ctx)
	if n.Content != "welcome" {
		t.Errorf("imported cookie must authenticate, got %q", n.Content)
	}

	_ = authed.Navigate(ctx, "http://a.test/logout")
	a, _ = authed.State(ctx)
	if len(a.Cookies) != 0 {
		t.Errorf("expected cleared jar, got %v", a.Cookies)
	}
}

func TestLauncherTracksOpenBrowsers(t *testing.T) {
	t.Parallel()

	launcher := NewLauncher(NewSite())
	first, _ := launcher.Launch(context.Background())
	second, _ := launcher.Launch(context.Background())

	if launcher.Open() != 2 {
		t.Fatalf("got %d open, expected 2", launcher.Open())
	}
	_ = first.Close()
	_ = second.Close()
	if launcher.Open() != 0 {
		t.Errorf("got %d open, expected 0", launcher.Open())
	}

	if err := first.Navigate(context.Background(), "http://a.test/"); !errors.Is(err, browser.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}
