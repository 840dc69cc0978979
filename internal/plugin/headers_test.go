package plugin

import (
	"context"
	"strings"
	"testing"

	"github.com/nao1215/xssweep/internal/model"
)

func htmlPage(url string, headers map[string][]string) *model.Page {
	return &model.Page{URL: url, ContentType: "text/html", Headers: headers}
}

func TestHeadersPlugin(t *testing.T) {
	t.Parallel()

	t.Run("csp checks", func(t *testing.T) {
		t.Parallel()

		pages := []*model.Page{
			htmlPage("http://app.test/", nil),
			htmlPage("http://app.test/report", map[string][]string{
				"Content-Security-Policy-Report-Only": {"default-src 'self'"},
			}),
			htmlPage("http://app.test/weak", map[string][]string{
				"Content-Security-Policy": {"script-src 'self' 'unsafe-inline' 'unsafe-eval'"},
			}),
			htmlPage("http://app.test/strict", map[string][]string{
				"Content-Security-Policy": {"script-src 'self'"},
			}),
			{URL: "http://app.test/app.js", ContentType: "application/javascript"},
		}

		res, err := NewHeadersPlugin(Options{}).Run(context.Background(), &Env{Pages: pages})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		missing := res.Check(model.FindingCSPMissing)
		if len(missing.Pages) != 2 {
			t.Fatalf("expected 2 pages without policy, got %+v", missing.Pages)
		}
		if missing.Pages[1].Problems[0] != "only a report-only policy is sent" {
			t.Errorf("unexpected problem: %q", missing.Pages[1].Problems[0])
		}
		for _, finding := range []string{model.FindingCSPUnsafeInline, model.FindingCSPUnsafeEval} {
			c := res.Check(finding)
			if len(c.Pages) != 1 || c.Pages[0].URL != "http://app.test/weak" {
				t.Errorf("%s: expected weak page only, got %+v", finding, c.Pages)
			}
		}
	})

	t.Run("cookie attributes", func(t *testing.T) {
		t.Parallel()

		pages := []*model.Page{
			htmlPage("http://app.test/", map[string][]string{
				"Content-Security-Policy": {"script-src 'self'"},
				"Set-Cookie": {
					"sid=abc123; Path=/",
					"pref=dark; HttpOnly; SameSite=Lax",
				},
			}),
		}

		res, err := NewHeadersPlugin(Options{}).Run(context.Background(), &Env{Pages: pages})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, finding := range []string{model.FindingCookieNoHTTPOnly, model.FindingCookieNoSameSite} {
			c := res.Check(finding)
			if len(c.Pages) != 1 || len(c.Pages[0].Problems) != 1 {
				t.Fatalf("%s: expected one problem, got %+v", finding, c.Pages)
			}
			problem := c.Pages[0].Problems[0]
			if strings.Contains(problem, "abc123") {
				t.Errorf("%s: cookie value leaked: %q", finding, problem)
			}
			if problem != "sid=<redacted>; Path=/" {
				t.Errorf("%s: unexpected problem %q", finding, problem)
			}
		}
	})

	t.Run("session cookies readable by scripts", func(t *testing.T) {
		t.Parallel()

		page := htmlPage("http://app.test/account", map[string][]string{
			"Content-Security-Policy": {"script-src 'self'"},
		})
		page.Kind = model.PageKindSession
		page.Session = &model.SessionEvidence{
			Cookies: []model.Cookie{
				{Name: "sid", Value: "secret"},
				{Name: "csrf", Value: "token", HTTPOnly: true},
			},
		}

		res, err := NewHeadersPlugin(Options{}).Run(context.Background(), &Env{Pages: []*model.Page{page}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		c := res.Check(model.FindingCookieNoHTTPOnly)
		if len(c.Pages) != 1 || len(c.Pages[0].Problems) != 1 {
			t.Fatalf("expected one problem, got %+v", c.Pages)
		}
		if got := c.Pages[0].Problems[0]; got != "session cookie sid=<redacted> is readable by scripts" {
			t.Errorf("unexpected problem %q", got)
		}
	})

	t.Run("duplicate pages are checked once", func(t *testing.T) {
		t.Parallel()

		pages := []*model.Page{
			htmlPage("http://app.test/", nil),
			htmlPage("https://app.test/#top", nil),
		}
		res, err := NewHeadersPlugin(Options{}).Run(context.Background(), &Env{Pages: pages})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := res.FindingCount(); n != 1 {
			t.Errorf("expected 1 finding, got %d", n)
		}
	})
}

func TestSanitizeCookieValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cookie string
		want   string
	}{
		{name: "with attributes", cookie: "sid=abc; Path=/; Secure", want: "sid=<redacted>; Path=/; Secure"},
		{name: "bare pair", cookie: "sid=abc", want: "sid=<redacted>"},
		{name: "no value", cookie: "flag", want: "flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := sanitizeCookieValue(tt.cookie); got != tt.want {
				t.Errorf("sanitizeCookieValue(%q) = %q, want %q", tt.cookie, got, tt.want)
			}
		})
	}
}
