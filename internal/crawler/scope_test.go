package crawler

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/nao1215/xssweep/internal/browser/browsertest"
)

// TestMatchPattern tests glob pattern matching.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"admin prefix match", "/admin/*", "/admin/dashboard", true},
		{"admin prefix exact", "/admin/*", "/admin", true},
		{"admin prefix no match", "/admin/*", "/user/profile", false},
		{"admin prefix partial no match", "/admin/*", "/administrator", false},

		{"pdf extension", "*.pdf", "/docs/file.pdf", true},
		{"pdf extension nested", "*.pdf", "/a/b/c/report.pdf", true},
		{"pdf extension no match", "*.pdf", "/docs/file.txt", false},

		{"exact match", "/logout", "/logout", true},
		{"exact no match", "/logout", "/login", false},

		{"wildcard middle", "/api/v?/users", "/api/v1/users", true},
		{"wildcard middle no match", "/api/v?/users", "/api/v10/users", false},

		{"root path", "/", "/", true},
		{"root no match prefix", "/admin/*", "/", false},

		{"segment pattern", "logout*", "/account/logout-now", true},
		{"nested admin", "/admin/*", "/admin/users/edit", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := matchPattern(tt.pattern, tt.path)
			if got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

// TestShouldCrawl tests URL filtering based on patterns.
func TestShouldCrawl(t *testing.T) {
	t.Parallel()

	launcher := browsertest.NewLauncher(browsertest.NewSite())

	t.Run("no patterns allows all", func(t *testing.T) {
		t.Parallel()

		spider := NewSpider(launcher)
		if !spider.shouldCrawl("http://app.test/any/path") {
			t.Error("expected all URLs to be allowed when no patterns set")
		}
	})

	t.Run("ignore takes precedence over follow", func(t *testing.T) {
		t.Parallel()

		spider := NewSpider(launcher,
			WithIgnorePatterns([]string{"/api/internal/*", "*.pdf"}),
			WithFollowPatterns([]string{"/api/*"}),
		)

		tests := []struct {
			url  string
			want bool
		}{
			{"http://app.test/api/v1/users", true},
			{"http://app.test/api/internal/secret", false},
			{"http://app.test/api/doc.pdf", false},
			{"http://app.test/public/page", false},
		}

		for _, tt := range tests {
			if got := spider.shouldCrawl(tt.url); got != tt.want {
				t.Errorf("shouldCrawl(%q) = %v, want %v", tt.url, got, tt.want)
			}
		}
	})

	t.Run("invalid URL returns false", func(t *testing.T) {
		t.Parallel()

		spider := NewSpider(launcher)
		if spider.shouldCrawl("://invalid") {
			t.Error("expected invalid URL to return false")
		}
	})

	t.Run("empty path treated as root", func(t *testing.T) {
		t.Parallel()

		spider := NewSpider(launcher, WithFollowPatterns([]string{"/"}))
		if !spider.shouldCrawl("http://app.test") {
			t.Error("expected empty path to match root pattern")
		}
	})
}

func TestScope(t *testing.T) {
	t.Parallel()

	t.Run("nil scope excludes nothing", func(t *testing.T) {
		t.Parallel()

		var s *Scope
		if s.Excluded("http://app.test/admin") {
			t.Error("nil scope must not exclude")
		}
	})

	t.Run("blacklist excludes matching URLs", func(t *testing.T) {
		t.Parallel()

		s := NewScope([]string{"admin", " "}, nil, nil)
		if !s.Excluded("http://app.test/admin/users") {
			t.Error("expected admin page to be excluded")
		}
		if s.Excluded("http://app.test/shop") {
			t.Error("blank words must be ignored")
		}
	})

	t.Run("whitelist keeps only matching URLs", func(t *testing.T) {
		t.Parallel()

		s := NewScope(nil, []string{"shop"}, nil)
		if s.Excluded("http://app.test/shop/cart") {
			t.Error("expected shop page to be kept")
		}
		if !s.Excluded("http://app.test/blog") {
			t.Error("expected blog page to be excluded")
		}
	})

	t.Run("whitelist wins over blacklist", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		s := NewScope([]string{"shop"}, []string{"shop"}, logger)
		if s.Excluded("http://app.test/shop") {
			t.Error("blacklist must be ignored when a whitelist is set")
		}
		if !strings.Contains(buf.String(), "ignoring blacklist") {
			t.Errorf("expected warning, got %q", buf.String())
		}
	})
}
