package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("loads defaults and sites", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, ".xssweep", `
defaults:
  plugins: [xss, dom_xss]
  maxPages: 20
sites:
  app.test:
    username: alice
    password: secret
    aggressive: true
    ignorePatterns:
      - /logout*
`)
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Defaults.MaxPages != 20 || !slices.Equal(cf.Defaults.Plugins, []string{"xss", "dom_xss"}) {
			t.Errorf("unexpected defaults: %+v", cf.Defaults)
		}
		site := cf.Sites["app.test"]
		if site.Username != "alice" || site.Aggressive == nil || !*site.Aggressive {
			t.Errorf("unexpected site: %+v", site)
		}
	})

	t.Run("empty file yields empty sites", func(t *testing.T) {
		t.Parallel()

		cf, err := LoadConfigFile(writeFile(t, ".xssweep", ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Sites == nil {
			t.Error("expected initialized sites map")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadConfigFile(writeFile(t, ".xssweep", "sites: [unterminated")); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit path", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "custom.yaml", "defaults: {}")
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
	})

	t.Run("explicit path that does not exist", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope")); got != "" {
			t.Errorf("expected empty path, got %s", got)
		}
	})
}

func TestLoadCookieFile(t *testing.T) {
	t.Parallel()

	t.Run("list of cookies", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "cookies.json", `[
  {"name": "sid", "value": "1", "domain": "app.test", "httpOnly": true},
  {"name": "theme", "value": "dark"}
]`)
		cookies, err := LoadCookieFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cookies) != 2 || cookies[0].Name != "sid" || !cookies[0].HTTPOnly {
			t.Errorf("unexpected cookies: %+v", cookies)
		}
	})

	t.Run("single object", func(t *testing.T) {
		t.Parallel()

		cookies, err := LoadCookieFile(writeFile(t, "cookie.json", `{"name": "sid", "value": "1"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cookies) != 1 || cookies[0].Value != "1" {
			t.Errorf("unexpected cookies: %+v", cookies)
		}
	})

	invalid := map[string]string{
		"not json":     `sid=1`,
		"missing name": `[{"value": "1"}]`,
		"empty list":   `[]`,
		"broken json":  `[{"name": "sid"`,
		"json string":  `"sid"`,
	}
	for name, content := range invalid {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadCookieFile(writeFile(t, "cookies.json", content))
			if !errors.Is(err, ErrInvalidCookieFile) {
				t.Errorf("expected ErrInvalidCookieFile, got %v", err)
			}
		})
	}
}

func TestLoadListFile(t *testing.T) {
	t.Parallel()

	t.Run("strips whitespace and newlines", func(t *testing.T) {
		t.Parallel()

		words, err := LoadListFile(writeFile(t, "list.txt", "logout, admin\n , delete ,\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []string{"logout", "admin", "delete"}; !slices.Equal(words, want) {
			t.Errorf("got %v, want %v", words, want)
		}
	})

	t.Run("empty list", func(t *testing.T) {
		t.Parallel()

		_, err := LoadListFile(writeFile(t, "list.txt", " ,\n, "))
		if !errors.Is(err, ErrEmptyListFile) {
			t.Errorf("expected ErrEmptyListFile, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadListFile(filepath.Join(t.TempDir(), "missing")); err == nil {
			t.Error("expected error")
		}
	})
}
