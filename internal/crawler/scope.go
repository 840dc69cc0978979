package crawler

import (
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
)

// Scope decides which discovered pages are handed to the plugins.
// Words are matched as substrings of the page URL.
type Scope struct {
	blacklist []string
	whitelist []string
}

// NewScope creates a scope from black and white word lists.
// When both lists are non-empty the whitelist takes precedence and the
// blacklist is discarded.
func NewScope(blacklist, whitelist []string, logger *slog.Logger) *Scope {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scope{
		blacklist: nonEmpty(blacklist),
		whitelist: nonEmpty(whitelist),
	}
	if len(s.blacklist) > 0 && len(s.whitelist) > 0 {
		logger.Warn("both blacklist and whitelist given, ignoring blacklist",
			"blacklist", len(s.blacklist), "whitelist", len(s.whitelist))
		s.blacklist = nil
	}
	return s
}

func nonEmpty(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Excluded reports whether a page at rawURL must be skipped by the plugins.
func (s *Scope) Excluded(rawURL string) bool {
	if s == nil {
		return false
	}

	if len(s.whitelist) > 0 {
		for _, w := range s.whitelist {
			if strings.Contains(rawURL, w) {
				return false
			}
		}
		return true
	}

	for _, w := range s.blacklist {
		if strings.Contains(rawURL, w) {
			return true
		}
	}
	return false
}

// shouldCrawl checks if a URL should be crawled based on ignore/follow patterns.
//
// Logic:
//  1. If URL matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and URL matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing /* to match everything below a directory
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users/edit"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
		return true
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Slash-free patterns also match the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
