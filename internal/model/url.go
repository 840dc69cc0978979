package model

import (
	"net/url"
	"strings"
)

// NormalizeURL returns the comparison form of a URL: no fragment, lowercase
// host, "/" for an empty path and no scheme. http://a/b and https://a/b
// therefore compare equal.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	u.Scheme = ""
	return strings.TrimPrefix(u.String(), "//")
}

// SameHost reports whether target has the same host (and port) as base.
func SameHost(base, target string) bool {
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	t, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.EqualFold(b.Host, t.Host)
}
