package config

import (
	"net/url"
	"strings"
)

// SiteConfig holds per-site settings. Empty fields inherit from the
// file's defaults.
type SiteConfig struct {
	// Username and Password fill login forms.
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// CookieFile imports an existing session.
	CookieFile string `yaml:"cookieFile,omitempty"`

	// Blacklist and Whitelist are URL words deciding which pages the
	// plugins see. A whitelist wins over a blacklist.
	Blacklist []string `yaml:"blacklist,omitempty"`
	Whitelist []string `yaml:"whitelist,omitempty"`

	// IgnorePatterns are URL path globs the crawler skips.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, restrict the crawl to matching paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// Plugins overrides the selected checks.
	Plugins []string `yaml:"plugins,omitempty"`

	// Aggressive enables live form submission when true. Nil inherits.
	Aggressive *bool `yaml:"aggressive,omitempty"`

	// MaxPages overrides the page limit when non-zero.
	MaxPages int `yaml:"maxPages,omitempty"`
}

// File represents the .xssweep configuration file.
type File struct {
	// Sites maps hosts (e.g., "app.example.com:8080") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the settings for target merged over the defaults.
// target may be a full URL or a bare host; lookup is by host.
func (cf *File) GetSiteConfig(target string) SiteConfig {
	if cf == nil {
		return SiteConfig{}
	}
	if site, ok := cf.Sites[target]; ok {
		return cf.Defaults.merge(site)
	}
	if site, ok := cf.Sites[hostOf(target)]; ok {
		return cf.Defaults.merge(site)
	}
	return cf.Defaults
}

// merge returns s with every non-empty field of override applied.
func (s SiteConfig) merge(override SiteConfig) SiteConfig {
	result := s
	if override.Username != "" || override.Password != "" {
		result.Username = override.Username
		result.Password = override.Password
	}
	if override.CookieFile != "" {
		result.CookieFile = override.CookieFile
	}
	if len(override.Blacklist) > 0 {
		result.Blacklist = override.Blacklist
	}
	if len(override.Whitelist) > 0 {
		result.Whitelist = override.Whitelist
	}
	if len(override.IgnorePatterns) > 0 {
		result.IgnorePatterns = override.IgnorePatterns
	}
	if len(override.FollowPatterns) > 0 {
		result.FollowPatterns = override.FollowPatterns
	}
	if len(override.Plugins) > 0 {
		result.Plugins = override.Plugins
	}
	if override.Aggressive != nil {
		result.Aggressive = override.Aggressive
	}
	if override.MaxPages != 0 {
		result.MaxPages = override.MaxPages
	}
	return result
}

func hostOf(target string) string {
	raw := strings.TrimSpace(target)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return target
	}
	return strings.ToLower(u.Host)
}
