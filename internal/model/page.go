package model

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"
)

// PageKind tells whether a page is reachable anonymously or only inside
// an authenticated session.
type PageKind int

const (
	// PageKindAnonymous is an ordinary page that renders the same with or without a session.
	PageKindAnonymous PageKind = iota

	// PageKindSession is a page whose authenticated rendering diverges from
	// the anonymous one.
	PageKindSession
)

// String returns a human-readable representation of the page kind.
func (k PageKind) String() string {
	switch k {
	case PageKindAnonymous:
		return "page"
	case PageKindSession:
		return "session"
	default:
		return "unknown"
	}
}

// Page represents a page fetched through the browser during discovery.
// The crawler owns every Page; Parent is a plain URL used for reporting.
type Page struct {
	// URL is the final URL the browser landed on.
	URL string `json:"url"`

	// StatusCode is the HTTP status of the main document response.
	StatusCode int `json:"status_code"`

	// ContentType is the MIME type of the main document response.
	ContentType string `json:"content_type"`

	// Content is the response body as the browser received it.
	Content string `json:"-"`

	// Request describes the request that produced the page.
	Request RequestInfo `json:"request"`

	// Headers contains the response headers keyed by canonical name.
	Headers map[string][]string `json:"headers,omitempty"`

	// Cookies is the browser cookie jar right after the page loaded.
	Cookies []Cookie `json:"-"`

	// Parent is the URL of the page this one was discovered from.
	Parent string `json:"parent,omitempty"`

	// Kind is PageKindSession for pages only reachable after login.
	Kind PageKind `json:"kind"`

	// Session is the evidence that proves a SessionPage needed a session.
	// Nil for anonymous pages.
	Session *SessionEvidence `json:"session,omitempty"`

	// Excluded marks pages filtered out by the black/whitelist.
	// They stay in the page set but are skipped by plugins.
	Excluded bool `json:"excluded,omitempty"`

	// Hash is the SHA-256 of Content.
	Hash string `json:"hash"`

	// FormlessHash is a murmur3 fingerprint of Content with every form removed.
	// Forms carry CSRF tokens that change on each load, so comparisons use this.
	FormlessHash string `json:"formless_hash"`
}

// SessionEvidence is what turns a Page into a SessionPage.
type SessionEvidence struct {
	// LoginURL is the page whose login form opened the session.
	// Empty when the session was imported from a cookie file.
	LoginURL string `json:"login_url,omitempty"`

	// Cookies is the cookie set that produced the page.
	Cookies []Cookie `json:"-"`

	// ViaCookieImport is true when the session came from a cookie file.
	ViaCookieImport bool `json:"via_cookie_import"`

	// Divergence is the Levenshtein distance between the anonymous and
	// authenticated renderings.
	Divergence int `json:"divergence"`
}

// RequestInfo describes the request that loaded a page.
type RequestInfo struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Cookie is a browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"` //nolint:tagliatelle // browser cookie export format
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"` //nolint:tagliatelle // browser cookie export format
}

// formBlock matches a whole <form>...</form> element.
var formBlock = regexp.MustCompile(`(?is)<form\b.*?</form\s*>`)

// StripForms removes every form element from content.
func StripForms(content string) string {
	return formBlock.ReplaceAllString(content, "")
}

// ComputeHash sets Hash and FormlessHash from Content.
func (p *Page) ComputeHash() {
	if p.Content == "" {
		p.Hash = ""
		p.FormlessHash = ""
		return
	}

	hash := sha256.Sum256([]byte(p.Content))
	p.Hash = hex.EncodeToString(hash[:])
	p.FormlessHash = FormlessFingerprint(p.Content)
}

// FormlessFingerprint returns the murmur3 fingerprint of content without forms.
func FormlessFingerprint(content string) string {
	h1, h2 := murmur3.Sum128([]byte(StripForms(content)))
	return strconv.FormatUint(h1, 16) + strconv.FormatUint(h2, 16)
}

// IsSession reports whether the page is a SessionPage.
func (p *Page) IsSession() bool {
	return p.Kind == PageKindSession && p.Session != nil
}

// GetHeader returns the first value of the named header, matched case-insensitively.
func (p *Page) GetHeader(name string) string {
	if values, ok := p.Headers[name]; ok && len(values) > 0 {
		return values[0]
	}
	for k, values := range p.Headers {
		if strings.EqualFold(k, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// GetAllHeaders returns every value of the named header.
func (p *Page) GetAllHeaders(name string) []string {
	if values, ok := p.Headers[name]; ok {
		return values
	}
	for k, values := range p.Headers {
		if strings.EqualFold(k, name) {
			return values
		}
	}
	return nil
}

// MediaType returns the content type without parameters, lowercased.
func (p *Page) MediaType() string {
	mt, _, _ := strings.Cut(p.ContentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsHTML returns true if the page content type indicates HTML.
func (p *Page) IsHTML() bool {
	mt := p.MediaType()
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// IsScript returns true if the page is a JavaScript resource.
func (p *Page) IsScript() bool {
	mt := p.MediaType()
	return strings.Contains(mt, "javascript") || strings.Contains(mt, "ecmascript")
}

// IsStylesheet returns true if the page is a CSS resource.
func (p *Page) IsStylesheet() bool {
	return p.MediaType() == "text/css"
}
