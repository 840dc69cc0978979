package model

import "strings"

// SourcePolicy holds the interpreted tokens of one CSP source directive.
type SourcePolicy struct {
	// Present is true when the directive appears in the header.
	Present      bool `json:"present"`
	Wildcard     bool `json:"wildcard"`
	UnsafeEval   bool `json:"unsafe_eval"`
	UnsafeInline bool `json:"unsafe_inline"`
	UnsafeHashes bool `json:"unsafe_hashes"`
}

// AllowsAny reports whether arbitrary sources may be loaded.
// A missing directive places no restriction.
func (s SourcePolicy) AllowsAny() bool {
	return !s.Present || s.Wildcard
}

// CSPPolicy is the parsed Content-Security-Policy of a page.
// Only script and image sources are interpreted.
type CSPPolicy struct {
	Raw    string       `json:"raw,omitempty"`
	Script SourcePolicy `json:"script"`
	Image  SourcePolicy `json:"image"`
}

// Present reports whether the page sent a policy at all.
func (p CSPPolicy) Present() bool {
	return strings.TrimSpace(p.Raw) != ""
}

// ScriptsAllowed reports whether injected scripts from any source may run.
func (p CSPPolicy) ScriptsAllowed() bool {
	return p.Script.AllowsAny()
}

// ImagesAllowed reports whether images from any source may load.
func (p CSPPolicy) ImagesAllowed() bool {
	return p.Image.AllowsAny()
}

// Protected reports whether the policy forbids arbitrary script and image sources.
func (p CSPPolicy) Protected() bool {
	return !p.ScriptsAllowed() && !p.ImagesAllowed()
}

// ParseCSP parses a Content-Security-Policy header value.
// Directive names are matched case-insensitively and both the standard
// hyphenated form (script-src) and the underscore form (script_src) are accepted.
// The first occurrence of a directive wins. default-src is not used as a fallback.
func ParseCSP(header string) CSPPolicy {
	policy := CSPPolicy{Raw: header}

	for _, directive := range strings.Split(header, ";") {
		fields := strings.Fields(directive)
		if len(fields) == 0 {
			continue
		}

		name := strings.ReplaceAll(strings.ToLower(fields[0]), "_", "-")
		var target *SourcePolicy
		switch name {
		case "script-src":
			target = &policy.Script
		case "img-src":
			target = &policy.Image
		default:
			continue
		}
		if target.Present {
			continue
		}

		target.Present = true
		for _, token := range fields[1:] {
			switch strings.ToLower(strings.Trim(token, `'"`)) {
			case "*":
				target.Wildcard = true
			case "unsafe-eval":
				target.UnsafeEval = true
			case "unsafe-inline":
				target.UnsafeInline = true
			case "unsafe-hashes":
				target.UnsafeHashes = true
			}
		}
	}

	return policy
}

// CSP returns the parsed policy of the page's Content-Security-Policy header.
func (p *Page) CSP() CSPPolicy {
	return ParseCSP(p.GetHeader("Content-Security-Policy"))
}
