package model

// Severity represents the risk level of a finding.
type Severity int

const (
	// SeverityInfo indicates informational findings with no direct security impact.
	// Examples: a page protected by CSP, skipped live injection.
	SeverityInfo Severity = iota

	// SeverityLow indicates minor issues with limited impact.
	// Examples: cookies without HttpOnly or SameSite.
	SeverityLow

	// SeverityMedium indicates weaknesses that make XSS easier to exploit.
	// Examples: a missing CSP, 'unsafe-inline' script sources, input-correlated DOM sinks.
	SeverityMedium

	// SeverityHigh indicates confirmed or very likely script execution.
	// Examples: reflected XSS, DOM sources flowing into sinks.
	SeverityHigh

	// SeverityCritical indicates script execution that affects every visitor.
	// Example: stored XSS.
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Finding types reported by the built-in plugins.
const (
	FindingStoredXSS        = "stored_xss"
	FindingReflectedXSS     = "reflected_xss"
	FindingDOMSource        = "dom_xss_source"
	FindingDOMInput         = "dom_xss_input"
	FindingCSPMissing       = "csp_missing"
	FindingCSPUnsafeInline  = "csp_unsafe_inline"
	FindingCSPUnsafeEval    = "csp_unsafe_eval"
	FindingCSPProtected     = "csp_protected"
	FindingCookieNoHTTPOnly = "cookie_no_httponly"
	FindingCookieNoSameSite = "cookie_no_samesite"
	FindingInjectionSkipped = "injection_skipped"
)

// FindingInfo contains metadata about a finding type including severity,
// impact description, and remediation recommendation.
type FindingInfo struct {
	Severity       Severity
	Problem        string
	Impact         string
	Recommendation string
}

// findingInfoMapping maps finding types to their metadata.
var findingInfoMapping = map[string]FindingInfo{
	FindingStoredXSS: {
		Severity:       SeverityCritical,
		Problem:        "Stored cross-site scripting",
		Impact:         "An injected script is persisted by the server and runs for every later visitor of the page.",
		Recommendation: "Encode user-supplied data for the output context when rendering it and validate it on input.",
	},
	FindingReflectedXSS: {
		Severity:       SeverityHigh,
		Problem:        "Reflected cross-site scripting",
		Impact:         "Form input is echoed into the response unescaped, so a crafted link runs script in the victim's session.",
		Recommendation: "HTML-encode reflected input and add a Content-Security-Policy that forbids inline scripts.",
	},
	FindingDOMSource: {
		Severity:       SeverityHigh,
		Problem:        "DOM-based cross-site scripting (source to sink)",
		Impact:         "Client-side script passes attacker-controlled browser data such as location or document.cookie into an executing sink.",
		Recommendation: "Avoid dangerous sinks like innerHTML and eval. Use textContent and sanitize values read from the URL.",
	},
	FindingDOMInput: {
		Severity:       SeverityMedium,
		Problem:        "DOM-based cross-site scripting (input to sink)",
		Impact:         "Client-side script reads user input fields and writes them into an executing sink.",
		Recommendation: "Treat input values as text. Use textContent or a sanitizer before writing them to the DOM.",
	},
	FindingCSPMissing: {
		Severity:       SeverityMedium,
		Problem:        "Missing Content-Security-Policy",
		Impact:         "Without a CSP the browser executes any injected script or loads any injected image.",
		Recommendation: "Send a Content-Security-Policy header with restrictive script-src and img-src directives.",
	},
	FindingCSPUnsafeInline: {
		Severity:       SeverityMedium,
		Problem:        "CSP allows inline scripts",
		Impact:         "'unsafe-inline' in script sources lets injected inline scripts and event handlers run.",
		Recommendation: "Remove 'unsafe-inline' and use nonces or hashes for required inline scripts.",
	},
	FindingCSPUnsafeEval: {
		Severity:       SeverityMedium,
		Problem:        "CSP allows eval",
		Impact:         "'unsafe-eval' lets strings be compiled to code, which turns DOM sinks like eval into script execution.",
		Recommendation: "Remove 'unsafe-eval' and refactor code that relies on eval or new Function.",
	},
	FindingCSPProtected: {
		Severity:       SeverityInfo,
		Problem:        "Page protected by Content-Security-Policy",
		Impact:         "The CSP forbids arbitrary script and image sources, so injected payloads would not execute.",
		Recommendation: "Keep the policy restrictive when it changes.",
	},
	FindingCookieNoHTTPOnly: {
		Severity:       SeverityLow,
		Problem:        "Cookie without HttpOnly",
		Impact:         "A script injected through XSS can read the cookie and steal the session.",
		Recommendation: "Set the HttpOnly attribute on session cookies.",
	},
	FindingCookieNoSameSite: {
		Severity:       SeverityLow,
		Problem:        "Cookie without SameSite",
		Impact:         "The cookie is sent on cross-site requests, which helps cross-site request forgery.",
		Recommendation: "Set SameSite=Lax or SameSite=Strict on session cookies.",
	},
	FindingInjectionSkipped: {
		Severity:       SeverityInfo,
		Problem:        "Live injection skipped",
		Impact:         "Forms were not submitted with payloads, so reflected and stored XSS were not tested.",
		Recommendation: "Run the scan with --aggressive against a test environment to submit payloads.",
	},
}

// GetSeverity returns the severity level for a finding type.
// Returns SeverityInfo if the finding type is not in the mapping.
func GetSeverity(findingType string) Severity {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info.Severity
	}
	return SeverityInfo
}

// GetFindingInfo returns the full finding information for a finding type.
// Returns a default FindingInfo with SeverityInfo if the type is not in the mapping.
func GetFindingInfo(findingType string) FindingInfo {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info
	}
	return FindingInfo{
		Severity:       SeverityInfo,
		Problem:        findingType,
		Impact:         "Unknown finding type. Review manually.",
		Recommendation: "Investigate the finding and assess risk.",
	}
}
