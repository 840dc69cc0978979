package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/xssweep/internal/model"
)

// HeadersPlugin reviews response headers that decide how bad an XSS gets:
// the Content-Security-Policy and the attributes of session cookies.
type HeadersPlugin struct {
	logger *slog.Logger
}

// NewHeadersPlugin creates the headers plugin.
func NewHeadersPlugin(opts Options) *HeadersPlugin {
	return &HeadersPlugin{logger: opts.logger()}
}

// Name returns the plugin name.
func (p *HeadersPlugin) Name() string {
	return "headers"
}

// Color returns the display color.
func (p *HeadersPlugin) Color() string {
	return "blue"
}

// Run checks every in-scope HTML page once.
func (p *HeadersPlugin) Run(ctx context.Context, env *Env) (*model.PluginResult, error) {
	res := model.NewPluginResult(p.Name(), p.Color())
	checked := make(map[string]bool)

	for _, page := range env.InScope() {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		key := model.NormalizeURL(page.URL) + page.Kind.String()
		if !page.IsHTML() || checked[key] {
			continue
		}
		checked[key] = true

		p.checkCSP(res, page)
		p.checkCookies(res, page)
	}
	return res, nil
}

// checkCSP flags a missing policy and script sources that re-enable inline
// code or eval.
func (p *HeadersPlugin) checkCSP(res *model.PluginResult, page *model.Page) {
	policy := page.CSP()
	if !policy.Present() {
		if page.GetHeader("Content-Security-Policy-Report-Only") != "" {
			res.Check(model.FindingCSPMissing).AddPageProblem(page, "only a report-only policy is sent")
			return
		}
		res.Check(model.FindingCSPMissing).AddPageProblem(page, "no Content-Security-Policy header")
		return
	}

	if policy.Script.UnsafeInline {
		res.Check(model.FindingCSPUnsafeInline).AddPageProblem(page, policy.Raw)
	}
	if policy.Script.UnsafeEval {
		res.Check(model.FindingCSPUnsafeEval).AddPageProblem(page, policy.Raw)
	}
}

// checkCookies flags Set-Cookie headers without HttpOnly or SameSite.
func (p *HeadersPlugin) checkCookies(res *model.PluginResult, page *model.Page) {
	for _, setCookie := range page.GetAllHeaders("Set-Cookie") {
		lower := strings.ToLower(setCookie)
		value := sanitizeCookieValue(setCookie)

		if !strings.Contains(lower, "httponly") {
			res.Check(model.FindingCookieNoHTTPOnly).AddPageProblem(page, value)
		}
		if !strings.Contains(lower, "samesite") {
			res.Check(model.FindingCookieNoSameSite).AddPageProblem(page, value)
		}
	}

	// Session pages also carry the cookies that opened the session, which
	// may have been set by an earlier response.
	if !page.IsSession() {
		return
	}
	for _, c := range page.Session.Cookies {
		if !c.HTTPOnly {
			res.Check(model.FindingCookieNoHTTPOnly).AddPageProblem(page,
				fmt.Sprintf("session cookie %s=<redacted> is readable by scripts", c.Name))
		}
	}
}

// sanitizeCookieValue keeps the cookie name and attributes and hides the value.
func sanitizeCookieValue(cookie string) string {
	idx := strings.Index(cookie, "=")
	if idx == -1 {
		return cookie
	}
	name := cookie[:idx]
	rest := cookie[idx+1:]
	if semi := strings.Index(rest, ";"); semi != -1 {
		return name + "=<redacted>" + rest[semi:]
	}
	return name + "=<redacted>"
}
