package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/nao1215/xssweep/internal/browser"
	"github.com/nao1215/xssweep/internal/model"
	"github.com/nao1215/xssweep/internal/xss"
)

// injectionSkippedWarning is attached when live submission is disabled.
const injectionSkippedWarning = "live injection skipped; results are incomplete"

// XSSPlugin submits payloads through every form and reports the ones that
// execute. Payloads that execute again on a plain reload are stored XSS.
type XSSPlugin struct {
	aggressive   bool
	payloadFile  string
	injectorOpts []xss.InjectorOption
	logger       *slog.Logger
}

// NewXSSPlugin creates the xss plugin.
func NewXSSPlugin(opts Options) *XSSPlugin {
	p := &XSSPlugin{
		aggressive:  opts.Aggressive,
		payloadFile: opts.PayloadFile,
		logger:      opts.logger(),
	}
	if opts.AlertWait > 0 {
		p.injectorOpts = append(p.injectorOpts, xss.WithAlertWait(opts.AlertWait))
	}
	return p
}

// Name returns the plugin name.
func (p *XSSPlugin) Name() string {
	return "xss"
}

// Color returns the display color.
func (p *XSSPlugin) Color() string {
	return "red"
}

// Run inspects the CSP of every in-scope HTML page and, in aggressive mode,
// injects payloads into its forms.
func (p *XSSPlugin) Run(ctx context.Context, env *Env) (*model.PluginResult, error) {
	res := model.NewPluginResult(p.Name(), p.Color())

	corpus, err := xss.LoadCorpus(p.payloadFile)
	if err != nil {
		return res, err
	}

	pages := make([]*model.Page, 0)
	for _, page := range env.InScope() {
		if !page.IsHTML() {
			continue
		}
		if page.CSP().Protected() {
			res.Check(model.FindingCSPProtected).AddPageProblem(page, "script and image sources are restricted; injection skipped")
			continue
		}
		pages = append(pages, page)
	}

	if !p.aggressive {
		res.Check(model.FindingInjectionSkipped).AddWarning(injectionSkippedWarning)
		p.logger.Warn(injectionSkippedWarning, "pages", len(pages))
		return res, nil
	}

	sessions := newSessionPool(env.Launcher, p.logger)
	defer sessions.Close()

	injector := xss.NewInjector(append(p.injectorOpts, xss.WithLogger(p.logger))...)
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		session, err := sessions.For(ctx, page)
		if err != nil {
			return res, err
		}

		found, err := injector.InjectAndObserve(ctx, session, page, corpus)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			p.logger.Warn("injection failed", "url", page.URL, "error", err)
			res.Check(model.FindingReflectedXSS).AddWarning(fmt.Sprintf("%s: %v", page.URL, err))
			continue
		}

		for _, index := range slices.Sorted(maps.Keys(found)) {
			p.report(ctx, res, injector, session, page, found[index])
		}
	}
	return res, nil
}

// report classifies one injection as stored or reflected.
func (p *XSSPlugin) report(ctx context.Context, res *model.PluginResult, injector *xss.Injector, session browser.Session, page *model.Page, in xss.Injection) {
	problem := fmt.Sprintf("form #%d input %q executes %s (marker %s)",
		in.Form.Index, in.Input.Key(), in.Payload, in.Marker)

	stored, err := injector.CheckStored(ctx, session, page, in.Marker)
	if err != nil {
		p.logger.Debug("stored check failed", "url", page.URL, "error", err)
	}
	if stored {
		res.Check(model.FindingStoredXSS).AddPageProblem(page, problem)
		return
	}
	res.Check(model.FindingReflectedXSS).AddPageProblem(page, problem)
}

// sessionPool keeps one anonymous browser and one browser for session pages.
type sessionPool struct {
	launcher  browser.Launcher
	logger    *slog.Logger
	anonymous browser.Session
	session   browser.Session
}

func newSessionPool(launcher browser.Launcher, logger *slog.Logger) *sessionPool {
	return &sessionPool{launcher: launcher, logger: logger}
}

// For returns the browser to test page with. Session pages get the cookies
// that opened their session.
func (sp *sessionPool) For(ctx context.Context, page *model.Page) (browser.Session, error) {
	if !page.IsSession() {
		if sp.anonymous == nil {
			s, err := browser.LaunchWithRetry(ctx, sp.launcher, sp.logger)
			if err != nil {
				return nil, err
			}
			sp.anonymous = s
		}
		return sp.anonymous, nil
	}

	if sp.session == nil {
		s, err := browser.LaunchWithRetry(ctx, sp.launcher, sp.logger)
		if err != nil {
			return nil, err
		}
		sp.session = s
	}
	if err := sp.session.Navigate(ctx, page.URL); err != nil {
		sp.logger.Debug("failed to open session page", "url", page.URL, "error", err)
	}
	if err := sp.session.SetCookies(ctx, page.Session.Cookies); err != nil {
		return nil, fmt.Errorf("failed to restore session cookies: %w", err)
	}
	return sp.session, nil
}

// Close closes every launched browser.
func (sp *sessionPool) Close() {
	for _, s := range []browser.Session{sp.anonymous, sp.session} {
		if s != nil {
			_ = s.Close()
		}
	}
}
