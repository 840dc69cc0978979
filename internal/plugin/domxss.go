package plugin

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/xssweep/internal/model"
	"github.com/nao1215/xssweep/internal/taint"
)

// DOMXSSPlugin reports scripts where attacker-controlled data can reach a
// dangerous sink.
type DOMXSSPlugin struct {
	analyzer *taint.Analyzer
	logger   *slog.Logger
}

// NewDOMXSSPlugin creates the dom_xss plugin.
func NewDOMXSSPlugin(opts Options) *DOMXSSPlugin {
	return &DOMXSSPlugin{
		analyzer: taint.NewAnalyzer(taint.WithLogger(opts.logger())),
		logger:   opts.logger(),
	}
}

// Name returns the plugin name.
func (p *DOMXSSPlugin) Name() string {
	return "dom_xss"
}

// Color returns the display color.
func (p *DOMXSSPlugin) Color() string {
	return "yellow"
}

// Run analyzes every in-scope script and HTML page.
func (p *DOMXSSPlugin) Run(ctx context.Context, env *Env) (*model.PluginResult, error) {
	res := model.NewPluginResult(p.Name(), p.Color())

	for _, page := range env.InScope() {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		findings, err := p.analyzer.Analyze(page)
		switch {
		case errors.Is(err, taint.ErrUnparsableMarkup):
			p.logger.Debug("skipping unparsable page", "url", page.URL, "error", err)
			res.Check(model.FindingDOMSource).AddWarning("troublesome page skipped: " + page.URL)
			continue
		case err != nil:
			return res, err
		}

		for _, f := range findings {
			findingType := model.FindingDOMSource
			if f.Kind == taint.KindInputCorrelated {
				findingType = model.FindingDOMInput
			}
			res.Check(findingType).AddPageProblem(page, f.Problem())
		}
	}
	return res, nil
}
