package plugin

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/nao1215/xssweep/internal/browser"
	"github.com/nao1215/xssweep/internal/model"
)

// Plugin is one vulnerability check.
type Plugin interface {
	// Name is the registry name.
	Name() string

	// Color is the display color in console reports.
	Color() string

	// Run checks the pages of env. A returned error aborts the plugin; the
	// partial result is still reported.
	Run(ctx context.Context, env *Env) (*model.PluginResult, error)
}

// Env is what every plugin of a run shares.
type Env struct {
	// Pages is the crawled page set. Plugins must not modify it.
	Pages []*model.Page

	// Launcher starts browser sessions for plugins that need one.
	Launcher browser.Launcher
}

// InScope returns the pages not excluded by the black/white lists.
func (e *Env) InScope() []*model.Page {
	return slices.DeleteFunc(slices.Clone(e.Pages), func(p *model.Page) bool {
		return p.Excluded
	})
}

// Options configures the built-in plugins.
type Options struct {
	// Aggressive enables live form submission.
	Aggressive bool

	// PayloadFile is the payload corpus. Empty selects the built-in corpus.
	PayloadFile string

	// AlertWait bounds the wait for an alert after a submission.
	AlertWait time.Duration

	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
