package xss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/xssweep/internal/browser"
	"github.com/nao1215/xssweep/internal/model"
)

// DefaultAlertWait is how long the injector waits for an alert after a
// submission.
const DefaultAlertWait = 2 * time.Second

// Injection is a confirmed payload execution.
type Injection struct {
	Form    model.Form
	Input   model.FormInput
	Payload string
	Marker  string
}

// Injector submits marked payloads and watches for alerts.
type Injector struct {
	markers   *MarkerGenerator
	alertWait time.Duration
	logger    *slog.Logger
}

// InjectorOption configures an Injector.
type InjectorOption func(*Injector)

// WithAlertWait sets how long to wait for an alert after a submission.
func WithAlertWait(d time.Duration) InjectorOption {
	return func(i *Injector) {
		if d >= 0 {
			i.alertWait = d
		}
	}
}

// WithMarkerGenerator shares a marker generator between injectors.
func WithMarkerGenerator(g *MarkerGenerator) InjectorOption {
	return func(i *Injector) {
		i.markers = g
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) InjectorOption {
	return func(i *Injector) {
		i.logger = logger
	}
}

// NewInjector creates an Injector.
func NewInjector(opts ...InjectorOption) *Injector {
	i := &Injector{
		alertWait: DefaultAlertWait,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.markers == nil {
		i.markers = NewMarkerGenerator("")
	}
	return i
}

// InjectAndObserve tries every payload of corpus against every form of page
// and returns the confirmed injections keyed by form index. Pages whose CSP
// blocks both scripts and images are not touched.
func (i *Injector) InjectAndObserve(ctx context.Context, session browser.Session, page *model.Page, corpus *Corpus) (map[int]Injection, error) {
	found := make(map[int]Injection)

	policy := page.CSP()
	if policy.Protected() {
		i.logger.Debug("page protected by csp", "url", page.URL)
		return found, nil
	}
	candidates := corpus.Filter(policy)
	if candidates.Len() == 0 {
		i.logger.Debug("csp blocks every payload", "url", page.URL)
		return found, nil
	}

	forms, err := model.ParseForms(page.Content)
	if err != nil {
		return found, err
	}

	for _, form := range forms {
		if len(form.TextInputs()) == 0 {
			continue
		}

		injection, ok, err := i.injectForm(ctx, session, page, form, candidates)
		if err != nil {
			return found, err
		}
		if ok {
			found[form.Index] = injection
			i.logger.Info("xss confirmed", "url", page.URL, "form", form.Index,
				"input", injection.Input.Key(), "marker", injection.Marker)
		}
	}
	return found, nil
}

// injectForm tries payloads until one executes. A form that has no effect
// twice in a row is skipped.
func (i *Injector) injectForm(ctx context.Context, session browser.Session, page *model.Page, form model.Form, corpus *Corpus) (Injection, bool, error) {
	for _, payload := range corpus.Payloads() {
		var (
			injection Injection
			ok        bool
			err       error
		)
		for attempt := 0; attempt < 2; attempt++ {
			injection, ok, err = i.submit(ctx, session, page, form, payload)
			if ctx.Err() != nil {
				return Injection{}, false, ctx.Err()
			}
			if err == nil {
				break
			}
			i.logger.Debug("form submission failed", "url", page.URL, "form", form.Index,
				"attempt", attempt+1, "error", err)
		}
		if err != nil {
			i.logger.Debug("skipping form", "url", page.URL, "form", form.Index)
			return Injection{}, false, nil
		}
		if ok {
			return injection, true, nil
		}
	}
	return Injection{}, false, nil
}

// submit fills every text input of form with payload under its own marker.
// It returns ErrFormNoEffect (wrapped) when nothing observable happened.
func (i *Injector) submit(ctx context.Context, session browser.Session, page *model.Page, form model.Form, payload string) (Injection, bool, error) {
	if err := session.Navigate(ctx, page.URL); err != nil {
		return Injection{}, false, err
	}
	_ = session.DismissAlerts(ctx)

	before, err := session.State(ctx)
	if err != nil {
		return Injection{}, false, err
	}

	values := make(map[string]string)
	inputs := make(map[string]model.FormInput)
	for n, in := range form.TextInputs() {
		content := ""
		if n == 0 {
			content = before.Content
		}
		marker := i.markers.Next(content)
		values[in.Key()] = Render(payload, marker)
		inputs[marker] = in
	}

	if err := session.SubmitForm(ctx, form.Index, values); err != nil {
		if errors.Is(err, browser.ErrFormNotFound) {
			return Injection{}, false, fmt.Errorf("%w: %w", ErrFormNoEffect, err)
		}
		return Injection{}, false, err
	}

	alerts := session.Alerts(ctx, i.alertWait)
	_ = session.DismissAlerts(ctx)
	for _, text := range alerts {
		marker := strings.TrimSpace(text)
		if in, ok := inputs[marker]; ok {
			return Injection{Form: form, Input: in, Payload: payload, Marker: marker}, true, nil
		}
	}
	if len(alerts) > 0 {
		return Injection{}, false, nil
	}

	after, err := session.State(ctx)
	if err != nil {
		return Injection{}, false, err
	}
	if after.URL == before.URL && after.Content == before.Content {
		return Injection{}, false, ErrFormNoEffect
	}
	return Injection{}, false, nil
}

// CheckStored reloads page without submitting anything and reports whether
// marker executes again.
func (i *Injector) CheckStored(ctx context.Context, session browser.Session, page *model.Page, marker string) (bool, error) {
	if err := session.Navigate(ctx, page.URL); err != nil {
		return false, err
	}
	defer func() { _ = session.DismissAlerts(ctx) }()

	for _, text := range session.Alerts(ctx, i.alertWait) {
		if strings.TrimSpace(text) == marker {
			return true, nil
		}
	}
	return false, nil
}
