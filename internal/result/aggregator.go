package result

import (
	"context"
	"sync"

	"github.com/nao1215/xssweep/internal/model"
)

// DefaultBuffer is the channel capacity used when NewAggregator gets a
// non-positive buffer.
const DefaultBuffer = 16

// Aggregator is a thread-safe sink for plugin results.
type Aggregator struct {
	// sendMu orders the append and the send of one Record against other
	// Records, so Results and Drain agree on arrival order.
	sendMu sync.Mutex

	mu      sync.Mutex
	pages   []*model.Page
	results []*model.PluginResult
	ch      chan *model.PluginResult
}

// NewAggregator creates an aggregator over the page set the plugins share.
func NewAggregator(pages []*model.Page, buffer int) *Aggregator {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Aggregator{
		pages:   append([]*model.Page(nil), pages...),
		results: make([]*model.PluginResult, 0),
		ch:      make(chan *model.PluginResult, buffer),
	}
}

// Record stores r and forwards it to Drain. A nil r records an empty result
// for the plugin. Record blocks while the channel is full.
func (a *Aggregator) Record(name, color string, r *model.PluginResult) {
	if r == nil {
		r = model.NewPluginResult(name, color)
	}
	if r.Name == "" {
		r.Name = name
	}
	if r.Color == "" {
		r.Color = color
	}

	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	a.mu.Lock()
	a.results = append(a.results, r)
	a.mu.Unlock()

	a.ch <- r
}

// Drain receives n results in arrival order. It returns early with the
// results received so far when ctx ends.
func (a *Aggregator) Drain(ctx context.Context, n int) ([]*model.PluginResult, error) {
	out := make([]*model.PluginResult, 0, n)
	for len(out) < n {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case r := <-a.ch:
			out = append(out, r)
		}
	}
	return out, nil
}

// Pages returns a copy of the page set.
func (a *Aggregator) Pages() []*model.Page {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*model.Page(nil), a.pages...)
}

// Results returns a copy of the recorded results.
func (a *Aggregator) Results() []*model.PluginResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*model.PluginResult(nil), a.results...)
}
