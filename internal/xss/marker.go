package xss

import (
	"strconv"
	"strings"
	"sync"
)

// DefaultMarkerPrefix starts every marker.
const DefaultMarkerPrefix = "xssmark"

// MarkerGenerator hands out markers that occur in none of the content seen
// so far and were never handed out before.
type MarkerGenerator struct {
	prefix string

	mu   sync.Mutex
	seen strings.Builder
	last string
	used map[string]bool
	n    int
}

// NewMarkerGenerator creates a generator. An empty prefix selects DefaultMarkerPrefix.
func NewMarkerGenerator(prefix string) *MarkerGenerator {
	if prefix == "" {
		prefix = DefaultMarkerPrefix
	}
	return &MarkerGenerator{
		prefix: prefix,
		used:   make(map[string]bool),
	}
}

// Next records content and returns a fresh marker.
func (g *MarkerGenerator) Next(content string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if content != "" && content != g.last {
		g.seen.WriteString(content)
		g.seen.WriteByte('\n')
		g.last = content
	}

	seen := g.seen.String()
	for {
		g.n++
		candidate := g.prefix + strconv.Itoa(g.n)
		if g.used[candidate] || strings.Contains(seen, candidate) {
			continue
		}
		g.used[candidate] = true
		return candidate
	}
}
