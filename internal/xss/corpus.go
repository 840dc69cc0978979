package xss

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nao1215/xssweep/internal/model"
)

// Placeholder is replaced with a marker when a payload is rendered.
const Placeholder = "{{marker}}"

//go:embed payloads.txt
var defaultPayloads string

// Corpus is an ordered list of payload templates.
type Corpus struct {
	payloads []string
}

// DefaultCorpus returns the built-in corpus.
func DefaultCorpus() *Corpus {
	c, err := ParseCorpus(strings.NewReader(defaultPayloads))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in payload corpus: %v", err))
	}
	return c
}

// LoadCorpus reads a corpus file. An empty path selects the built-in corpus.
func LoadCorpus(path string) (*Corpus, error) {
	if path == "" {
		return DefaultCorpus(), nil
	}

	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open payload file: %w", err)
	}
	defer f.Close()

	c, err := ParseCorpus(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ParseCorpus reads one payload per line. Lines that do not contain the
// placeholder exactly once are discarded.
func ParseCorpus(r io.Reader) (*Corpus, error) {
	c := &Corpus{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.Count(line, Placeholder) != 1 {
			continue
		}
		c.payloads = append(c.payloads, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payloads: %w", err)
	}

	if len(c.payloads) == 0 {
		return nil, ErrEmptyCorpus
	}
	return c, nil
}

// Payloads returns a copy of the templates.
func (c *Corpus) Payloads() []string {
	return append([]string(nil), c.payloads...)
}

// Len returns the number of templates.
func (c *Corpus) Len() int {
	return len(c.payloads)
}

// Filter drops the payload families policy blocks: script tags when inline
// scripts are not allowed and img tags when images are not allowed.
func (c *Corpus) Filter(policy model.CSPPolicy) *Corpus {
	out := &Corpus{payloads: make([]string, 0, len(c.payloads))}
	for _, p := range c.payloads {
		lower := strings.ToLower(p)
		if !policy.ScriptsAllowed() && strings.Contains(lower, "<script") {
			continue
		}
		if !policy.ImagesAllowed() && strings.Contains(lower, "<img") {
			continue
		}
		out.payloads = append(out.payloads, p)
	}
	return out
}

// Render substitutes marker into payload.
func Render(payload, marker string) string {
	return strings.Replace(payload, Placeholder, marker, 1)
}
