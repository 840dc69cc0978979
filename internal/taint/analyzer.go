package taint

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/xssweep/internal/model"
)

// Finding kinds.
const (
	// KindSourcePresent marks a script where a source and a sink coexist.
	KindSourcePresent = "dom-source-present"
	// KindInputCorrelated marks a sink-bearing script that reads a page input.
	KindInputCorrelated = "dom-input-correlated"
)

// Source and sink patterns.
var (
	defaultSourcePattern = regexp.MustCompile(
		`\b(document\.(URL|documentURI|URLUnencoded|baseURI|cookie|referrer)|location(\.(href|search|hash|pathname))?|window\.name|history\.(pushState|replaceState)|localStorage|sessionStorage)\b`)

	defaultSinkPattern = regexp.MustCompile(
		`(\beval\s*\(|\bsetTimeout\s*\(|\bsetInterval\s*\(|\bFunction\s*\(|document\.write(ln)?\s*\(|\.innerHTML\s*=|\.outerHTML\s*=|\.insertAdjacentHTML\s*\(|\bexecScript\s*\(|\.src\s*=|\.href\s*=|location\.(assign|replace)\s*\()`)

	// sourceWrite follows a source token that is written rather than read:
	// an assignment or a location.assign/replace call.
	sourceWrite = regexp.MustCompile(`^\s*(=($|[^=])|\.\s*(assign|replace)\s*\()`)

	whitespace = regexp.MustCompile(`\s+`)
)

// Finding is one suspicious script.
type Finding struct {
	// Kind is KindSourcePresent or KindInputCorrelated.
	Kind string

	// URL of the page the script belongs to.
	URL string

	// ScriptIndex is the position of the <script> element in the page,
	// or -1 when the whole page is a script.
	ScriptIndex int

	// Sources and Sinks are the distinct matched tokens, lowercased.
	Sources []string
	Sinks   []string

	// Inputs are the page inputs the script reads.
	Inputs []InputSource

	// Score grows with the number of distinct sinks and sources, or with the
	// number of read inputs when no source is present.
	Score int
}

// Problem renders the finding as one line for a report.
func (f Finding) Problem() string {
	where := "script"
	if f.ScriptIndex >= 0 {
		where = fmt.Sprintf("inline script #%d", f.ScriptIndex)
	}

	names := make([]string, 0, len(f.Inputs))
	for _, in := range f.Inputs {
		names = append(names, in.String())
	}

	if f.Kind == KindInputCorrelated {
		return fmt.Sprintf("%s reads inputs [%s] and uses sinks [%s] (danger %d)",
			where, strings.Join(names, ", "), strings.Join(f.Sinks, ", "), f.Score)
	}
	if len(names) > 0 {
		return fmt.Sprintf("%s uses sources [%s] and sinks [%s], reads inputs [%s] (danger %d)",
			where, strings.Join(f.Sources, ", "), strings.Join(f.Sinks, ", "), strings.Join(names, ", "), f.Score)
	}
	return fmt.Sprintf("%s uses sources [%s] and sinks [%s] (danger %d)",
		where, strings.Join(f.Sources, ", "), strings.Join(f.Sinks, ", "), f.Score)
}

// Analyzer inspects pages for source/sink co-occurrence.
// An Analyzer is safe for concurrent use.
type Analyzer struct {
	sourcePattern *regexp.Regexp
	sinkPattern   *regexp.Regexp
	logger        *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// NewAnalyzer creates an Analyzer with the built-in source and sink patterns.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		sourcePattern: defaultSourcePattern,
		sinkPattern:   defaultSinkPattern,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze returns the suspicious scripts of page.
// Pages that are neither HTML nor script yield no findings.
func (a *Analyzer) Analyze(page *model.Page) ([]Finding, error) {
	switch {
	case page.IsScript():
		return a.analyzeScript(page), nil
	case page.IsHTML():
		return a.analyzeHTML(page)
	default:
		return nil, nil
	}
}

func (a *Analyzer) analyzeScript(page *model.Page) []Finding {
	sources := a.sources(page.Content)
	sinks := a.match(a.sinkPattern, page.Content)
	if len(sources) == 0 || len(sinks) == 0 {
		return nil
	}
	return []Finding{{
		Kind:        KindSourcePresent,
		URL:         page.URL,
		ScriptIndex: -1,
		Sources:     sources,
		Sinks:       sinks,
		Score:       len(sources) + len(sinks),
	}}
}

func (a *Analyzer) analyzeHTML(page *model.Page) ([]Finding, error) {
	// The parser accepts any text, so binary bodies served as HTML are
	// rejected up front.
	if !utf8.ValidString(page.Content) || strings.ContainsRune(page.Content, 0) {
		return nil, fmt.Errorf("%w: %s: body is not text", ErrUnparsableMarkup, page.URL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnparsableMarkup, page.URL, err)
	}

	inputs := Inputs(doc)

	var findings []Finding
	var scriptErr error
	doc.Find("script").EachWithBreak(func(i int, s *goquery.Selection) bool {
		body := s.Text()
		sinks := a.match(a.sinkPattern, body)
		if len(sinks) == 0 {
			return true
		}

		read, err := Correlate(body, inputs)
		if err != nil {
			scriptErr = err
			return false
		}

		if sources := a.sources(body); len(sources) > 0 {
			findings = append(findings, Finding{
				Kind:        KindSourcePresent,
				URL:         page.URL,
				ScriptIndex: i,
				Sources:     sources,
				Sinks:       sinks,
				Inputs:      read,
				Score:       len(sources) + len(sinks),
			})
			return true
		}
		if len(read) > 0 {
			findings = append(findings, Finding{
				Kind:        KindInputCorrelated,
				URL:         page.URL,
				ScriptIndex: i,
				Sinks:       sinks,
				Inputs:      read,
				Score:       len(sinks) + len(read),
			})
		}
		return true
	})
	if scriptErr != nil {
		return nil, scriptErr
	}

	if len(findings) > 0 {
		a.logger.Debug("dom xss candidates", "url", page.URL, "scripts", len(findings))
	}
	return findings, nil
}

// sources returns the distinct source tokens of text that are read.
// A token that is assigned to or navigated with is a sink use only.
func (a *Analyzer) sources(text string) []string {
	var out []string
	for _, loc := range a.sourcePattern.FindAllStringIndex(text, -1) {
		if sourceWrite.MatchString(text[loc[1]:]) {
			continue
		}
		token := strings.ToLower(whitespace.ReplaceAllString(text[loc[0]:loc[1]], ""))
		if !slices.Contains(out, token) {
			out = append(out, token)
		}
	}
	return out
}

// match returns the distinct matches of pattern in text, lowercased with
// whitespace removed, in order of first appearance.
func (a *Analyzer) match(pattern *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range pattern.FindAllString(text, -1) {
		token := strings.ToLower(whitespace.ReplaceAllString(m, ""))
		if !slices.Contains(out, token) {
			out = append(out, token)
		}
	}
	return out
}
