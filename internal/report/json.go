package report

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/nao1215/xssweep/internal/model"
)

// redactedHeaders are masked in JSON output. They carry session secrets.
var redactedHeaders = []string{"Set-Cookie", "Cookie", "Authorization"}

// JSONWriter outputs reports in JSON format.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in JSON format. Cookie and authorization headers
// of the pages are masked.
func (w *JSONWriter) Write(report *model.ScanReport) (int, error) {
	return w.writeJSON(redact(report))
}

// writeJSON encodes v without HTML escaping so markers and payloads read as
// they were recorded.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.indent {
		enc.SetIndent(w.indentPrefix, w.indentString)
	}
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

// redact returns a shallow copy of report whose pages have sensitive
// headers masked. The original report is left untouched.
func redact(report *model.ScanReport) *model.ScanReport {
	clone := *report
	clone.Pages = make([]*model.Page, len(report.Pages))
	for i, p := range report.Pages {
		page := *p
		page.Headers = redactHeaders(p.Headers)
		page.Request.Headers = redactRequestHeaders(p.Request.Headers)
		clone.Pages[i] = &page
	}
	return &clone
}

func isRedacted(name string) bool {
	for _, h := range redactedHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

func redactHeaders(headers map[string][]string) map[string][]string {
	if headers == nil {
		return nil
	}
	out := make(map[string][]string, len(headers))
	for k, v := range headers {
		if isRedacted(k) {
			masked := make([]string, len(v))
			for i := range v {
				masked[i] = "<redacted>"
			}
			out[k] = masked
			continue
		}
		out[k] = v
	}
	return out
}

func redactRequestHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if isRedacted(k) {
			v = "<redacted>"
		}
		out[k] = v
	}
	return out
}

// JSONReport wraps a report with the tool version and the severity summary.
type JSONReport struct {
	Version string            `json:"version"`
	Report  *model.ScanReport `json:"report"`
	Summary model.Summary     `json:"summary"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(report *model.ScanReport, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Report:  report,
		Summary: report.Summarize(),
	}
}

// FullJSONWriter outputs reports wrapped in a JSONReport.
type FullJSONWriter struct {
	*JSONWriter
	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the wrapped report.
func (w *FullJSONWriter) Write(report *model.ScanReport) (int, error) {
	return w.writeJSON(NewJSONReport(redact(report), w.version))
}
