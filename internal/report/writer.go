package report

import (
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/xssweep/internal/model"
)

// Writer outputs a scan report.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *model.ScanReport) (int, error)
}

// MultiWriter writes to multiple Writers. It stops at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
func (m *MultiWriter) Write(report *model.ScanReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

var titleCaser = cases.Title(language.English)

// pluginTitle turns a registry name such as "dom_xss" into "Dom Xss".
func pluginTitle(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

// status describes how the scan ended.
func status(report *model.ScanReport) string {
	switch {
	case report.TimedOut:
		return "timed out (partial results)"
	case report.ErrorMessage != "":
		return "error: " + report.ErrorMessage
	default:
		return "complete"
	}
}

// severities lists severity levels from most to least severe.
var severities = []model.Severity{
	model.SeverityCritical,
	model.SeverityHigh,
	model.SeverityMedium,
	model.SeverityLow,
	model.SeverityInfo,
}

func severityCount(s model.Summary, sev model.Severity) int {
	switch sev {
	case model.SeverityCritical:
		return s.CriticalCount
	case model.SeverityHigh:
		return s.HighCount
	case model.SeverityMedium:
		return s.MediumCount
	case model.SeverityLow:
		return s.LowCount
	default:
		return s.InfoCount
	}
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
