package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nao1215/xssweep/internal/model"
)

// pluginColors maps the color names plugins declare to ANSI colors.
var pluginColors = map[string]lipgloss.Color{
	"red":     lipgloss.Color("9"),
	"yellow":  lipgloss.Color("11"),
	"blue":    lipgloss.Color("12"),
	"green":   lipgloss.Color("10"),
	"magenta": lipgloss.Color("13"),
	"cyan":    lipgloss.Color("14"),
}

// SimpleWriter outputs a text report for the terminal. Plugin headers are
// colored with the plugin's color when the output supports it.
type SimpleWriter struct {
	baseWriter

	renderer *lipgloss.Renderer

	// showEmpty lists plugins without findings.
	showEmpty bool

	// verbose adds the impact and fix of every check.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show plugins without findings.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
// Colors are used only when output is a terminal.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		renderer:   lipgloss.NewRenderer(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder
	summary := report.Summarize()

	w.writeHeader(&sb, report, summary)
	w.writeSummary(&sb, summary)
	for _, pr := range report.PluginResults {
		w.writePlugin(&sb, pr)
	}
	w.writeTroublesome(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

func (w *SimpleWriter) section(sb *strings.Builder, title string) {
	rule(sb, "-")
	sb.WriteString(title)
	sb.WriteString("\n")
	rule(sb, "-")
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ScanReport, s model.Summary) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString(w.renderer.NewStyle().Bold(true).Render("                          XSSWEEP REPORT"))
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Target:         %s\n", report.Target)
	fmt.Fprintf(sb, "Scan Date:      %s\n", report.DateScanned.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Pages Crawled:  %d (%d session)\n", s.PagesCrawled, s.SessionPages)
	fmt.Fprintf(sb, "Status:         %s\n\n", status(report))
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, s model.Summary) {
	w.section(sb, "SEVERITY SUMMARY")
	for _, sev := range severities {
		fmt.Fprintf(sb, "  %-9s %d\n", sev.String()+":", severityCount(s, sev))
	}
	fmt.Fprintf(sb, "\n  TOTAL:    %d findings\n\n", s.Total())
}

func (w *SimpleWriter) writePlugin(sb *strings.Builder, pr *model.PluginResult) {
	if len(pr.Checks) == 0 && pr.Error == "" && !w.showEmpty {
		return
	}

	style := w.renderer.NewStyle().Bold(true)
	if c, ok := pluginColors[pr.Color]; ok {
		style = style.Foreground(c)
	}
	rule(sb, "-")
	sb.WriteString(style.Render(strings.ToUpper(pluginTitle(pr.Name))))
	sb.WriteString("\n")
	rule(sb, "-")
	sb.WriteString("\n")

	if pr.Error != "" {
		fmt.Fprintf(sb, "  plugin aborted: %s\n\n", pr.Error)
	}
	if len(pr.Checks) == 0 {
		sb.WriteString("  No findings\n\n")
		return
	}

	for _, c := range pr.Checks {
		fmt.Fprintf(sb, "[%s] %s\n", severityIndicator(c.Severity), c.Problem)
		for _, line := range strings.Split(c.Warning, "\n") {
			if line != "" {
				fmt.Fprintf(sb, "  warning: %s\n", line)
			}
		}
		for _, p := range c.Pages {
			fmt.Fprintf(sb, "  * %s (%s)\n", p.URL, p.Kind)
			for _, problem := range p.Problems {
				fmt.Fprintf(sb, "    - %s\n", problem)
			}
		}
		if w.verbose && len(c.Pages) > 0 {
			fmt.Fprintf(sb, "    Impact: %s\n", c.Explanation)
			fmt.Fprintf(sb, "    Fix:    %s\n", c.Solution)
		}
		sb.WriteString("\n")
	}
}

func (w *SimpleWriter) writeTroublesome(sb *strings.Builder, report *model.ScanReport) {
	if len(report.Troublesome) == 0 {
		return
	}
	w.section(sb, "TROUBLESOME URLS")
	for _, u := range report.Troublesome {
		fmt.Fprintf(sb, "  [x] %s\n", u)
	}
	sb.WriteString("\n")
}

// severityIndicator returns a visual indicator for the severity level.
func severityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by xssweep\n")
	sb.WriteString("https://github.com/nao1215/xssweep\n")
	rule(sb, "=")
}
