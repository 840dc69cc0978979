package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/xssweep/internal/model"
)

// MarkdownWriter outputs reports in GitHub flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := report.Summarize()

	w.writeHeader(md, report, summary)
	w.writeSummary(md, summary)
	for _, pr := range report.PluginResults {
		w.writePlugin(md, pr)
	}
	w.writeTroublesome(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport, s model.Summary) {
	md.H1("xssweep Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + report.Target + "`"},
			{"Scan ID", "`" + report.ID + "`"},
			{"Scan Date", report.DateScanned.Format("2006-01-02 15:04:05 MST")},
			{"Pages Crawled", strconv.Itoa(s.PagesCrawled)},
			{"Session Pages", strconv.Itoa(s.SessionPages)},
			{"Troublesome URLs", strconv.Itoa(s.Troublesome)},
			{"Status", status(report)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s model.Summary) {
	md.H2("Severity Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(severities)+1)
	for _, sev := range severities {
		rows = append(rows, []string{sev.String(), strconv.Itoa(severityCount(s, sev))})
	}
	rows = append(rows, []string{"**TOTAL**", "**" + strconv.Itoa(s.Total()) + "**"})
	md.Table(markdown.TableSet{Header: []string{"Severity", "Count"}, Rows: rows})
	md.PlainText("")

	if s.Total() > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Finding Severity Distribution"),
		piechart.WithShowData(true),
	)
	for _, sev := range severities {
		if n := severityCount(s, sev); n > 0 {
			chart.LabelAndIntValue(sev.String(), uint64(n)) //nolint:gosec // counts are never negative
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s model.Summary) {
	switch {
	case s.CriticalCount > 0:
		md.Cautionf("Stored XSS detected. %d finding(s) run script for every visitor.", s.CriticalCount)
	case s.HighCount > 0:
		md.Warningf("Script execution confirmed or likely. %d high severity finding(s).", s.HighCount)
	case s.MediumCount > 0:
		md.Importantf("%d weakness(es) make XSS easier to exploit.", s.MediumCount)
	case s.Total() > 0:
		md.Note("Only low severity and informational findings detected.")
	default:
		md.Tip("No XSS issues detected.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePlugin(md *markdown.Markdown, pr *model.PluginResult) {
	md.H2(pluginTitle(pr.Name))
	md.PlainText("")

	if pr.Error != "" {
		md.Cautionf("Plugin aborted: %s", pr.Error)
		md.PlainText("")
	}
	if len(pr.Checks) == 0 {
		md.PlainText("No findings.")
		md.PlainText("")
		return
	}

	for _, c := range pr.Checks {
		md.H3(fmt.Sprintf("[%s] %s", c.Severity, c.Problem))
		md.PlainText("")

		if c.Warning != "" {
			md.Note(strings.ReplaceAll(c.Warning, "\n", "; "))
			md.PlainText("")
		}
		if len(c.Pages) == 0 {
			continue
		}

		rows := make([][]string, 0, len(c.Pages))
		for _, p := range c.Pages {
			rows = append(rows, []string{
				truncateString(p.URL, 60),
				p.Kind.String(),
				joinCells(p.Problems),
			})
		}
		md.Table(markdown.TableSet{Header: []string{"URL", "Kind", "Details"}, Rows: rows})
		md.PlainText("")
		md.Details("Impact and fix", c.Explanation+"\n\n"+c.Solution)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeTroublesome(md *markdown.Markdown, report *model.ScanReport) {
	if len(report.Troublesome) == 0 {
		return
	}
	md.H2("Troublesome URLs")
	md.PlainText("")
	md.BulletList(report.Troublesome...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [xssweep](https://github.com/nao1215/xssweep)*")
}

var cellEscaper = strings.NewReplacer("|", `\|`, "<", "&lt;", ">", "&gt;")

// joinCells escapes problems so payloads neither break the table nor render
// as HTML, then joins them with line breaks.
func joinCells(problems []string) string {
	escaped := make([]string, len(problems))
	for i, p := range problems {
		escaped[i] = cellEscaper.Replace(p)
	}
	return strings.Join(escaped, "<br>")
}
