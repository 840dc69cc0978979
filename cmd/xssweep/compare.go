package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/xssweep/internal/config"
	"github.com/nao1215/xssweep/internal/database"
	"github.com/nao1215/xssweep/internal/model"
)

const (
	riskDirectionWorsened  = "worsened"
	riskDirectionImproved  = "improved"
	riskDirectionUnchanged = "unchanged"
	noFindingsMessage      = "No findings"
)

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [url]",
		Short: "Compare scan results with historical data",
		Long: `Compare shows what changed between two stored scans of a target:
findings that appeared, findings that were fixed, and the change in
finding counts per severity.

Scans are saved by 'xssweep scan' unless --no-db is given.

Examples:
  # Compare the latest two scans
  xssweep compare http://localhost:8080/

  # List the stored scans of a target
  xssweep compare --list http://localhost:8080/

  # Compare the latest scan with a specific one
  xssweep compare --with-scan-id 6f1c... http://localhost:8080/

  # Compare with the first scan since a date
  xssweep compare --since 2026-01-01 http://localhost:8080/

  # List every scanned target
  xssweep compare --list-targets`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("list", "l", false, "List scan history for the specified target")
	cmd.Flags().BoolP("list-targets", "L", false, "List all scanned targets in the database")
	cmd.Flags().StringP("with-scan-id", "i", "", "Compare with a specific scan by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "", "Compare with the first scan after this date (format: YYYY-MM-DD)")
	cmd.Flags().BoolP("json", "j", false, "Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output comparison result in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the scan history database")

	return cmd
}

func runCompareCmd(cmd *cobra.Command, args []string) error {
	listTargets, err := cmd.Flags().GetBool("list-targets")
	if err != nil {
		return err
	}

	// Validate before opening the database.
	var target string
	if !listTargets {
		if len(args) == 0 {
			return errors.New("target URL is required (use --list-targets to see scanned targets)")
		}
		target = normalizeTarget(args[0])
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if listTargets {
		return listScannedTargets(ctx, out, db)
	}

	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listScanHistory(ctx, out, db, target)
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	withScanID, err := cmd.Flags().GetString("with-scan-id")
	if err != nil {
		return err
	}
	sinceDate, err := cmd.Flags().GetString("since")
	if err != nil {
		return err
	}

	previous, current, err := selectReports(ctx, db, target, withScanID, sinceDate)
	if err != nil {
		return err
	}

	comparison := compareReports(previous, current)
	switch {
	case jsonOutput:
		return outputComparisonJSON(out, comparison)
	case markdownOutput:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

func listScannedTargets(ctx context.Context, out io.Writer, db *database.ScanDB) error {
	targets, err := db.ListScannedTargets(ctx)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Fprintln(out, "No scanned targets found in the database.")
		fmt.Fprintln(out, "\nUse 'xssweep scan <url>' to scan a target.")
		return nil
	}

	fmt.Fprintf(out, "Scanned targets (%d):\n\n", len(targets))
	for _, t := range targets {
		fmt.Fprintf(out, "  * %s\n", t)
	}
	fmt.Fprintln(out, "\nUse 'xssweep compare --list <url>' to see the scan history of a target.")
	return nil
}

func listScanHistory(ctx context.Context, out io.Writer, db *database.ScanDB, target string) error {
	history, err := db.GetScanHistory(ctx, target)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintf(out, "No scan history found for %s\n", target)
		return nil
	}

	fmt.Fprintf(out, "Scan history for %s (%d scans):\n\n", target, len(history))
	fmt.Fprintf(out, "  %-36s  %-20s  %-6s  %s\n", "ID", "Date", "Pages", "Risk Summary")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 86))
	for _, meta := range history {
		summary := formatRiskSummary(meta.RiskSummary)
		switch {
		case meta.TimedOut:
			summary += " (timed out)"
		case meta.Error != "":
			summary += " (failed)"
		}
		fmt.Fprintf(out, "  %-36s  %-20s  %-6d  %s\n",
			meta.ScanID, meta.Timestamp.Local().Format("2006-01-02 15:04:05"), meta.PageCount, summary)
	}
	return nil
}

// formatRiskSummary formats severity counts as "C:1 H:2".
func formatRiskSummary(summary map[string]int) string {
	if summary == nil {
		return "N/A"
	}

	var parts []string
	for _, sev := range []struct{ key, label string }{
		{"critical", "C"}, {"high", "H"}, {"medium", "M"}, {"low", "L"}, {"info", "I"},
	} {
		if v := summary[sev.key]; v > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", sev.label, v))
		}
	}
	if len(parts) == 0 {
		return noFindingsMessage
	}
	return strings.Join(parts, " ")
}

// selectReports returns the report to compare against and the latest one.
func selectReports(ctx context.Context, db *database.ScanDB, target, withScanID, sinceDate string) (*model.ScanReport, *model.ScanReport, error) {
	history, err := db.GetScanHistory(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	if len(history) == 0 {
		return nil, nil, fmt.Errorf("no scan history found for %s", target)
	}
	if len(history) < 2 {
		return nil, nil, fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(history))
	}

	current, err := db.GetScanReportByID(ctx, history[0].ScanID)
	if err != nil {
		return nil, nil, err
	}

	previousID := history[1].ScanID
	switch {
	case withScanID != "":
		previousID = withScanID
	case sinceDate != "":
		since, err := time.ParseInLocation("2006-01-02", sinceDate, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		// history is newest first; the oldest scan at or after since wins.
		previousID = ""
		for _, meta := range slices.Backward(history) {
			if !meta.Timestamp.Before(since) {
				previousID = meta.ScanID
				break
			}
		}
		if previousID == "" {
			return nil, nil, fmt.Errorf("no scans found since %s", sinceDate)
		}
		if previousID == history[0].ScanID {
			return nil, nil, fmt.Errorf("only one scan found since %s; at least 2 scans are required for comparison", sinceDate)
		}
	}

	previous, err := db.GetScanReportByID(ctx, previousID)
	if err != nil {
		return nil, nil, err
	}
	if previous == nil {
		return nil, nil, fmt.Errorf("scan %s not found", previousID)
	}
	if previous.Target != target {
		return nil, nil, fmt.Errorf("scan %s belongs to %s, not %s", previousID, previous.Target, target)
	}
	return previous, current, nil
}

// ComparisonResult holds the result of comparing two scan reports.
type ComparisonResult struct {
	Target           string        `json:"target"`
	PreviousScan     ScanMetadata  `json:"previous_scan"`
	CurrentScan      ScanMetadata  `json:"current_scan"`
	NewFindings      []FindingDiff `json:"new_findings,omitempty"`
	ResolvedFindings []FindingDiff `json:"resolved_findings,omitempty"`
	UnchangedCount   int           `json:"unchanged_count"`
	RiskChange       RiskChange    `json:"risk_change"`
}

// ScanMetadata contains metadata about a scan for comparison display.
type ScanMetadata struct {
	ScanID      string        `json:"scan_id"`
	DateScanned time.Time     `json:"date_scanned"`
	Summary     model.Summary `json:"summary"`
}

// FindingDiff is one (check, page) pair that appeared or disappeared.
type FindingDiff struct {
	Type     string         `json:"type"`
	Severity model.Severity `json:"severity"`
	Problem  string         `json:"problem"`
	URL      string         `json:"url"`
	Kind     model.PageKind `json:"kind"`
}

// RiskChange describes the change in risk level between scans.
type RiskChange struct {
	// Direction is "improved", "worsened", or "unchanged".
	Direction     string `json:"direction"`
	CriticalDelta int    `json:"critical_delta"`
	HighDelta     int    `json:"high_delta"`
	MediumDelta   int    `json:"medium_delta"`
	LowDelta      int    `json:"low_delta"`
	InfoDelta     int    `json:"info_delta"`
}

// findingsOf flattens a report to (check, page) pairs keyed by type,
// normalized URL and page kind.
func findingsOf(r *model.ScanReport) map[string]FindingDiff {
	findings := make(map[string]FindingDiff)
	for _, pr := range r.PluginResults {
		for _, c := range pr.Checks {
			for _, p := range c.Pages {
				key := c.Type + "|" + model.NormalizeURL(p.URL) + "|" + p.Kind.String()
				findings[key] = FindingDiff{
					Type:     c.Type,
					Severity: c.Severity,
					Problem:  c.Problem,
					URL:      p.URL,
					Kind:     p.Kind,
				}
			}
		}
	}
	return findings
}

// sortFindings orders by severity, most severe first, then URL.
func sortFindings(f []FindingDiff) {
	slices.SortFunc(f, func(a, b FindingDiff) int {
		return cmp.Or(cmp.Compare(b.Severity, a.Severity), cmp.Compare(a.URL, b.URL), cmp.Compare(a.Type, b.Type))
	})
}

func compareReports(previous, current *model.ScanReport) *ComparisonResult {
	result := &ComparisonResult{
		Target:       current.Target,
		PreviousScan: ScanMetadata{ScanID: previous.ID, DateScanned: previous.DateScanned, Summary: previous.Summarize()},
		CurrentScan:  ScanMetadata{ScanID: current.ID, DateScanned: current.DateScanned, Summary: current.Summarize()},
	}

	before := findingsOf(previous)
	after := findingsOf(current)
	for key, f := range after {
		if _, ok := before[key]; !ok {
			result.NewFindings = append(result.NewFindings, f)
		}
	}
	for key, f := range before {
		if _, ok := after[key]; ok {
			result.UnchangedCount++
			continue
		}
		result.ResolvedFindings = append(result.ResolvedFindings, f)
	}
	sortFindings(result.NewFindings)
	sortFindings(result.ResolvedFindings)

	result.RiskChange = calculateRiskChange(result.PreviousScan.Summary, result.CurrentScan.Summary)
	return result
}

// riskScore weights severities so one stored XSS outweighs many header issues.
func riskScore(s model.Summary) int {
	return s.CriticalCount*100 + s.HighCount*50 + s.MediumCount*10 + s.LowCount*5 + s.InfoCount
}

func calculateRiskChange(previous, current model.Summary) RiskChange {
	change := RiskChange{
		CriticalDelta: current.CriticalCount - previous.CriticalCount,
		HighDelta:     current.HighCount - previous.HighCount,
		MediumDelta:   current.MediumCount - previous.MediumCount,
		LowDelta:      current.LowCount - previous.LowCount,
		InfoDelta:     current.InfoCount - previous.InfoCount,
	}

	switch before, after := riskScore(previous), riskScore(current); {
	case after < before:
		change.Direction = riskDirectionImproved
	case after > before:
		change.Direction = riskDirectionWorsened
	default:
		change.Direction = riskDirectionUnchanged
	}
	return change
}

func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// severityRows returns one row per severity: name, previous, current, delta.
func severityRows(result *ComparisonResult) [][]string {
	prev, cur, rc := result.PreviousScan.Summary, result.CurrentScan.Summary, result.RiskChange
	return [][]string{
		{"Critical", strconv.Itoa(prev.CriticalCount), strconv.Itoa(cur.CriticalCount), formatDelta(rc.CriticalDelta)},
		{"High", strconv.Itoa(prev.HighCount), strconv.Itoa(cur.HighCount), formatDelta(rc.HighDelta)},
		{"Medium", strconv.Itoa(prev.MediumCount), strconv.Itoa(cur.MediumCount), formatDelta(rc.MediumDelta)},
		{"Low", strconv.Itoa(prev.LowCount), strconv.Itoa(cur.LowCount), formatDelta(rc.LowDelta)},
		{"Info", strconv.Itoa(prev.InfoCount), strconv.Itoa(cur.InfoCount), formatDelta(rc.InfoDelta)},
		{"Total", strconv.Itoa(prev.Total()), strconv.Itoa(cur.Total()), formatDelta(cur.Total() - prev.Total())},
	}
}

func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)
	md.H1("Scan Comparison: " + result.Target)
	md.PlainText("")
	md.PlainTextf("**Risk Status:** %s", formatRiskDirection(result.RiskChange.Direction))
	md.PlainText("")

	rows := [][]string{{
		"Date",
		result.PreviousScan.DateScanned.Format("2006-01-02 15:04"),
		result.CurrentScan.DateScanned.Format("2006-01-02 15:04"),
		"-",
	}}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows:   append(rows, severityRows(result)...),
	})
	md.PlainText("")

	if len(result.NewFindings) > 0 {
		md.H2f("New Findings (%d)", len(result.NewFindings))
		md.PlainText("")
		items := make([]string, 0, len(result.NewFindings))
		for _, f := range result.NewFindings {
			items = append(items, fmt.Sprintf("**[%s]** %s: `%s`", f.Severity, f.Problem, f.URL))
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	if len(result.ResolvedFindings) > 0 {
		md.H2f("Resolved Findings (%d)", len(result.ResolvedFindings))
		md.PlainText("")
		items := make([]string, 0, len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			items = append(items, fmt.Sprintf("~~**[%s]** %s: `%s`~~", f.Severity, f.Problem, f.URL))
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainTextf("*%d findings unchanged*", result.UnchangedCount)
	}
	return md.Build()
}

func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Scan Comparison: %s\n", result.Target)
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&sb, "\nRisk Status: %s\n", formatRiskDirection(result.RiskChange.Direction))
	fmt.Fprintf(&sb, "\nPrevious scan: %s\n", result.PreviousScan.DateScanned.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Current scan:  %s\n", result.CurrentScan.DateScanned.Format("2006-01-02 15:04:05"))

	sb.WriteString("\nFindings Summary:\n")
	fmt.Fprintf(&sb, "  %-10s  %-10s  %-10s  %-10s\n", "Severity", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 45) + "\n")
	for _, row := range severityRows(result) {
		fmt.Fprintf(&sb, "  %-10s  %-10s  %-10s  %-10s\n", row[0], row[1], row[2], row[3])
	}

	if len(result.NewFindings) > 0 {
		fmt.Fprintf(&sb, "\nNew Findings (%d):\n", len(result.NewFindings))
		for _, f := range result.NewFindings {
			fmt.Fprintf(&sb, "  [+] [%s] %s: %s\n", f.Severity, f.Problem, f.URL)
		}
	}
	if len(result.ResolvedFindings) > 0 {
		fmt.Fprintf(&sb, "\nResolved Findings (%d):\n", len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			fmt.Fprintf(&sb, "  [-] [%s] %s: %s\n", f.Severity, f.Problem, f.URL)
		}
	}
	if result.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d findings\n", result.UnchangedCount)
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

func formatRiskDirection(direction string) string {
	switch direction {
	case riskDirectionImproved:
		return "IMPROVED (risk decreased)"
	case riskDirectionWorsened:
		return "WORSENED (risk increased)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a delta with its sign.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
