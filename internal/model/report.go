package model

import (
	"time"

	"github.com/google/uuid"
)

// ScanReport is the main scan result structure.
// It contains the discovered page set and every plugin's findings for one target.
type ScanReport struct {
	// ID uniquely identifies the scan in the database and in report files.
	ID string `json:"id"`

	// Target is the start URL of the scan.
	Target string `json:"target"`

	// DateScanned is the timestamp when the scan was performed.
	DateScanned time.Time `json:"date_scanned"`

	// Pages contains all pages discovered during crawling, in discovery order.
	Pages []*Page `json:"pages,omitempty"`

	// Troublesome lists URLs that failed to produce a usable page.
	Troublesome []string `json:"troublesome,omitempty"`

	// PluginResults holds plugin output in arrival order.
	PluginResults []*PluginResult `json:"plugin_results,omitempty"`

	// TimedOut is true if the scan was terminated due to timeout.
	TimedOut bool `json:"timed_out"`

	// PerformedScans lists the steps that were actually performed.
	PerformedScans []string `json:"performed_scans,omitempty"`

	// Error contains any error that occurred during scanning.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// NewScanReport creates a new report for the given target.
func NewScanReport(target string) *ScanReport {
	return &ScanReport{
		ID:            uuid.NewString(),
		Target:        target,
		DateScanned:   time.Now(),
		Pages:         make([]*Page, 0),
		PluginResults: make([]*PluginResult, 0),
	}
}

// SessionPages returns the pages that are only reachable inside a session.
func (r *ScanReport) SessionPages() []*Page {
	var pages []*Page
	for _, p := range r.Pages {
		if p.IsSession() {
			pages = append(pages, p)
		}
	}
	return pages
}

// GetPage returns the page with the given URL, compared in normalized form.
// Returns nil if no such page was discovered.
func (r *ScanReport) GetPage(rawURL string) *Page {
	key := NormalizeURL(rawURL)
	for _, p := range r.Pages {
		if NormalizeURL(p.URL) == key {
			return p
		}
	}
	return nil
}

// Summary counts the findings of a report by severity.
type Summary struct {
	CriticalCount int `json:"critical_count"`
	HighCount     int `json:"high_count"`
	MediumCount   int `json:"medium_count"`
	LowCount      int `json:"low_count"`
	InfoCount     int `json:"info_count"`
	PagesCrawled  int `json:"pages_crawled"`
	SessionPages  int `json:"session_pages"`
	Troublesome   int `json:"troublesome"`
}

// Total returns the number of findings of every severity.
func (s Summary) Total() int {
	return s.CriticalCount + s.HighCount + s.MediumCount + s.LowCount + s.InfoCount
}

// Summarize counts one finding per affected page of every check.
func (r *ScanReport) Summarize() Summary {
	s := Summary{
		PagesCrawled: len(r.Pages),
		SessionPages: len(r.SessionPages()),
		Troublesome:  len(r.Troublesome),
	}

	for _, pr := range r.PluginResults {
		for _, c := range pr.Checks {
			n := len(c.Pages)
			switch c.Severity {
			case SeverityCritical:
				s.CriticalCount += n
			case SeverityHigh:
				s.HighCount += n
			case SeverityMedium:
				s.MediumCount += n
			case SeverityLow:
				s.LowCount += n
			case SeverityInfo:
				s.InfoCount += n
			}
		}
	}
	return s
}
