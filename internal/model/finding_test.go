package model

import "testing"

// TestCheckResultAddPageProblem tests merging of page entries.
func TestCheckResultAddPageProblem(t *testing.T) {
	t.Parallel()

	t.Run("merges entries for the same page", func(t *testing.T) {
		t.Parallel()

		c := &CheckResult{}
		c.AddPageProblem(&Page{URL: "http://a.test/x"}, "first")
		c.AddPageProblem(&Page{URL: "https://a.test/x#top"}, "second")
		c.AddPageProblem(&Page{URL: "http://a.test/x"}, "first")

		if len(c.Pages) != 1 {
			t.Fatalf("got %d page results, expected 1", len(c.Pages))
		}
		if len(c.Pages[0].Problems) != 2 {
			t.Errorf("got problems %v, expected 2 entries", c.Pages[0].Problems)
		}
	})

	t.Run("keeps session and anonymous pages apart", func(t *testing.T) {
		t.Parallel()

		c := &CheckResult{}
		c.AddPageProblem(&Page{URL: "http://a.test/x"}, "p")
		c.AddPageProblem(&Page{URL: "http://a.test/x", Kind: PageKindSession}, "p")

		if len(c.Pages) != 2 {
			t.Errorf("got %d page results, expected 2", len(c.Pages))
		}
	})
}

// TestPluginResult tests check lookup and severity aggregation.
func TestPluginResult(t *testing.T) {
	t.Parallel()

	r := NewPluginResult("xss", "red")
	reflected := r.Check(FindingReflectedXSS)
	if r.Check(FindingReflectedXSS) != reflected {
		t.Fatal("expected the same check to be returned")
	}
	if reflected.Problem == "" || reflected.Solution == "" || reflected.Explanation == "" {
		t.Errorf("expected triple from finding table, got %+v", reflected)
	}

	stored := r.Check(FindingStoredXSS)
	stored.AddWarning("one")
	stored.AddWarning("two")
	if stored.Warning != "one\ntwo" {
		t.Errorf("got warning %q", stored.Warning)
	}

	if r.Severity() != SeverityInfo {
		t.Errorf("checks without pages must not raise severity, got %v", r.Severity())
	}

	reflected.AddPageProblem(&Page{URL: "http://a.test/"}, "form 0")
	if r.Severity() != SeverityHigh {
		t.Errorf("got %v, expected HIGH", r.Severity())
	}
	if r.FindingCount() != 1 {
		t.Errorf("got %d findings, expected 1", r.FindingCount())
	}
}

// TestScanReport tests the ScanReport helpers.
func TestScanReport(t *testing.T) {
	t.Parallel()

	report := NewScanReport("http://a.test/")
	if report.ID == "" {
		t.Error("expected scan ID")
	}
	if report.DateScanned.IsZero() {
		t.Error("expected DateScanned to be set")
	}

	report.Pages = append(report.Pages,
		&Page{URL: "http://a.test/"},
		&Page{URL: "http://a.test/account", Kind: PageKindSession, Session: &SessionEvidence{}},
	)
	report.Troublesome = []string{"http://a.test/broken"}

	r := NewPluginResult("xss", "red")
	r.Check(FindingStoredXSS).AddPageProblem(report.Pages[1], "stored")
	r.Check(FindingCSPMissing).AddPageProblem(report.Pages[0], "no csp")
	r.Check(FindingCSPMissing).AddPageProblem(report.Pages[1], "no csp")
	report.PluginResults = append(report.PluginResults, r)

	if got := report.GetPage("https://a.test/account"); got != report.Pages[1] {
		t.Error("expected page lookup by normalized URL")
	}
	if got := report.GetPage("http://a.test/missing"); got != nil {
		t.Error("expected nil for unknown page")
	}

	s := report.Summarize()
	if s.CriticalCount != 1 || s.MediumCount != 2 || s.Total() != 3 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.PagesCrawled != 2 || s.SessionPages != 1 || s.Troublesome != 1 {
		t.Errorf("unexpected page counts: %+v", s)
	}
}
