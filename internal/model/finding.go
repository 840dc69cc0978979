package model

// PluginResult groups the checks one plugin performed.
type PluginResult struct {
	// Name is the registry name of the plugin (e.g., "xss").
	Name string `json:"name"`

	// Color is the display color of the plugin in console reports.
	Color string `json:"color,omitempty"`

	// Checks is the ordered list of checks with at least one affected page
	// or an explanatory warning.
	Checks []*CheckResult `json:"checks,omitempty"`

	// Error is set when the plugin aborted. Checks hold what it found before.
	Error string `json:"error,omitempty"`
}

// NewPluginResult creates an empty result for the named plugin.
func NewPluginResult(name, color string) *PluginResult {
	return &PluginResult{
		Name:   name,
		Color:  color,
		Checks: make([]*CheckResult, 0),
	}
}

// Check returns the check for findingType, creating it from the finding
// table on first use.
func (r *PluginResult) Check(findingType string) *CheckResult {
	for _, c := range r.Checks {
		if c.Type == findingType {
			return c
		}
	}

	info := GetFindingInfo(findingType)
	c := &CheckResult{
		Type:        findingType,
		Severity:    info.Severity,
		Problem:     info.Problem,
		Solution:    info.Recommendation,
		Explanation: info.Impact,
		Pages:       make([]*PageResult, 0),
	}
	r.Checks = append(r.Checks, c)
	return c
}

// Severity returns the highest severity among checks with affected pages.
func (r *PluginResult) Severity() Severity {
	highest := SeverityInfo
	for _, c := range r.Checks {
		if len(c.Pages) > 0 && c.Severity > highest {
			highest = c.Severity
		}
	}
	return highest
}

// FindingCount returns the number of (check, page) pairs.
func (r *PluginResult) FindingCount() int {
	n := 0
	for _, c := range r.Checks {
		n += len(c.Pages)
	}
	return n
}

// CheckResult is one problem/solution/explanation triple and the pages it affects.
type CheckResult struct {
	Type        string        `json:"type"`
	Severity    Severity      `json:"severity"`
	Problem     string        `json:"problem"`
	Solution    string        `json:"solution"`
	Explanation string        `json:"explanation"`
	Warning     string        `json:"warning,omitempty"`
	Pages       []*PageResult `json:"pages,omitempty"`
}

// PageResult lists the problems found on one page.
type PageResult struct {
	URL      string   `json:"url"`
	Kind     PageKind `json:"kind"`
	Problems []string `json:"problems"`
}

// AddPageProblem records problem for page. Entries are keyed by the page's
// normalized URL and kind, so repeated calls for the same page extend a
// single PageResult. Duplicate problem strings are ignored.
func (c *CheckResult) AddPageProblem(page *Page, problem string) {
	key := NormalizeURL(page.URL)
	for _, pr := range c.Pages {
		if pr.Kind == page.Kind && NormalizeURL(pr.URL) == key {
			for _, p := range pr.Problems {
				if p == problem {
					return
				}
			}
			pr.Problems = append(pr.Problems, problem)
			return
		}
	}

	c.Pages = append(c.Pages, &PageResult{
		URL:      page.URL,
		Kind:     page.Kind,
		Problems: []string{problem},
	})
}

// AddWarning appends a warning line to the check.
func (c *CheckResult) AddWarning(warning string) {
	if c.Warning == "" {
		c.Warning = warning
		return
	}
	c.Warning += "\n" + warning
}
