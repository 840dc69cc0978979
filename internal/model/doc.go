// Package model defines the data structures shared by the crawler, the
// vulnerability plugins and the report writers.
//
// This package contains the following main types:
//   - Page: A page fetched through the browser, optionally session-bound
//   - Form: A form derived on demand from a page's markup
//   - CSPPolicy: The parsed Content-Security-Policy of a page
//   - PluginResult: The grouped findings of one plugin
//   - ScanReport: The main scan result structure
//
// The models are serializable to JSON for report output and database storage.
// Page content and cookies are excluded from JSON to keep reports small and
// free of session secrets.
package model
