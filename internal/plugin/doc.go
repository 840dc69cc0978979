// Package plugin runs vulnerability checks over a discovered page set.
//
// Plugins are selected by name from a static registry. The Runner executes
// them concurrently; each plugin reads the shared, read-only page set and
// hands its PluginResult to a result.Aggregator. Plugins that need a browser
// launch their own session and close it when they finish.
//
// Built-in plugins:
//   - xss: reflected and stored XSS through live form submission
//   - dom_xss: static source/sink analysis of scripts
//   - headers: CSP and cookie attribute review
package plugin
