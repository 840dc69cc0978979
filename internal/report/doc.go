// Package report renders a scan report.
//
//   - SimpleWriter: text for the terminal, plugin headers in the plugin's color
//   - MarkdownWriter: GitHub flavored Markdown with a severity pie chart
//   - JSONWriter and FullJSONWriter: the complete report for other tools
//
// Writers implement the Writer interface and can be combined with MultiWriter.
package report
