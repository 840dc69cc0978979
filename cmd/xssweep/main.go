// Package main provides the entry point for the xssweep CLI.
//
// xssweep drives a real browser through a web application, maps the pages
// reachable with and without a session, and checks them for cross-site
// scripting.
//
// Usage:
//
//	xssweep scan <url>
//	xssweep scan --aggressive -u admin -P secret <url>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
