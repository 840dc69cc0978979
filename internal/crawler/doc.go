// Package crawler discovers the pages of a web application through a real browser.
//
// # Architecture
//
// The Spider drives one browser session depth-first and records every page
// that loads with HTTP 200. All traversal bookkeeping lives in a CrawlState
// that is created at the start of Discover and dropped when it returns.
//
// When credentials or an imported cookie set are available, a second
// "shadow" browser without a session fetches every page again. Pages whose
// anonymous rendering differs are recorded as session pages. If the session
// dies mid-crawl (for example after following a logout link) the pages
// collected under the session are rolled back and the login is retried
// with the logout URL excluded.
//
// # Components
//
//   - Spider: The crawler that coordinates discovery
//   - Parser: HTML parser that extracts anchors, scripts and stylesheets
//   - Scope: Black/white-list filter applied to the final page set
//
// # Usage
//
//	spider := crawler.NewSpider(launcher, crawler.WithRateLimit(5))
//	result, err := spider.Discover(ctx, "http://localhost:8080", crawler.DiscoverOptions{
//		MaxPages:  100,
//		Recursive: true,
//	})
package crawler
