// Package browser drives a real browser engine over the Chrome DevTools Protocol.
//
// Every page fetch in xssweep goes through a Session so that client-side
// scripts run and alert dialogs can be observed. Session is a narrow
// interface with one chromedp-backed implementation (ChromeLauncher) and an
// in-memory fake in the browsertest subpackage.
//
// Sessions are never shared between goroutines that run independent tasks.
// Each task launches its own Session and closes it when done.
package browser
