// Package xss detects reflected and stored cross-site scripting by
// submitting forms through a real browser.
//
// Every text input of a form receives a payload carrying a unique marker.
// An alert dialog whose text equals one of the markers proves that the
// payload executed. Revisiting the page without submitting again and seeing
// the same marker proves that the payload was stored.
//
// Payloads come from a line-oriented corpus. Each line holds the
// placeholder {{marker}} exactly once. The page's Content-Security-Policy
// decides which payload families are worth trying.
package xss
