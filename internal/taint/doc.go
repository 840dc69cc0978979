// Package taint finds DOM-based XSS candidates by static inspection of
// script text.
//
// A script is suspicious when attacker-controlled data (a source such as
// location.hash or document.referrer) and a dangerous operation (a sink such
// as innerHTML or eval) appear in the same script. The matching is purely
// textual: no data flow is tracked, so results are candidates for manual
// review rather than confirmed vulnerabilities.
//
// Script pages are checked as a whole. HTML pages are checked per inline
// <script> element; a script without a source is still reported when it
// reads one of the page's text inputs.
package taint
