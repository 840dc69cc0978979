package browser

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
)

func TestIsBlockedImage(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		url      string
		expected bool
	}{
		{"http://a.test/logo.png", true},
		{"http://a.test/photo.JPG", true},
		{"http://a.test/anim.gif?v=3", true},
		{"http://a.test/icon.svg", false},
		{"http://a.test/photo.jpeg", false},
		{"http://a.test/app.js", false},
		{"http://a.test/png", false},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			t.Parallel()
			if got := isBlockedImage(tc.url); got != tc.expected {
				t.Errorf("isBlockedImage(%q) = %v, expected %v", tc.url, got, tc.expected)
			}
		})
	}
}

func TestConvertHeaders(t *testing.T) {
	t.Parallel()

	headers := convertHeaders(network.Headers{
		"content-type":    "text/html",
		"set-cookie":      "a=1; HttpOnly\nb=2",
		"x-frame-options": "DENY",
	})

	if got := firstHeader(headers, "Content-Type"); got != "text/html" {
		t.Errorf("got %q, expected text/html", got)
	}
	if got := headers["Set-Cookie"]; len(got) != 2 || got[1] != "b=2" {
		t.Errorf("expected split Set-Cookie values, got %v", got)
	}
	if _, ok := headers["X-Frame-Options"]; !ok {
		t.Error("expected canonical header name")
	}
}

func TestNewChromeLauncher(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		l := NewChromeLauncher()
		if !l.headless || !l.blockImages {
			t.Error("expected headless with image blocking by default")
		}
		if l.navTimeout != DefaultNavigationTimeout {
			t.Errorf("got %v, expected %v", l.navTimeout, DefaultNavigationTimeout)
		}
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()

		l := NewChromeLauncher(
			WithHeadless(false),
			WithNavigationTimeout(5*time.Second),
			WithNavigationTimeout(0),
			WithProxy("socks5://127.0.0.1:9050"),
			WithUserAgent("xssweep-test"),
			WithBlockImages(false),
		)
		if l.headless || l.blockImages {
			t.Error("expected options to apply")
		}
		if l.navTimeout != 5*time.Second {
			t.Errorf("zero timeout must be ignored, got %v", l.navTimeout)
		}
		if len(l.allocatorOptions()) == 0 {
			t.Error("expected allocator options")
		}
	})
}

func TestChromeSessionNavigationEvents(t *testing.T) {
	t.Parallel()

	documentRequest := func(id, frame, rawURL string) *network.EventRequestWillBeSent {
		return &network.EventRequestWillBeSent{
			RequestID: network.RequestID(id),
			LoaderID:  cdp.LoaderID(id),
			FrameID:   cdp.FrameID(frame),
			Type:      network.ResourceTypeDocument,
			Request:   &network.Request{URL: rawURL, Method: "GET"},
		}
	}
	response := func(id string, status int64, csp string) *network.EventResponseReceived {
		return &network.EventResponseReceived{
			RequestID: network.RequestID(id),
			Response: &network.Response{
				Status:   status,
				MimeType: "text/html",
				Headers:  network.Headers{"content-security-policy": csp},
			},
		}
	}

	t.Run("iframe document does not replace the page", func(t *testing.T) {
		t.Parallel()

		s := &chromeSession{}
		s.setMainFrame("main")

		s.onRequest(documentRequest("doc-1", "main", "http://app.test/"))
		s.onResponse(response("doc-1", 200, "script-src 'self'"))
		s.onRequest(documentRequest("doc-2", "child", "http://ads.test/frame"))
		s.onResponse(response("doc-2", 404, "script-src *"))

		if s.status != 200 || s.request.URL != "http://app.test/" {
			t.Errorf("expected main document state, got status %d for %s", s.status, s.request.URL)
		}
		if got := firstHeader(s.headers, "Content-Security-Policy"); got != "script-src 'self'" {
			t.Errorf("expected main document CSP, got %q", got)
		}
		if len(s.resources) != 1 || s.resources[0] != "http://ads.test/frame" {
			t.Errorf("expected iframe as sub-resource, got %v", s.resources)
		}
	})

	t.Run("main frame navigation resets state", func(t *testing.T) {
		t.Parallel()

		s := &chromeSession{}
		s.handleEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "main"}})
		s.handleEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "child", ParentID: "main"}})

		s.onRequest(documentRequest("doc-1", "main", "http://app.test/"))
		s.onRequest(&network.EventRequestWillBeSent{
			RequestID: "img-1",
			LoaderID:  "doc-1",
			FrameID:   "main",
			Type:      network.ResourceTypeScript,
			Request:   &network.Request{URL: "http://app.test/app.js"},
		})
		s.onRequest(documentRequest("doc-3", "main", "http://app.test/next"))
		s.onResponse(response("doc-3", 200, ""))

		if s.mainFrame != "main" {
			t.Errorf("expected main frame to stay main, got %q", s.mainFrame)
		}
		if s.request.URL != "http://app.test/next" || len(s.resources) != 0 {
			t.Errorf("expected fresh state for the new document, got %s with %v", s.request.URL, s.resources)
		}
	})
}
