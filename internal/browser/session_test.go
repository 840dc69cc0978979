package browser_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/xssweep/internal/browser"
	"github.com/nao1215/xssweep/internal/browser/browsertest"
	"github.com/nao1215/xssweep/internal/model"
)

func TestStateLoaded(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		state    browser.State
		expected bool
	}{
		{"ok html", browser.State{StatusCode: 200, ContentType: "text/html"}, true},
		{"not found", browser.State{StatusCode: 404, ContentType: "text/html"}, false},
		{"redirect", browser.State{StatusCode: 302, ContentType: "text/html"}, false},
		{"missing content type", browser.State{StatusCode: 200}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.state.Loaded(); got != tc.expected {
				t.Errorf("Loaded() = %v, expected %v", got, tc.expected)
			}
		})
	}
}

func TestStateHasResource(t *testing.T) {
	t.Parallel()

	state := &browser.State{Resources: []string{"http://a.test/app.js", "http://a.test/style.css#x"}}

	if !state.HasResource("https://a.test/app.js") {
		t.Error("expected resource match regardless of scheme")
	}
	if !state.HasResource("http://a.test/style.css") {
		t.Error("expected resource match without fragment")
	}
	if state.HasResource("http://a.test/other.js") {
		t.Error("unexpected resource match")
	}
}

func TestStatePage(t *testing.T) {
	t.Parallel()

	state := &browser.State{
		URL:         "http://a.test/",
		StatusCode:  200,
		ContentType: "text/html",
		Content:     "<p>hello</p>",
		Cookies:     []model.Cookie{{Name: "sid", Value: "1"}},
	}

	page := state.Page("http://a.test/parent")
	if page.URL != state.URL || page.Parent != "http://a.test/parent" {
		t.Errorf("unexpected page: %+v", page)
	}
	if page.Hash == "" || page.FormlessHash == "" {
		t.Error("expected hashes to be computed")
	}

	state.Cookies[0].Value = "changed"
	if page.Cookies[0].Value != "1" {
		t.Error("page cookies must not alias state cookies")
	}
}

func TestLaunchWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("retries once", func(t *testing.T) {
		t.Parallel()

		launcher := browsertest.NewLauncher(browsertest.NewSite())
		launcher.FailNext(1)

		session, err := browser.LaunchWithRetry(context.Background(), launcher, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer session.Close()

		if launcher.Launched() != 1 {
			t.Errorf("got %d launches, expected 1", launcher.Launched())
		}
	})

	t.Run("gives up after the second failure", func(t *testing.T) {
		t.Parallel()

		launcher := browsertest.NewLauncher(browsertest.NewSite())
		launcher.FailNext(2)

		_, err := browser.LaunchWithRetry(context.Background(), launcher, nil)
		if !errors.Is(err, browser.ErrLaunchFailed) {
			t.Errorf("expected ErrLaunchFailed, got %v", err)
		}
	})

	t.Run("does not retry a cancelled context", func(t *testing.T) {
		t.Parallel()

		launcher := browsertest.NewLauncher(browsertest.NewSite())
		launcher.FailNext(1)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := browser.LaunchWithRetry(ctx, launcher, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
