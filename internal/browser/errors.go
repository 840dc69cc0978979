package browser

import "errors"

var (
	// ErrLaunchFailed is returned when the browser process cannot be started.
	ErrLaunchFailed = errors.New("failed to launch browser")

	// ErrNavigationTimeout is returned when a navigation exceeds the navigation timeout.
	ErrNavigationTimeout = errors.New("navigation timed out")

	// ErrFormNotFound is returned when the requested form does not exist on the current page.
	ErrFormNotFound = errors.New("form not found")

	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("browser session closed")
)
