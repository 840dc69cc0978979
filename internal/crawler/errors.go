package crawler

import "errors"

var (
	// ErrNoPagesDiscovered is returned when the crawl produced no page at all.
	ErrNoPagesDiscovered = errors.New("no pages discovered")

	// ErrUnreachable is returned when a URL does not load as an HTTP 200
	// response with a content type.
	ErrUnreachable = errors.New("page unreachable")

	// ErrInvalidStartURL is returned when the start URL cannot be parsed.
	ErrInvalidStartURL = errors.New("invalid start URL")
)
