package taint

import "errors"

var (
	// ErrUnparsableMarkup is returned when an HTML page cannot be parsed,
	// such as a binary body served with an HTML content type.
	ErrUnparsableMarkup = errors.New("unparsable markup")

	// ErrMalformedInputSource is returned when an input descriptor carries
	// neither an id, a name nor a class.
	ErrMalformedInputSource = errors.New("malformed input source")
)
