package xss

import "errors"

var (
	// ErrEmptyCorpus is returned when a payload corpus has no usable line.
	ErrEmptyCorpus = errors.New("empty payload corpus")

	// ErrFormNoEffect is returned when a submission neither changed the
	// page nor raised an alert.
	ErrFormNoEffect = errors.New("form submission had no effect")
)
