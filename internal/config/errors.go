package config

import "errors"

// Configuration validation errors, returned by Config.Validate.
var (
	// ErrNoTarget is returned when no start URL is given.
	ErrNoTarget = errors.New("no target specified: provide a URL or use --list")

	// ErrInvalidTarget is returned when a target is not an http(s) URL with a host.
	ErrInvalidTarget = errors.New("invalid target: must be an http or https URL")

	// ErrInvalidTimeout is returned when the navigation timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrIncompleteCredentials is returned when only one of username and password is set.
	ErrIncompleteCredentials = errors.New("incomplete credentials: username and password must be given together")

	// ErrConflictingSession is returned when both credentials and a cookie file are set.
	ErrConflictingSession = errors.New("conflicting session: use either credentials or a cookie file")
)

// File loader errors.
var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidCookieFile is returned when a cookie file is not a JSON cookie
	// object or a list of them.
	ErrInvalidCookieFile = errors.New("invalid cookie file")

	// ErrEmptyListFile is returned when a black or white list file has no words.
	ErrEmptyListFile = errors.New("list file contains no words")
)
