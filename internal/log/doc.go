// Package log provides slog loggers that mask sensitive values.
//
// A scanner that logs in to the target sees passwords, session cookies and
// CSRF tokens. SecureHandler masks them before they reach any output:
//   - attributes named like credentials, cookies or tokens
//   - JWT, bearer and basic-auth values under any key
//   - sensitive query parameters inside logged URLs
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Warn("login failed", "url", loginURL, "password", pw) // password is masked
//	slog.SetDefault(logger)
package log
