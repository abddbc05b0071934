// Package log provides slog loggers that never print credentials.
//
// SecureHandler wraps any slog.Handler and masks attribute values before
// they reach it:
//   - attributes whose key names a credential (cookie, authorization, token, ...)
//   - values that look like credentials (bearer and basic auth, JWTs, long keys)
//   - sensitive query parameters and passwords inside URL values
//
// Mirrored pages are often fetched with site cookies and headers from the
// config file, and asset URLs frequently carry signed query strings, so the
// handler is installed for every logger the CLI creates:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
