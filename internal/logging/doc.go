// Package logging provides structured logging utilities for the meetingd application.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - Consistent attribute naming across the codebase
//   - Token sanitization helpers
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "token.refresh")
//	logger.Info("access token refreshed",
//	    logging.Status("success"))
//
// # Security Considerations
//
// OAuth access and refresh tokens are never logged directly; use
// SanitizeToken to log only a length indicator.
package logging
