// Package logging assembles structured slog loggers and formatting helpers used
// across hdx.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so entity and remote-client code
// can tag log lines with entity paths and correlation IDs. The package also
// provides a no-op logger for tests and for library callers that do not pass
// one in.
package logging
