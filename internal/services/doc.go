// Package services defines shared utilities consumed by the entity layer, the
// remote client, and the CLI.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that keep failures
//     classifiable (validation, already-exists, not-found, integrity,
//     transport, unreachable, configuration) as they propagate uncaught.
//   - Context helpers that stamp correlation identifiers and entity paths for
//     logging and for the X-Request-ID header on remote calls.
//
// There is no recovery layer: callers receive the first failure unchanged,
// and these helpers only annotate it.
package services
