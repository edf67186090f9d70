// Package main hosts the hdx CLI entrypoint and command graph.
//
// The Cobra command tree parses production paths, inspects and edits their
// Mavis records, publishes attribute versions and lists render jobs recorded
// in the local ledger. It owns configuration resolution, logger setup and the
// Mavis session so subcommands only deal with entities.
//
// Keep this package lean: behaviour belongs in internal/entity and friends,
// commands only translate flags and render results.
package main
