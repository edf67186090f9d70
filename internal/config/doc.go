// Package config loads, normalizes, and validates hdx configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MAVIS_HOST, MAVIS_USERNAME and MAVIS_PASSWORD. The Config type centralizes
// the canonical root and its aliases, the remote endpoint, the job ledger and
// logging, so the path parser, the remote client and the CLI all agree on one
// view of the facility.
package config
