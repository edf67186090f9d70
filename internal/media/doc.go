// Package media wraps the files artists hand to hdx: single movies and
// images, and frame sequences addressed with a printf pattern such as
// plate.%04d.exr.
//
// Sequences discover their frame range from disk. Shot-name heuristics pull a
// shot code out of vendor file names. Render hands any media to the render
// job service through Mavis and, when a ledger is configured, notes the
// submission locally. Rendering itself happens elsewhere; nothing here waits
// for a job to finish.
package media
