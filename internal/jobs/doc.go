// Package jobs keeps a local SQLite ledger of render jobs handed to the job
// service.
//
// The job service owns execution; hdx never polls it. The ledger only
// remembers what was submitted from this machine (job id, title, command,
// source, destination, entity path) so the CLI can list recent submissions.
// Writes retry on SQLITE_BUSY because several CLI processes may share one
// database; remote calls are never retried.
package jobs
