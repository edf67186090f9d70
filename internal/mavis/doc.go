// Package mavis talks to the Mavis entity database over its path-addressed
// HTTP API.
//
// A Client owns one login session. The session is the set of cookies the
// server last sent plus an optional access token; every request carries it
// and any response that sets cookies replaces it. Status codes of 400 and
// above become *Error values, except 404, which is returned as an ordinary
// Response so callers can decide whether a miss is benign. Nothing is retried.
//
// api.go layers the entity verbs (lookup, make, update, move, copy, remove,
// list) and the render-job submission on top of the transport, and
// session_store.go persists sessions between CLI invocations.
package mavis
