// Package entity models the production tree as entities that exist both on
// disk and in Mavis.
//
// An Entity is built from a path, from another entity, or from a Mavis id.
// Its Kind pins the category segment it must end in (projects, shots,
// attributes and so on) and selects its behaviour. Physical kinds live on
// disk and load their Mavis metadata only when the path exists. Virtual kinds
// (tasks, notes) exist only in Mavis: their path is the container they hang
// off, and existence comes from a remote lookup cached on the instance.
//
// Metadata is cached per instance as category -> record. An entity built from
// one that already carries metadata inherits a copy and fetches only its own
// category; otherwise it fetches itself and every ancestor in one call.
//
// Entities are not safe for concurrent use. Two instances pointing at the same
// remote entity do not coordinate; the last write wins in Mavis.
package entity
