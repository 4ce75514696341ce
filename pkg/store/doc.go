// Package store provides persistence for per-resource phase records.
//
// The pipeline engine records the observed outcome of every phase
// operation here, keyed by (phase, resource key). Three backends are
// provided: an atomic JSON file store (the default), a SQLite store
// that additionally keeps run history and an append-only event log,
// and an in-memory store for tests and dry runs.
package store
