// Package sqlite persists trip analysis runs and their outputs (track map,
// events, TTC series) in SQLite.
//
// The schema is owned by the embedded golang-migrate migrations under
// migrations/; Open applies them before returning.
package sqlite
