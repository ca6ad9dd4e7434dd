// Package stores keeps a journal of deploys in SQLite: one row per deploy
// with its final stage and error, and one row per file copied to the device.
// A failed deploy leaves the device partially updated; the journal is how
// to find out which files made it.
package stores
