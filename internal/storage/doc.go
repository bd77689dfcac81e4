// Package storage is the bot's persistence layer: the user roster, the
// admin roster, recurring announcement schedules, and a compact broadcast
// audit log, all in a single SQLite database.
//
// The store is a capability handle passed to the components that need it;
// nothing in this package reaches for globals.
package storage
