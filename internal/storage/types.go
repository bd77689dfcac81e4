package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("storage: not found")
)

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// User is one roster entry. Every interaction upserts the sender, so the
// roster is simply "everyone who ever talked to the bot".
type User struct {
	ID         int64
	Username   string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
	LastActive time.Time
}

// Admin is one admin-roster entry.
type Admin struct {
	ID      int64
	AddedBy int64
	AddedAt time.Time
}

// AuditEntry is the persisted summary of one broadcast dispatch.
// Per-recipient outcomes are intentionally not stored.
type AuditEntry struct {
	At        time.Time
	Kind      string // "announce", "scheduled", "admin_change"
	Total     int
	Delivered int
	Failed    int
	TookMS    int64
}
