// Package store is the durable profile repository: enrolled users, their
// voice samples, the append-only authentication log, and enrollment
// sessions. All writes to one profile are serialized through a row lock on
// the owning user row.
package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voicekey/voicekey/internal/cache"
)

var (
	// ErrProfileNotFound is returned when the referenced profile does not
	// exist (or is soft-deleted, for lookups that only see active rows).
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileInactive is returned when enrolling against a soft-deleted
	// profile. Nothing is written.
	ErrProfileInactive = errors.New("profile is inactive")
	// ErrUsernameTaken is returned by CreateProfile on a duplicate username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrSessionNotFound is returned for unknown or finished sessions.
	ErrSessionNotFound = errors.New("enrollment session not found")
)

type ProfileStore struct {
	db    *pgxpool.Pool
	cache *cache.Cache // optional; nil disables candidate caching
}

// NewProfileStore wires the store to Postgres and an optional redis cache
// for the active-candidate listing.
func NewProfileStore(db *pgxpool.Pool, c *cache.Cache) *ProfileStore {
	return &ProfileStore{db: db, cache: c}
}
