package database

import (
	"context"
	"time"
)

// GalleryReader provides read-only access to enrolled identities
type GalleryReader interface {
	// Lookup retrieves an identity by ID, returns nil if not found
	Lookup(ctx context.Context, id int64) (*Identity, error)
	// All returns every enrolled identity including templates (matcher initialization/reload)
	All(ctx context.Context) ([]Identity, error)
	// Count returns the number of enrolled identities
	Count(ctx context.Context) (int, error)
	// FindByName returns identities whose display name matches after normalization
	// (lowercase, no diacritics, dashes to spaces), e.g. "jan-novak" matches "Jan Novák".
	FindByName(ctx context.Context, name string) ([]Identity, error)
}

// GalleryWriter provides administrative write access to the gallery
type GalleryWriter interface {
	GalleryReader

	// Enroll stores a new identity and fills in its ID and CreatedAt
	Enroll(ctx context.Context, identity *Identity) error

	// Delete removes an identity and its attendance history.
	// Returns ErrNotFound when the identity does not exist.
	Delete(ctx context.Context, id int64) error
}

// LedgerReader provides read-only access to the attendance ledger
type LedgerReader interface {
	// MostRecent returns the latest event for an identity, or nil if it has none
	MostRecent(ctx context.Context, identityID int64) (*AttendanceEvent, error)
	// List returns events matching the filter, newest first
	List(ctx context.Context, filter AttendanceFilter) ([]AttendanceRecord, error)
	// Count returns the total number of events stored
	Count(ctx context.Context) (int, error)
}

// LedgerWriter provides append access to the attendance ledger
type LedgerWriter interface {
	LedgerReader

	// Append stores a new event and fills in its ID. Events are never updated.
	// Returns an error wrapping ErrNotFound when the identity does not exist.
	Append(ctx context.Context, event *AttendanceEvent) error

	// DeleteBefore purges events older than cutoff and returns how many were removed
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
