package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/GrahamLi/TDDC/internal/model"
)

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("snapshot not found")

// CorruptRecordError indicates a stored record failed structural
// validation on read. The record stays in place; callers decide whether
// to refetch over it.
type CorruptRecordError struct {
	Security model.SecurityID
	Date     model.Date
	Err      error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt record %s/%s: %v", e.Security, e.Date, e.Err)
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }

// Store is durable keyed storage of one ownership snapshot per
// (security, date).
//
// Put is an idempotent overwrite: writing the same logical content twice
// leaves observable state unchanged, and a concurrent reader never sees
// a partially written record. Persistence-layer failures surface as
// wrapped I/O errors; retrying them is the caller's concern.
type Store interface {
	// Put writes or overwrites the snapshot at (snapshot.Security,
	// snapshot.Date).
	Put(ctx context.Context, snapshot *model.OwnershipSnapshot) error

	// Get returns the snapshot for the key, ErrNotFound if absent, or a
	// *CorruptRecordError if the stored content does not validate.
	Get(ctx context.Context, security model.SecurityID, date model.Date) (*model.OwnershipSnapshot, error)

	// Exists reports whether a record exists for the key without reading
	// its body.
	Exists(ctx context.Context, security model.SecurityID, date model.Date) (bool, error)

	// ListDates returns all dates stored for the security, ascending,
	// without duplicates. A security with no records yields an empty
	// slice, not an error.
	ListDates(ctx context.Context, security model.SecurityID) ([]model.Date, error)

	// MarkNoData durably records that the source confirmed no disclosure
	// exists for the key, so later runs can skip it. Markers are
	// invisible to Get, Exists, and ListDates; a successful Put for the
	// same key clears the marker.
	MarkNoData(ctx context.Context, security model.SecurityID, date model.Date) error

	// HasNoData reports whether a no-data marker exists for the key.
	HasNoData(ctx context.Context, security model.SecurityID, date model.Date) (bool, error)
}
