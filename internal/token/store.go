package token

import (
	"context"
)

// Store is durable keyed storage for credential records.
//
// Insert appends; records are never updated in place. Latest is defined as
// max(CreatedAt) filtered by principal; older records are retained for audit,
// not for lookup. Latest returns ErrNoToken for absence, never a storage
// error dressed up as one. Delete of a missing id returns ErrNoToken so the
// caller can report "not found" instead of silently succeeding.
//
// Retention is a passive property of the store: records older than the
// retention window become eligible for removal without the Manager polling
// for it.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	Latest(ctx context.Context, principalID string) (*Record, error)
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}
