package meeting

import (
	"context"
)

// Store persists meetings. Implementations return ErrNotFound for unknown
// ids and ErrDuplicate when a meeting for the same course and start time
// already exists.
type Store interface {
	// Insert stores a new meeting and returns it with its assigned ID.
	Insert(ctx context.Context, m *Meeting) (*Meeting, error)

	// List returns meetings, optionally filtered by course, ordered by
	// start time ascending.
	List(ctx context.Context, courseID string) ([]*Meeting, error)

	// Get returns the meeting with the given id.
	Get(ctx context.Context, id string) (*Meeting, error)

	// Update applies the mutable fields and returns the updated meeting.
	Update(ctx context.Context, id string, in UpdateInput) (*Meeting, error)

	// Delete removes the meeting with the given id.
	Delete(ctx context.Context, id string) error
}
