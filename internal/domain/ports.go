package domain

import "context"

// SubmissionRepository defines persistence operations for submissions.
// Implementations must keep the collection append-only: existing records
// are never reordered and only the Visible flag is ever mutated.
type SubmissionRepository interface {
	// Create persists a new submission, assigning its ID, CreatedAt and
	// Visible=true. CreatedAt is monotonically non-decreasing across
	// successive calls.
	Create(ctx context.Context, sub *Submission) error

	// SetVisibility updates the moderation flag for the given id. Setting
	// the flag to its current value is a no-op. Returns ErrNotFound if the
	// id is unknown.
	SetVisibility(ctx context.Context, id string, visible bool) error

	// ListVisible returns all visible submissions ordered by CreatedAt
	// ascending, ties broken by insertion order.
	ListVisible(ctx context.Context) ([]Submission, error)

	// ListAll returns every submission regardless of flag, same ordering.
	ListAll(ctx context.Context) ([]Submission, error)

	// CountVisible returns the number of currently visible submissions.
	CountVisible(ctx context.Context) (int, error)
}

// Broadcaster delivers an event to every connected display client,
// best-effort. Publish must never block on a slow client.
type Broadcaster interface {
	Publish(event Event)
}
