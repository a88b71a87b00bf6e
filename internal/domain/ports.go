package domain

import "context"

// PostStore defines persistence operations for matched posts. Implementations
// must keep the stored row count bounded: an upsert that pushes the store past
// its capacity evicts the oldest rows in the same logical operation.
type PostStore interface {
	// Upsert inserts a post or, if a post with the same URI exists, replaces
	// its CID and IndexedAt. A replacement does not count as a new row.
	Upsert(ctx context.Context, post *Post) error

	// Query returns up to limit posts ordered by IndexedAt descending
	// (most recent first).
	Query(ctx context.Context, limit int) ([]Post, error)
}
