package shortener

import "context"

// LinkStore defines the persistence operations for Link entities. The store
// owns the short-code uniqueness invariant: concurrent Puts of the same code
// never both succeed, the loser observes a Conflict error.
type LinkStore interface {
	Put(ctx context.Context, link Link) (Link, error)
	Get(ctx context.Context, code string) (Link, error)
	List(ctx context.Context) ([]LinkStats, error)
}

// ClickCounter defines the durable per-code click accounting operations.
// Increment must be atomic in the storage engine: concurrent increments of
// the same code never lose updates.
type ClickCounter interface {
	Increment(ctx context.Context, code string) (int64, error)
	Count(ctx context.Context, code string) (int64, error)
	Aggregate(ctx context.Context) (AggregateStats, error)
}
