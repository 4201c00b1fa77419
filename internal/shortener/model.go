package shortener

import (
	"time"

	"github.com/google/uuid"
)

// Link maps a short code to its original URL. Links are immutable once
// created; there is no update or delete path.
type Link struct {
	ID          uuid.UUID
	ShortCode   string
	OriginalURL string
	CreatedAt   time.Time
}

// LinkStats is a catalog row: a link joined with its current click count.
// A link that has never been resolved reports zero clicks.
type LinkStats struct {
	Link
	Clicks int64
}

// AggregateStats summarizes the full link set.
type AggregateStats struct {
	TotalLinks  int64
	TotalClicks int64
}
