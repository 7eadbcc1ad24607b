package ports

import (
	"context"
	"time"

	"CircularsDesk/internal/domain"
)

// ScanResult is the fresh data of one scraping pass.
type ScanResult struct {
	Circulars []domain.Circular
	// Counts maps section name to records found there.
	Counts map[string]int
}

// CircularSource pulls fresh circulars from the upstream section pages.
type CircularSource interface {
	FetchAll(ctx context.Context) (ScanResult, error)
}

// FeedStore persists the published feed document.
type FeedStore interface {
	Load(ctx context.Context) (domain.Feed, error)
	Save(ctx context.Context, feed domain.Feed) error
}

// FeedReader loads a feed for reading only (published feed, baseline snapshot).
type FeedReader interface {
	Load(ctx context.Context) (domain.Feed, error)
}

// CircularRepository archives every circular ever seen.
type CircularRepository interface {
	AlreadySeen(ctx context.Context, keys []domain.CircularKey) (map[domain.CircularKey]bool, error)
	SaveBatch(ctx context.Context, runID string, circulars []domain.Circular) error
}

// Notifier announces newly published circulars.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
