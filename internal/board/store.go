// Package board holds the feed snapshot served to readers and the guards that
// keep refreshes and exports from overlapping.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"CircularsDesk/internal/catalog"
	"CircularsDesk/internal/domain"
	"CircularsDesk/internal/export"
	"CircularsDesk/internal/metrics"
	"CircularsDesk/internal/ports"
)

var (
	// ErrRefreshInProgress is returned when a refresh is requested while one is running.
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrNotFound is returned for a share request outside the current view.
	ErrNotFound = errors.New("circular not found")
)

const stampLayout = "02/01/2006, 3:04:05 pm"

// Stats is the summary line shown above the list.
type Stats struct {
	Count       int       `json:"count"`
	LastUpdated string    `json:"last_updated"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// View is one category's slice of the current feed.
type View struct {
	Category      domain.Category     `json:"category"`
	Records       []domain.Circular   `json:"-"`
	Stats         Stats               `json:"stats"`
	ExportVisible bool                `json:"export_visible"`
	Loaded        bool                `json:"loaded"`
	Status        domain.ScrapeStatus `json:"scraping_status,omitempty"`
}

// Store keeps the last successfully loaded feed.
type Store struct {
	loader  ports.FeedReader
	metrics *metrics.Metrics
	logger  *slog.Logger
	loc     *time.Location
	now     func() time.Time

	mu       sync.RWMutex
	feed     domain.Feed
	loaded   bool
	loadedAt time.Time

	refreshing atomic.Bool
	// exportSlot admits one export at a time; the headless browser is shared.
	exportSlot chan struct{}
}

// NewStore builds an empty store reading through loader. Timestamps are shown in loc.
func NewStore(loader ports.FeedReader, m *metrics.Metrics, loc *time.Location, logger *slog.Logger) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		loader:     loader,
		metrics:    m,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
		exportSlot: make(chan struct{}, 1),
	}
}

// Refresh reloads the feed. Concurrent callers get ErrRefreshInProgress and
// trigger no load. On failure the previous snapshot stays in place.
func (s *Store) Refresh(ctx context.Context) error {
	if !s.refreshing.CompareAndSwap(false, true) {
		s.metrics.IncrementRefreshDropped()
		return ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)

	if s.loader == nil {
		return fmt.Errorf("feed loader is not configured")
	}

	feed, err := s.loader.Load(ctx)
	if err != nil {
		s.metrics.ObserveRefresh(err, 0)
		if s.logger != nil {
			s.logger.Warn("feed refresh failed", "error", err)
		}
		return fmt.Errorf("refresh feed: %w", err)
	}

	s.mu.Lock()
	s.feed = feed
	s.loaded = true
	s.loadedAt = s.now()
	s.mu.Unlock()

	s.metrics.ObserveRefresh(nil, len(feed.Circulars))
	if s.logger != nil {
		s.logger.Debug("feed refreshed", "circulars", len(feed.Circulars), "last_updated", feed.LastUpdated)
	}
	return nil
}

// Refreshing reports whether a refresh is running.
func (s *Store) Refreshing() bool { return s.refreshing.Load() }

// Feed returns the current snapshot.
func (s *Store) Feed() (domain.Feed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feed, s.loaded
}

// View filters the snapshot for category.
func (s *Store) View(category domain.Category) View {
	s.mu.RLock()
	feed, loaded, loadedAt := s.feed, s.loaded, s.loadedAt
	s.mu.RUnlock()

	records := catalog.Filter(feed.Circulars, category)

	updated := feed.UpdatedAt()
	if updated.IsZero() {
		updated = loadedAt
	}
	if updated.IsZero() {
		updated = s.now()
	}

	return View{
		Category: category,
		Records:  records,
		Stats: Stats{
			Count:       len(records),
			LastUpdated: updated.In(s.loc).Format(stampLayout),
			UpdatedAt:   updated,
		},
		ExportVisible: len(records) > 0,
		Loaded:        loaded,
		Status:        feed.ScrapingStatus,
	}
}

// Share composes share text for the index-th record of category's view.
func (s *Store) Share(category domain.Category, index int) (catalog.Share, error) {
	records := s.View(category).Records
	if index < 0 || index >= len(records) {
		return catalog.Share{}, ErrNotFound
	}
	return catalog.ShareText(records[index], category), nil
}

// Export hands category's records to write. Exports run one at a time; a
// caller waits for its turn until ctx is done. An empty view is refused with
// export.ErrNothingToExport.
func (s *Store) Export(ctx context.Context, category domain.Category, format string, write func(context.Context, export.Document) error) (err error) {
	select {
	case s.exportSlot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("wait for export slot: %w", ctx.Err())
	}
	defer func() { <-s.exportSlot }()

	start := time.Now()
	defer func() { s.metrics.ObserveExport(format, start, err) }()

	view := s.View(category)
	if len(view.Records) == 0 {
		return export.ErrNothingToExport
	}

	doc := export.Document{
		Category:    category,
		Records:     view.Records,
		GeneratedAt: s.now().In(s.loc),
	}
	if err := write(ctx, doc); err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}
	return nil
}
