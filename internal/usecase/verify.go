package usecase

import (
	"fmt"
	"io"
	"time"

	"CircularsDesk/internal/catalog"
	"CircularsDesk/internal/domain"
)

const recentPerSection = 5

// VerifyReport describes a published feed.
type VerifyReport struct {
	Total       int
	Status      domain.ScrapeStatus
	LastUpdated string
	Note        string
	Breakdown   map[string]int
	Recent      map[domain.Category][]domain.Circular
	Oldest      time.Time
	Newest      time.Time
	Undated     int
}

// Verify summarises feed: per-section counts, the most recent records of each
// section and the span of readable dates.
func Verify(feed domain.Feed) VerifyReport {
	report := VerifyReport{
		Total:       len(feed.Circulars),
		Status:      feed.ScrapingStatus,
		LastUpdated: feed.LastUpdated,
		Note:        feed.Note,
		Breakdown:   catalog.Breakdown(feed.Circulars),
		Recent:      make(map[domain.Category][]domain.Circular, len(domain.Categories)),
	}

	sorted := catalog.Tag(feed.Circulars)
	SortNewestFirst(sorted)
	for _, c := range sorted {
		cat := domain.Category(c.Section)
		if len(report.Recent[cat]) < recentPerSection {
			report.Recent[cat] = append(report.Recent[cat], c)
		}

		t := ParseDate(c.Date)
		if t.Equal(unparsedDate) {
			report.Undated++
			continue
		}
		if report.Newest.IsZero() || t.After(report.Newest) {
			report.Newest = t
		}
		if report.Oldest.IsZero() || t.Before(report.Oldest) {
			report.Oldest = t
		}
	}
	return report
}

// Write prints the report as plain text.
func (r VerifyReport) Write(w io.Writer) error {
	ew := &errWriter{w: w}
	ew.printf("Total circulars: %d\n", r.Total)
	if r.Status != "" {
		ew.printf("Status: %s\n", r.Status)
	}
	if r.LastUpdated != "" {
		ew.printf("Last updated: %s\n", r.LastUpdated)
	}
	if r.Note != "" {
		ew.printf("Note: %s\n", r.Note)
	}
	if !r.Newest.IsZero() {
		ew.printf("Date range: %s to %s\n", r.Oldest.Format("02/01/2006"), r.Newest.Format("02/01/2006"))
	}
	if r.Undated > 0 {
		ew.printf("Undated: %d\n", r.Undated)
	}

	for _, cat := range domain.Categories {
		ew.printf("\n%s: %d\n", catalog.SectionName(cat), r.Breakdown[cat.Slug()])
		for _, c := range r.Recent[cat] {
			ew.printf("  %s  %s  %s\n", c.Date, orNA(c.CircularNo), catalog.DisplayTitle(c))
		}
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}
