package domain

import (
	"fmt"
	"strings"
	"time"
)

// Circular is a published administrative notice as it appears in the feed.
type Circular struct {
	Description  string `json:"description,omitempty"`
	Title        string `json:"title,omitempty"`
	Date         string `json:"date"`
	CircularNo   string `json:"circular_no"`
	DownloadLink string `json:"download_link,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
	ScrapedAt    string `json:"scraped_at,omitempty"`
	Source       string `json:"source,omitempty"`
	Section      string `json:"section,omitempty"`
}

// Key identifies a circular for deduplication.
func (c Circular) Key() CircularKey {
	return CircularKey{CircularNo: c.CircularNo, Description: c.Description}
}

// CircularKey is the (circular_no, description) pair used to detect duplicates.
type CircularKey struct {
	CircularNo  string
	Description string
}

// Empty reports whether both halves of the key are blank.
func (k CircularKey) Empty() bool {
	return k.CircularNo == "" && k.Description == ""
}

// Category is one of the fixed administrative sections.
type Category string

const (
	CategoryDepartmental Category = "Departmental"
	CategoryDVP          Category = "DVP"
	CategoryEST          Category = "EST"
	CategoryACM          Category = "ACM"
)

// Categories lists every section in display order.
var Categories = []Category{CategoryDepartmental, CategoryDVP, CategoryEST, CategoryACM}

// ParseCategory resolves a case-insensitive name; blank input selects Departmental.
func ParseCategory(value string) (Category, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return CategoryDepartmental, nil
	}
	for _, cat := range Categories {
		if strings.EqualFold(string(cat), value) {
			return cat, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", value)
}

// Slug is the lower-case form used in breakdown maps and CSS classes.
func (c Category) Slug() string {
	return strings.ToLower(string(c))
}

// ScrapeStatus summarises how a feed was produced.
type ScrapeStatus string

const (
	StatusSuccess ScrapeStatus = "success"
	StatusPartial ScrapeStatus = "partial"
	StatusFailed  ScrapeStatus = "failed"
)

// Feed is the JSON document served to readers.
type Feed struct {
	LastUpdated     string         `json:"last_updated"`
	TotalCirculars  int            `json:"total_circulars"`
	Circulars       []Circular     `json:"circulars"`
	ScrapingStatus  ScrapeStatus   `json:"scraping_status,omitempty"`
	SourceBreakdown map[string]int `json:"source_breakdown,omitempty"`
	MergeInfo       *MergeInfo     `json:"merge_info,omitempty"`
	Note            string         `json:"note,omitempty"`
}

// MergeInfo records how the last pipeline run assembled the feed.
type MergeInfo struct {
	RunID           string   `json:"run_id"`
	MergedAt        string   `json:"merged_at"`
	SourcesUsed     []string `json:"sources_used"`
	FreshDataCount  int      `json:"fresh_data_count"`
	TotalAfterMerge int      `json:"total_after_merge"`
}

// UpdatedAt parses LastUpdated, falling back to the zero time.
func (f Feed) UpdatedAt() time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(f.LastUpdated)); err == nil {
			return t
		}
	}
	return time.Time{}
}
