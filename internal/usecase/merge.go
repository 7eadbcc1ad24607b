package usecase

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"CircularsDesk/internal/catalog"
	"CircularsDesk/internal/domain"
)

// Limits bounds the size of a published feed.
type Limits struct {
	PerSection    int
	Total         int
	BaselineBelow int
}

// DefaultLimits mirrors the published feed contract.
var DefaultLimits = Limits{PerSection: 200, Total: 400, BaselineBelow: 50}

// unparsedDate is where records with unreadable dates sort.
var unparsedDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Dedupe keeps the first record for every (circular_no, description) pair and
// drops records whose key is entirely blank.
func Dedupe(records []domain.Circular) []domain.Circular {
	seen := make(map[domain.CircularKey]bool, len(records))
	out := make([]domain.Circular, 0, len(records))
	for _, c := range records {
		k := c.Key()
		if k.Empty() || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

// ParseDate reads DD/MM/YYYY, DD-MM-YYYY and YYYY-MM-DD. Anything else,
// including impossible calendar dates, yields 1900-01-01.
func ParseDate(value string) time.Time {
	value = strings.TrimSpace(value)

	var parts []string
	dayFirst := true
	switch {
	case strings.Contains(value, "/"):
		parts = strings.Split(value, "/")
	case strings.Contains(value, "-"):
		parts = strings.Split(value, "-")
		if len(parts) == 3 && len(parts[2]) != 4 {
			if len(parts[0]) != 4 {
				return unparsedDate
			}
			dayFirst = false
		}
	default:
		return unparsedDate
	}
	if len(parts) != 3 {
		return unparsedDate
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return unparsedDate
		}
		nums[i] = n
	}

	day, month, year := nums[0], nums[1], nums[2]
	if !dayFirst {
		year, month, day = nums[0], nums[1], nums[2]
	}
	if year < 1 || month < 1 || month > 12 || day < 1 {
		return unparsedDate
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return unparsedDate
	}
	return t
}

// SortNewestFirst orders records by parsed date, newest first, keeping the
// input order among equal dates.
func SortNewestFirst(records []domain.Circular) {
	slices.SortStableFunc(records, func(a, b domain.Circular) int {
		return ParseDate(b.Date).Compare(ParseDate(a.Date))
	})
}

// Cap keeps at most perSection records of each primary section and at most
// total records overall, preserving order. Non-positive limits disable a cap.
func Cap(records []domain.Circular, perSection, total int) []domain.Circular {
	counts := make(map[string]int, len(domain.Categories))
	out := make([]domain.Circular, 0, len(records))
	for _, c := range records {
		if total > 0 && len(out) >= total {
			break
		}
		section := c.Section
		if section == "" {
			section = string(catalog.Classify(c))
		}
		if perSection > 0 && counts[section] >= perSection {
			continue
		}
		counts[section]++
		out = append(out, c)
	}
	return out
}

// Assemble merges fresh records (first) with the existing ones and applies
// tagging, ordering and caps.
func Assemble(fresh, existing []domain.Circular, limits Limits) []domain.Circular {
	combined := make([]domain.Circular, 0, len(fresh)+len(existing))
	combined = append(combined, fresh...)
	combined = append(combined, existing...)

	merged := catalog.Tag(Dedupe(combined))
	SortNewestFirst(merged)
	return Cap(merged, limits.PerSection, limits.Total)
}
