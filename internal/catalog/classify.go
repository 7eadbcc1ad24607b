package catalog

import "CircularsDesk/internal/domain"

// Classify assigns the single primary section a record is filed under when the
// feed is written. DVP wins over the source page so that DVP-numbered orders
// posted on other pages are still counted as DVP.
func Classify(c domain.Circular) domain.Category {
	switch {
	case Matches(c, domain.CategoryDVP):
		return domain.CategoryDVP
	case Matches(c, domain.CategoryEST):
		return domain.CategoryEST
	case Matches(c, domain.CategoryACM):
		return domain.CategoryACM
	default:
		return domain.CategoryDepartmental
	}
}

// Tag returns a copy of the records with Section filled in.
func Tag(records []domain.Circular) []domain.Circular {
	out := make([]domain.Circular, len(records))
	for i, c := range records {
		c.Section = string(Classify(c))
		out[i] = c
	}
	return out
}

// Breakdown counts records per primary section, keyed by category slug.
func Breakdown(records []domain.Circular) map[string]int {
	counts := make(map[string]int, len(domain.Categories))
	for _, cat := range domain.Categories {
		counts[cat.Slug()] = 0
	}
	for _, c := range records {
		counts[Classify(c).Slug()]++
	}
	return counts
}
