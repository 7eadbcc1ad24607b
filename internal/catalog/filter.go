// Package catalog holds the pure transforms applied to feed records before they
// are rendered: category membership, link resolution and display formatting.
package catalog

import (
	"strings"

	"CircularsDesk/internal/domain"
)

// DVP markers as they appear inside circular numbers.
const (
	dvpMarkerKannada = "ಡಿವಿಪಿ"
	dvpMarkerLatin   = "DVP"
)

const (
	dvpSourceFragment = "Circulars/DVP"
	estSourceFragment = "Circulars/EST"
	acmSourceFragment = "Circulars/ACM"
	dvpLinkFragment   = "/DVP/"
)

// HasDVPMarker reports whether the circular number carries either DVP marker.
func HasDVPMarker(c domain.Circular) bool {
	return strings.Contains(c.CircularNo, dvpMarkerKannada) || strings.Contains(c.CircularNo, dvpMarkerLatin)
}

// Matches reports whether the record belongs to the category.
// Departmental is every record without a DVP marker in its number, so its set
// overlaps with EST and ACM.
func Matches(c domain.Circular, category domain.Category) bool {
	switch category {
	case domain.CategoryDVP:
		return strings.Contains(c.SourceURL, dvpSourceFragment) ||
			HasDVPMarker(c) ||
			strings.Contains(c.DownloadLink, dvpLinkFragment)
	case domain.CategoryEST:
		return strings.Contains(c.SourceURL, estSourceFragment)
	case domain.CategoryACM:
		return strings.Contains(c.SourceURL, acmSourceFragment)
	case domain.CategoryDepartmental:
		return !HasDVPMarker(c)
	default:
		return false
	}
}

// Filter returns the records of one category in their original order.
// The input slice is never modified.
func Filter(records []domain.Circular, category domain.Category) []domain.Circular {
	out := make([]domain.Circular, 0, len(records))
	for _, c := range records {
		if Matches(c, category) {
			out = append(out, c)
		}
	}
	return out
}
