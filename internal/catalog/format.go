package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"CircularsDesk/internal/domain"
)

const (
	badHost         = "atoall.com"
	undefinedLink   = "undefined"
	noTitle         = "No title available"
	notAvailable    = "N/A"
	defaultSection  = "DTE Karnataka"
	departmentalURL = "https://dtek.karnataka.gov.in/info-4/Departmental+Circulars/kn"
)

var landingPages = map[domain.Category]string{
	domain.CategoryDepartmental: departmentalURL,
	domain.CategoryDVP:          "https://dtek.karnataka.gov.in/page/Circulars/DVP/kn",
	domain.CategoryEST:          "https://dtek.karnataka.gov.in/page/Circulars/EST/kn",
	domain.CategoryACM:          "https://dtek.karnataka.gov.in/page/Circulars/ACM-Polytechnic/kn",
}

var sectionNames = map[domain.Category]string{
	domain.CategoryDVP:          "DVP Circulars",
	domain.CategoryDepartmental: "Departmental Orders",
	domain.CategoryEST:          "EST Circulars",
	domain.CategoryACM:          "ACM Polytechnic Circulars",
}

// orderPrefix matches a leading "order number:" label in descriptions.
var orderPrefix = regexp.MustCompile(`^[^:]+:\s*`)

// UsableLink reports whether download_link can be handed to a reader as-is.
func UsableLink(link string) bool {
	return link != "" && link != undefinedLink && !strings.Contains(link, badHost)
}

// LandingPage returns the section page used when a record has no usable link.
func LandingPage(category domain.Category) string {
	if u, ok := landingPages[category]; ok {
		return u
	}
	return departmentalURL
}

// ResolveLink picks the record's own document link or the category landing page.
// The result is never empty.
func ResolveLink(c domain.Circular, category domain.Category) string {
	if UsableLink(c.DownloadLink) {
		return c.DownloadLink
	}
	return LandingPage(category)
}

// LinkLabel names the action behind ResolveLink.
func LinkLabel(c domain.Circular) string {
	if UsableLink(c.DownloadLink) {
		return "View PDF"
	}
	return "View Source"
}

// DisplayTitle strips a leading order-number label from the description.
func DisplayTitle(c domain.Circular) string {
	title := c.Description
	if title == "" {
		title = c.Title
	}
	if title == "" {
		title = noTitle
	}
	return orderPrefix.ReplaceAllString(title, "")
}

// SectionName is the human readable name of a category.
func SectionName(category domain.Category) string {
	if name, ok := sectionNames[category]; ok {
		return name
	}
	return defaultSection
}

// ShortSectionName drops the "Circulars"/"Orders" suffix for narrow table cells.
func ShortSectionName(category domain.Category) string {
	name := SectionName(category)
	name = strings.Replace(name, "Circulars", "", 1)
	name = strings.Replace(name, "Orders", "", 1)
	return strings.TrimSpace(name)
}

// Row is one line of the exported circulars table.
type Row struct {
	Serial  string
	Date    string
	OrderNo string
	Subject string
	Section string
}

// Rows formats records for the export table.
func Rows(records []domain.Circular, category domain.Category) []Row {
	section := ShortSectionName(category)
	rows := make([]Row, 0, len(records))
	for i, c := range records {
		rows = append(rows, Row{
			Serial:  strconv.Itoa(i + 1),
			Date:    orDefault(c.Date, notAvailable),
			OrderNo: orDefault(c.CircularNo, notAvailable),
			Subject: DisplayTitle(c),
			Section: section,
		})
	}
	return rows
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
