package parser

import (
	"strings"
	"unicode/utf8"
)

var (
	unwantedDomains = []string{
		"atoall.com",
		"webinsight.cs.washington.edu",
		"satogo.com",
		"javascript:",
	}
	unwantedCircularNos = []string{"atoall", "webanywhere", "system access to go"}
	unwantedDescription = []string{
		"external website that opens in a new window",
		"javascript:",
		"webanywhere",
		"system access",
	}
	// hrefs skipped when picking a row's download link
	badHrefFragments = []string{"atoall.com", "javascript:", "webinsight"}
	// date cells of repeated header rows
	headerDates = []string{"date", "ದಿನಾಂಕ"}
)

// IsValidCircular drops accessibility-widget rows and rows without usable text.
func IsValidCircular(date, circularNo, description, downloadLink string) bool {
	if downloadLink != "" {
		link := strings.ToLower(downloadLink)
		for _, domain := range unwantedDomains {
			if strings.Contains(link, domain) {
				return false
			}
		}
	}

	if circularNo != "" {
		no := strings.ToLower(circularNo)
		for _, bad := range unwantedCircularNos {
			if no == bad {
				return false
			}
		}
	}

	if description != "" {
		desc := strings.ToLower(description)
		for _, bad := range unwantedDescription {
			if strings.Contains(desc, bad) {
				return false
			}
		}
	}

	if utf8.RuneCountInString(strings.TrimSpace(date)) <= 1 {
		return false
	}
	if utf8.RuneCountInString(strings.TrimSpace(description)) < 5 {
		return false
	}
	return true
}

func isHeaderDate(date string) bool {
	date = strings.ToLower(strings.TrimSpace(date))
	for _, h := range headerDates {
		if date == h {
			return true
		}
	}
	return false
}
