package catalog

import (
	"fmt"
	"strings"

	"CircularsDesk/internal/domain"
)

// Share is the payload handed to a share target.
type Share struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url,omitempty"`
}

// ShareText composes the message used when a circular is shared or announced.
func ShareText(c domain.Circular, category domain.Category) Share {
	title := DisplayTitle(c)

	var sb strings.Builder
	sb.WriteString("📄 DTE Karnataka Circular\n")
	fmt.Fprintf(&sb, "🏛️ Department: %s\n\n", SectionName(category))
	fmt.Fprintf(&sb, "**Subject:** %s\n\n", title)
	fmt.Fprintf(&sb, "**Date:** %s\n\n", c.Date)
	if c.CircularNo != "" {
		fmt.Fprintf(&sb, "**Order No:** %s\n\n", c.CircularNo)
	}

	share := Share{Title: "DTE Karnataka Circular - " + title}
	if UsableLink(c.DownloadLink) {
		sb.WriteString("📄 Document available online")
		share.URL = c.DownloadLink
	} else {
		sb.WriteString("📄 Document: Check official DTE website")
	}
	share.Text = sb.String()
	return share
}
