package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"CircularsDesk/internal/domain"
	"CircularsDesk/internal/scanner"
)

// Table layouts understood by TableScanner.
const (
	LayoutDepartmental = "departmental"
	LayoutDVP          = "dvp"
	LayoutWide         = "wide"
)

const defaultMaxRows = 100

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
}

// TableScanner reads circulars out of the HTML listing tables of section pages.
type TableScanner struct {
	client   *http.Client
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
	now      func() time.Time
}

// NewTableScanner wires an HTTP client; requests are tried three times.
func NewTableScanner(client *http.Client, logger *slog.Logger) *TableScanner {
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	return &TableScanner{
		client:   client,
		logger:   logger,
		attempts: 3,
		backoff:  3 * time.Second,
		now:      time.Now,
	}
}

// Name identifies the strategy inside the registry.
func (s *TableScanner) Name() string {
	return "table"
}

// Scan fetches the section page and returns the valid rows of its table.
func (s *TableScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Circular, error) {
	if req.Section.URL == "" {
		return nil, fmt.Errorf("section %s has no url", req.Section.Name)
	}

	doc, err := s.fetchDocument(ctx, req.Section.URL)
	if err != nil {
		return nil, fmt.Errorf("section %s: %w", req.Section.Name, err)
	}

	circulars := s.extractRows(doc, req)
	s.debug("section scanned", "site", req.SiteName, "section", req.Section.Name, "count", len(circulars))
	return circulars, nil
}

func (s *TableScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoff * time.Duration(attempt)):
			}
		}

		doc, err := s.fetchOnce(ctx, pageURL, userAgents[attempt%len(userAgents)])
		if err == nil {
			return doc, nil
		}
		lastErr = err
		s.debug("fetch attempt failed", "url", pageURL, "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("all %d attempts failed: %w", s.attempts, lastErr)
}

func (s *TableScanner) fetchOnce(ctx context.Context, pageURL, userAgent string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("section page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (s *TableScanner) extractRows(doc *goquery.Document, req scanner.Request) []domain.Circular {
	maxRows := req.MaxRows
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	scrapedAt := s.now().UTC().Format(time.RFC3339)

	var collected []domain.Circular
	doc.Find("tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i == 0 {
			return true
		}
		if i > maxRows {
			return false
		}

		cells := row.Find("td")
		circular, ok := parseRow(cells, req)
		if !ok {
			return true
		}
		circular.ScrapedAt = scrapedAt
		collected = append(collected, circular)
		return true
	})

	return collected
}

func parseRow(cells *goquery.Selection, req scanner.Request) (domain.Circular, bool) {
	if cells.Length() < 3 {
		return domain.Circular{}, false
	}

	offset := 0
	if req.Section.Layout == LayoutDVP && cells.Length() >= 4 {
		offset = 1
	}

	date := cellText(cells.Eq(offset))
	circularNo := cellText(cells.Eq(offset + 1))
	description := cellText(cells.Eq(offset + 2))

	if isHeaderDate(date) || utf8.RuneCountInString(description) < 10 {
		return domain.Circular{}, false
	}
	if utf8.RuneCountInString(date) <= 4 {
		return domain.Circular{}, false
	}

	link := downloadLink(cells, req.BaseURL)
	if !IsValidCircular(date, circularNo, description, link) {
		return domain.Circular{}, false
	}

	return domain.Circular{
		Date:         date,
		CircularNo:   circularNo,
		Description:  description,
		DownloadLink: link,
		SourceURL:    req.Section.URL,
		Source:       req.Section.Name,
	}, true
}

// downloadLink returns the first acceptable anchor in the row.
func downloadLink(cells *goquery.Selection, baseURL string) string {
	var link string
	cells.EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		href, ok := cell.Find("a").First().Attr("href")
		if !ok || href == "" {
			return true
		}
		for _, bad := range badHrefFragments {
			if strings.Contains(href, bad) {
				return true
			}
		}
		switch {
		case strings.HasPrefix(href, "/"):
			link = strings.TrimSuffix(baseURL, "/") + href
		case strings.HasPrefix(href, "http"):
			link = href
		}
		return false
	})
	return link
}

func cellText(cell *goquery.Selection) string {
	return strings.Join(strings.Fields(cell.Text()), " ")
}

func (s *TableScanner) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
