// Package feed loads the published circulars document for readers.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"CircularsDesk/internal/domain"
	"CircularsDesk/internal/ports"
)

// ErrUnexpectedStatus is wrapped when the feed URL answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected feed status")

// HTTPLoader fetches the feed over HTTP.
type HTTPLoader struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

var _ ports.FeedReader = (*HTTPLoader)(nil)

// NewHTTPLoader builds a loader for url. A nil client uses http.DefaultClient.
func NewHTTPLoader(url string, client *http.Client, logger *slog.Logger) *HTTPLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPLoader{url: url, client: client, logger: logger}
}

// Load issues a GET and decodes the body.
func (l *HTTPLoader) Load(ctx context.Context) (domain.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := l.client.Do(req)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Feed{}, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	feed, err := Decode(resp.Body)
	if err != nil {
		return domain.Feed{}, err
	}
	if l.logger != nil {
		l.logger.Debug("feed loaded", "url", l.url, "circulars", len(feed.Circulars))
	}
	return feed, nil
}

// FileLoader reads the feed from the local filesystem.
type FileLoader struct {
	path string
}

var _ ports.FeedReader = (*FileLoader)(nil)

// NewFileLoader builds a loader for path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Load opens and decodes the file.
func (l *FileLoader) Load(ctx context.Context) (domain.Feed, error) {
	if err := ctx.Err(); err != nil {
		return domain.Feed{}, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// NewLoader picks the HTTP loader for http(s) sources and the file loader otherwise.
func NewLoader(source string, client *http.Client, logger *slog.Logger) ports.FeedReader {
	lower := strings.ToLower(source)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return NewHTTPLoader(source, client, logger)
	}
	return NewFileLoader(source)
}

// Decode parses a feed document. A missing circulars array decodes as empty.
func Decode(r io.Reader) (domain.Feed, error) {
	var feed domain.Feed
	if err := json.NewDecoder(r).Decode(&feed); err != nil {
		return domain.Feed{}, fmt.Errorf("decode feed: %w", err)
	}
	if feed.Circulars == nil {
		feed.Circulars = []domain.Circular{}
	}
	return feed, nil
}
