package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"CircularsDesk/internal/domain"
	"CircularsDesk/internal/ports"
)

// FeedFile keeps the published feed as an indented JSON document on disk.
type FeedFile struct {
	path string
}

var _ ports.FeedStore = (*FeedFile)(nil)

// NewFeedFile binds the store to path.
func NewFeedFile(path string) *FeedFile {
	return &FeedFile{path: path}
}

// Path returns the backing file.
func (f *FeedFile) Path() string { return f.path }

// Load reads the feed. A missing file yields an empty feed.
func (f *FeedFile) Load(ctx context.Context) (domain.Feed, error) {
	if err := ctx.Err(); err != nil {
		return domain.Feed{}, err
	}
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Feed{}, nil
	}
	if err != nil {
		return domain.Feed{}, fmt.Errorf("read feed %s: %w", f.path, err)
	}
	var feed domain.Feed
	if err := json.Unmarshal(raw, &feed); err != nil {
		return domain.Feed{}, fmt.Errorf("decode feed %s: %w", f.path, err)
	}
	return feed, nil
}

// Save replaces the file atomically via a sibling temp file.
func (f *FeedFile) Save(ctx context.Context, feed domain.Feed) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := EncodeFeed(feed)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create feed dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".circulars-*.json")
	if err != nil {
		return fmt.Errorf("create temp feed: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp feed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp feed: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace feed: %w", err)
	}
	return nil
}

// EncodeFeed renders the feed the way it is published: two-space indent,
// non-ASCII text kept verbatim.
func EncodeFeed(feed domain.Feed) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(feed); err != nil {
		return nil, fmt.Errorf("encode feed: %w", err)
	}
	return buf.Bytes(), nil
}
