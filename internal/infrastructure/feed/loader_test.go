package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `{"last_updated":"2024-04-02T08:00:00Z","circulars":[{"date":"02-04-2024","circular_no":"ಡಿವಿಪಿ/12/2024","description":"Transfer counselling"}]}`

func TestHTTPLoaderDecodesFeed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	feed, err := NewHTTPLoader(server.URL, server.Client(), nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, feed.Circulars, 1)
	assert.Equal(t, "ಡಿವಿಪಿ/12/2024", feed.Circulars[0].CircularNo)
	assert.Equal(t, 2024, feed.UpdatedAt().Year())
}

func TestHTTPLoaderNon2xx(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewHTTPLoader(server.URL, server.Client(), nil).Load(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "404")
}

func TestDecodeMissingCirculars(t *testing.T) {
	t.Parallel()

	feed, err := Decode(strings.NewReader(`{"last_updated":"x"}`))
	require.NoError(t, err)
	assert.NotNil(t, feed.Circulars)
	assert.Empty(t, feed.Circulars)

	_, err = Decode(strings.NewReader(`<html>`))
	assert.Error(t, err)
}

func TestNewLoaderPicksByScheme(t *testing.T) {
	t.Parallel()

	assert.IsType(t, &HTTPLoader{}, NewLoader("HTTPS://example.org/c.json", nil, nil))
	assert.IsType(t, &FileLoader{}, NewLoader("circulars.json", nil, nil))
}

func TestFileLoader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "circulars.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleFeed), 0o600))

	feed, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, feed.Circulars, 1)

	_, err = NewFileLoader(filepath.Join(t.TempDir(), "nope.json")).Load(context.Background())
	assert.Error(t, err)
}
