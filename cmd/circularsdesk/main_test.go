package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CircularsDesk/internal/domain"
)

const sectionPage = `<table>
<tr><th>Date</th><th>No</th><th>Subject</th></tr>
<tr><td>12/03/2024</td><td>DTE/45/2024</td><td>Revised academic calendar for diploma</td><td><a href="/uploads/cal.pdf">PDF</a></td></tr>
<tr><td>02-04-2024</td><td>ಡಿವಿಪಿ/12/2024</td><td>Transfer counselling schedule</td></tr>
</table>`

func writeConfig(t *testing.T, siteURL string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	feedPath := filepath.Join(dir, "circulars.json")
	cfg := fmt.Sprintf(`
logging:
  level: error
feed:
  source: %[1]s
  path: %[1]s
  baselinePath: %[2]s
sites:
  - name: test
    scanner: table
    baseUrl: %[3]s
    sections:
      - name: Departmental
        url: %[3]s/dept
        layout: departmental
`, feedPath, filepath.Join(dir, "baseline.json"), siteURL)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path, feedPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScrapeThenVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sectionPage))
	}))
	defer server.Close()

	cfgPath, feedPath := writeConfig(t, server.URL)

	out, err := run(t, "scrape", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, ": success")
	assert.Contains(t, out, "published: 2")

	raw, err := os.ReadFile(feedPath)
	require.NoError(t, err)
	var feed domain.Feed
	require.NoError(t, json.Unmarshal(raw, &feed))
	require.Len(t, feed.Circulars, 2)
	assert.Equal(t, "ಡಿವಿಪಿ/12/2024", feed.Circulars[0].CircularNo, "newest first")
	assert.Equal(t, "DVP", feed.Circulars[0].Section)
	assert.Equal(t, 1, feed.SourceBreakdown["dvp"])

	out, err = run(t, "verify", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Total circulars: 2")
	assert.Contains(t, out, "Date range: 12/03/2024 to 02/04/2024")

	out, err = run(t, "merge", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, ": partial")
}

func TestExportRejectsBadInput(t *testing.T) {
	_, err := run(t, "export", "--category", "HR")
	require.Error(t, err)

	_, err = run(t, "export", "--format", "odt")
	require.Error(t, err)
}
