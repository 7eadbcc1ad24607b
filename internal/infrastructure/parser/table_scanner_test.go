package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CircularsDesk/internal/config"
	"CircularsDesk/internal/scanner"
)

const departmentalPage = `
<table>
  <tr><th>Date</th><th>No</th><th>Subject</th></tr>
  <tr><td> 12/03/2024 </td><td>DTE/45/2024</td><td>Revised academic calendar for diploma</td><td><a href="/uploads/cal.pdf">PDF</a></td></tr>
  <tr><td>11/03/2024</td><td>atoall</td><td>External accessibility helper widget</td></tr>
  <tr><td>10/03/2024</td><td>DTE/44/2024</td><td>Opens an external website that opens in a new window</td></tr>
  <tr><td>09/03/2024</td><td>DTE/43/2024</td><td>Short</td></tr>
  <tr><td>08/03/2024</td><td>DTE/42/2024</td><td>Hostel fee structure for 2024-25</td><td><a href="javascript:void(0)">x</a></td><td><a href="https://cdn.example.org/fee.pdf">y</a></td></tr>
  <tr><td>Date</td><td>No</td><td>Header row repeated in body</td></tr>
  <tr><td>07/03/2024</td><td>DTE/41/2024</td></tr>
</table>`

const dvpPage = `
<table>
  <tr><td>Sl</td><td>ದಿನಾಂಕ</td><td>No</td><td>Subject</td></tr>
  <tr><td>1</td><td>ದಿನಾಂಕ</td><td>x</td><td>Heading row in Kannada script</td></tr>
  <tr><td>2</td><td>02-04-2024</td><td>ಡಿವಿಪಿ/12/2024</td><td>Transfer counselling schedule</td><td><a href="https://dtek.karnataka.gov.in/DVP/t.pdf">PDF</a></td></tr>
</table>`

func newTestScanner(client *http.Client) *TableScanner {
	s := NewTableScanner(client, nil)
	s.backoff = time.Millisecond
	s.now = func() time.Time { return time.Date(2024, time.April, 2, 8, 0, 0, 0, time.UTC) }
	return s
}

func TestParseRowDepartmental(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(departmentalPage))
	require.NoError(t, err)

	s := newTestScanner(nil)
	got := s.extractRows(doc, scanner.Request{
		BaseURL: "https://dtek.karnataka.gov.in",
		Section: scanner.Section{Name: "Departmental", URL: "https://dtek.karnataka.gov.in/info-4/Departmental+Circulars/kn", Layout: LayoutDepartmental},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "12/03/2024", got[0].Date)
	assert.Equal(t, "DTE/45/2024", got[0].CircularNo)
	assert.Equal(t, "https://dtek.karnataka.gov.in/uploads/cal.pdf", got[0].DownloadLink)
	assert.Equal(t, "Departmental", got[0].Source)
	assert.Equal(t, "2024-04-02T08:00:00Z", got[0].ScrapedAt)
	assert.Equal(t, "https://cdn.example.org/fee.pdf", got[1].DownloadLink)
}

func TestParseRowDVPSkipsSerialAndHeaders(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(dvpPage))
	require.NoError(t, err)

	got := newTestScanner(nil).extractRows(doc, scanner.Request{
		Section: scanner.Section{Name: "DVP", URL: "https://dtek.karnataka.gov.in/page/Circulars/DVP/kn", Layout: LayoutDVP},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "02-04-2024", got[0].Date)
	assert.Equal(t, "ಡಿವಿಪಿ/12/2024", got[0].CircularNo)
	assert.Equal(t, "Transfer counselling schedule", got[0].Description)
}

func TestExtractRowsHonoursRowLimit(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(departmentalPage))
	require.NoError(t, err)

	got := newTestScanner(nil).extractRows(doc, scanner.Request{MaxRows: 1, Section: scanner.Section{Layout: LayoutDepartmental}})
	assert.Len(t, got, 1)
}

func TestIsValidCircular(t *testing.T) {
	t.Parallel()

	assert.True(t, IsValidCircular("1/1/2024", "A/1", "Valid subject", ""))
	assert.False(t, IsValidCircular("1", "A/1", "Valid subject", ""))
	assert.False(t, IsValidCircular("1/1/2024", "A/1", "tiny", ""))
	assert.False(t, IsValidCircular("1/1/2024", "WebAnywhere", "Valid subject", ""))
	assert.False(t, IsValidCircular("1/1/2024", "A/1", "Valid subject", "https://SATOGO.com/x"))
	assert.False(t, IsValidCircular("1/1/2024", "A/1", "Try System Access now", ""))
}

func TestTableScannerRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var (
		calls  atomic.Int32
		mu     sync.Mutex
		agents []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(departmentalPage))
	}))
	defer server.Close()

	s := newTestScanner(server.Client())
	got, err := s.Scan(context.Background(), scanner.Request{
		BaseURL: server.URL,
		Section: scanner.Section{Name: "Departmental", URL: server.URL + "/info-4/Departmental+Circulars/kn", Layout: LayoutDepartmental},
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), calls.Load())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, agents, 2)
	assert.NotEqual(t, agents[0], agents[1])
}

func TestTableScannerGivesUp(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestScanner(server.Client()).Scan(context.Background(), scanner.Request{
		Section: scanner.Section{Name: "EST", URL: server.URL},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestStrategySourceSkipsFailingSections(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/dept", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(departmentalPage)) })
	mux.HandleFunc("/dvp", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(dvpPage)) })
	mux.HandleFunc("/est", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) })
	server := httptest.NewServer(mux)
	defer server.Close()

	reg := scanner.NewRegistry()
	reg.Register(newTestScanner(server.Client()))

	src := NewStrategySource(reg, []config.SiteConfig{{
		Name:    "dte",
		Scanner: "table",
		BaseURL: server.URL,
		Sections: []config.SectionConfig{
			{Name: "Departmental", URL: server.URL + "/dept", Layout: LayoutDepartmental},
			{Name: "DVP", URL: server.URL + "/dvp", Layout: LayoutDVP},
			{Name: "EST", URL: server.URL + "/est", Layout: LayoutWide},
		},
	}}, 2, nil)

	res, err := src.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Circulars, 3)
	assert.Equal(t, map[string]int{"Departmental": 2, "DVP": 1, "EST": 0}, res.Counts)
	assert.Equal(t, "DTE/45/2024", res.Circulars[0].CircularNo, "results keep config order")
}

func TestStrategySourceUnknownScanner(t *testing.T) {
	t.Parallel()

	src := NewStrategySource(scanner.NewRegistry(), []config.SiteConfig{{Name: "x", Scanner: "missing"}}, 1, nil)
	_, err := src.FetchAll(context.Background())
	require.ErrorIs(t, err, scanner.ErrUnknownScanner)
}
