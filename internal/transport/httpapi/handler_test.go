package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CircularsDesk/internal/board"
	"CircularsDesk/internal/domain"
	"CircularsDesk/internal/export"
)

type stubLoader struct {
	mu   sync.Mutex
	feed domain.Feed
	err  error
}

func (s *stubLoader) Load(context.Context) (domain.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feed, s.err
}

func (s *stubLoader) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type stubPDF struct{ err error }

func (s stubPDF) Export(_ context.Context, doc export.Document, w io.Writer) error {
	if s.err != nil {
		return s.err
	}
	_, err := io.WriteString(w, "%PDF-1.3 "+string(doc.Category))
	return err
}

type stubDOCX struct{}

func (stubDOCX) Export(doc export.Document, w io.Writer) error {
	_, err := io.WriteString(w, "PK docx")
	return err
}

func testFeed() domain.Feed {
	return domain.Feed{
		LastUpdated: "2024-04-02T08:00:00Z",
		Circulars: []domain.Circular{
			{CircularNo: "DTE/1", Description: "DTE/1: Academic calendar", Date: "02/04/2024", DownloadLink: "https://dtek.karnataka.gov.in/a.pdf"},
			{CircularNo: "ಡಿವಿಪಿ/123", Description: "Transfer counselling", Date: "01/04/2024"},
		},
	}
}

func newTestServer(t *testing.T, loader *stubLoader, pdf PDFExporter) (*httptest.Server, *board.Store) {
	t.Helper()
	store := board.NewStore(loader, nil, time.UTC, nil)
	h := NewHandler(store, pdf, stubDOCX{}, nil)
	srv := httptest.NewServer(NewRouter(h, http.NotFoundHandler()))
	t.Cleanup(srv.Close)
	return srv, store
}

var noFollow = &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

func htmlRequest(t *testing.T, method, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/html")
	return req
}

func readPage(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestCircularsEndpointFilters(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, &stubLoader{feed: testFeed()}, stubPDF{})
	require.NoError(t, store.Refresh(context.Background()))

	resp, err := http.Get(srv.URL + "/api/circulars?category=dvp")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Category      string `json:"category"`
		SectionName   string `json:"section_name"`
		ExportVisible bool   `json:"export_visible"`
		Items         []item `json:"items"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "DVP", body.Category)
	assert.Equal(t, "DVP Circulars", body.SectionName)
	assert.True(t, body.ExportVisible)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "ಡಿವಿಪಿ/123", body.Items[0].OrderNo)
	assert.Equal(t, "https://dtek.karnataka.gov.in/page/Circulars/DVP/kn", body.Items[0].Link)
	assert.Equal(t, "View Source", body.Items[0].LinkLabel)

	resp, err = http.Get(srv.URL + "/api/circulars")
	require.NoError(t, err)
	decode(t, resp, &body)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Academic calendar", body.Items[0].Title)
	assert.Equal(t, "View PDF", body.Items[0].LinkLabel)
}

func TestUnknownCategoryIsBadRequest(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &stubLoader{}, stubPDF{})
	resp, err := http.Get(srv.URL + "/api/circulars?category=HR")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefreshFailureIsBadGateway(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &stubLoader{err: errors.New("unexpected feed status: 503")}, stubPDF{})
	resp, err := http.Post(srv.URL+"/api/refresh", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body errorBody
	decode(t, resp, &body)
	assert.Contains(t, body.Error, "Failed to load data")
	assert.NotEmpty(t, body.Hint)
}

func TestRefreshFromFormRedirects(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &stubLoader{feed: testFeed()}, stubPDF{})
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/refresh?category=DVP", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/html")
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?category=DVP", resp.Header.Get("Location"))
}

func TestExportPDF(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, &stubLoader{feed: testFeed()}, stubPDF{})
	require.NoError(t, store.Refresh(context.Background()))

	resp, err := http.Get(srv.URL + "/api/export.pdf?category=DVP")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Regexp(t, `attachment; filename="DTE_DVP_Circulars_\d{4}-\d{2}-\d{2}\.pdf"`, resp.Header.Get("Content-Disposition"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 DVP", string(raw))
}

func TestExportEmptyIsRefused(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, &stubLoader{feed: domain.Feed{}}, stubPDF{})
	require.NoError(t, store.Refresh(context.Background()))

	for _, path := range []string{"/api/export.pdf", "/api/export.docx"} {
		resp, err := http.Get(srv.URL + path + "?category=EST")
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode, path)
		var body errorBody
		decode(t, resp, &body)
		assert.Equal(t, "No data to export. Please refresh first.", body.Error)
	}
}

func TestExportFailureIsServerError(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, &stubLoader{feed: testFeed()}, stubPDF{err: errors.New("chrome crashed")})
	require.NoError(t, store.Refresh(context.Background()))

	resp, err := http.Get(srv.URL + "/api/export.pdf")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body errorBody
	decode(t, resp, &body)
	assert.Contains(t, body.Error, "chrome crashed")

	resp, err = http.Get(srv.URL + "/api/export.docx")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "guard released after failure")
}

func TestShareEndpoint(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, &stubLoader{feed: testFeed()}, stubPDF{})
	require.NoError(t, store.Refresh(context.Background()))

	resp, err := http.Get(srv.URL + "/api/share?category=Departmental&index=0")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var share struct {
		Title string `json:"title"`
		Text  string `json:"text"`
		URL   string `json:"url"`
	}
	decode(t, resp, &share)
	assert.Equal(t, "DTE Karnataka Circular - Academic calendar", share.Title)
	assert.Equal(t, "https://dtek.karnataka.gov.in/a.pdf", share.URL)

	resp, err = http.Get(srv.URL + "/api/share?category=Departmental&index=9")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestThemeCookie(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &stubLoader{}, stubPDF{})

	resp, err := http.PostForm(srv.URL+"/api/theme", map[string][]string{"theme": {"dark"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "theme", cookies[0].Name)
	assert.Equal(t, "dark", cookies[0].Value)

	resp, err = http.PostForm(srv.URL+"/api/theme", map[string][]string{"theme": {"neon"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPageRendersEmptyStateWithoutExport(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &stubLoader{feed: domain.Feed{}}, stubPDF{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/?category=ACM", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(raw)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, `data-theme="dark"`)
	assert.Contains(t, page, "No circulars found for ACM Polytechnic Circulars.")
	assert.NotContains(t, page, "Export PDF")
}

func TestPageListsCirculars(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &stubLoader{feed: testFeed()}, stubPDF{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(raw)

	assert.Contains(t, page, "Academic calendar")
	assert.NotContains(t, page, "Transfer counselling")
	assert.Contains(t, page, "1 circulars loaded")
	assert.Contains(t, page, "Export PDF")
	assert.True(t, strings.Contains(page, `class="departmental"`))
}

func TestFeedEndpoint(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, &stubLoader{feed: testFeed()}, stubPDF{})

	resp, err := http.Get(srv.URL + "/circulars.json")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, store.Refresh(context.Background()))
	resp, err = http.Get(srv.URL + "/circulars.json")
	require.NoError(t, err)
	var feed domain.Feed
	decode(t, resp, &feed)
	assert.Len(t, feed.Circulars, 2)
}

func TestRefreshFailureFromFormShowsBanner(t *testing.T) {
	t.Parallel()

	loader := &stubLoader{feed: testFeed()}
	srv, store := newTestServer(t, loader, stubPDF{})
	require.NoError(t, store.Refresh(context.Background()))
	loader.fail(errors.New("feed host down"))

	resp, err := noFollow.Do(htmlRequest(t, http.MethodPost, srv.URL+"/api/refresh?category=DVP"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	location := resp.Header.Get("Location")
	assert.True(t, strings.HasPrefix(location, "/?category=DVP&error="), location)

	resp, err = http.DefaultClient.Do(htmlRequest(t, http.MethodPost, srv.URL+"/api/refresh?category=DVP"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	page := readPage(t, resp)
	assert.Contains(t, page, `role="alert"`)
	assert.Contains(t, page, "Failed to load data: refresh feed: feed host down")
	assert.Contains(t, page, "Retry</button>")
	assert.Contains(t, page, "Transfer counselling", "previous snapshot still listed")
}

func TestExportFailureFromLinkShowsBanner(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, &stubLoader{feed: testFeed()}, stubPDF{err: errors.New("chrome crashed")})
	require.NoError(t, store.Refresh(context.Background()))

	resp, err := http.DefaultClient.Do(htmlRequest(t, http.MethodGet, srv.URL+"/api/export.pdf?category=DVP"))
	require.NoError(t, err)
	page := readPage(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "Error generating PDF")
	assert.Contains(t, page, "chrome crashed")
}

func TestEmptyExportFromLinkShowsMessage(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, &stubLoader{feed: domain.Feed{}}, stubPDF{})
	require.NoError(t, store.Refresh(context.Background()))

	resp, err := noFollow.Do(htmlRequest(t, http.MethodGet, srv.URL+"/api/export.docx?category=EST"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, err = http.Get(srv.URL + resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Contains(t, readPage(t, resp), "No data to export. Please refresh first.")
}

func TestPageAdvertisesConfiguredInterval(t *testing.T) {
	t.Parallel()

	store := board.NewStore(&stubLoader{feed: testFeed()}, nil, time.UTC, nil)
	h := NewHandler(store, stubPDF{}, stubDOCX{}, nil).WithAutoRefresh(2 * time.Hour)
	srv := httptest.NewServer(NewRouter(h, nil))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	assert.Contains(t, readPage(t, resp), "Every 2 hours")

	plain, _ := newTestServer(t, &stubLoader{feed: testFeed()}, stubPDF{})
	resp, err = http.Get(plain.URL + "/")
	require.NoError(t, err)
	assert.NotContains(t, readPage(t, resp), "Auto-refreshed")
}

func TestIntervalLabel(t *testing.T) {
	t.Parallel()

	cases := map[time.Duration]string{
		0:                "",
		time.Minute:      "1 minute",
		30 * time.Minute: "30 minutes",
		time.Hour:        "1 hour",
		90 * time.Minute: "90 minutes",
		45 * time.Second: "45s",
	}
	for d, want := range cases {
		assert.Equal(t, want, intervalLabel(d), d.String())
	}
}

func TestShareFromPageIsPlainText(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, &stubLoader{feed: testFeed()}, stubPDF{})
	require.NoError(t, store.Refresh(context.Background()))

	resp, err := http.DefaultClient.Do(htmlRequest(t, http.MethodGet, srv.URL+"/api/share?category=Departmental&index=0"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	text := readPage(t, resp)
	assert.True(t, strings.HasPrefix(text, "DTE Karnataka Circular - Academic calendar\n"), text)
	assert.Contains(t, text, "**Subject:** Academic calendar")
	assert.Contains(t, text, "https://dtek.karnataka.gov.in/a.pdf")
}
