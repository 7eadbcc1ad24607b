package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CircularsDesk/internal/board"
	"CircularsDesk/internal/catalog"
	"CircularsDesk/internal/domain"
	"CircularsDesk/internal/export"
	"CircularsDesk/internal/infrastructure/storage"
)

const (
	themeCookie = "theme"
	themeLight  = "light"
	themeDark   = "dark"
	retryHint   = "Wait a moment and refresh again. The feed may be updating."

	nothingToExport = "No data to export. Please refresh first."
)

// flashParam carries an error message back to the page after a form post.
const flashParam = "error"

// PDFExporter writes a PDF for a document.
type PDFExporter interface {
	Export(ctx context.Context, doc export.Document, w io.Writer) error
}

// DOCXExporter writes a Word document for a document.
type DOCXExporter interface {
	Export(doc export.Document, w io.Writer) error
}

// Handler serves the circulars page and its JSON API.
type Handler struct {
	board  *board.Store
	pdf    PDFExporter
	docx   DOCXExporter
	logger *slog.Logger
	// autoRefresh is the scrape interval shown on the page; zero hides it.
	autoRefresh time.Duration
}

// NewHandler wires the board with the exporters. Either exporter may be nil,
// in which case its route answers 503.
func NewHandler(b *board.Store, pdf PDFExporter, docx DOCXExporter, logger *slog.Logger) *Handler {
	return &Handler{board: b, pdf: pdf, docx: docx, logger: logger}
}

// WithAutoRefresh advertises the scheduled scrape interval on the page.
func (h *Handler) WithAutoRefresh(every time.Duration) *Handler {
	h.autoRefresh = every
	return h
}

type errorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

type item struct {
	Serial    int    `json:"serial"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	OrderNo   string `json:"order_no,omitempty"`
	Section   string `json:"section"`
	Link      string `json:"link"`
	LinkLabel string `json:"link_label"`
}

type viewBody struct {
	board.View
	SectionName string `json:"section_name"`
	Items       []item `json:"items"`
}

func newViewBody(v board.View) viewBody {
	body := viewBody{View: v, SectionName: catalog.SectionName(v.Category), Items: make([]item, 0, len(v.Records))}
	for i, c := range v.Records {
		body.Items = append(body.Items, item{
			Serial:    i + 1,
			Title:     catalog.DisplayTitle(c),
			Date:      c.Date,
			OrderNo:   c.CircularNo,
			Section:   catalog.SectionName(v.Category),
			Link:      catalog.ResolveLink(c, v.Category),
			LinkLabel: catalog.LinkLabel(c),
		})
	}
	return body
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleFeed(w http.ResponseWriter, _ *http.Request) {
	feed, ok := h.board.Feed()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "feed not loaded yet", Hint: retryHint})
		return
	}
	payload, err := storage.EncodeFeed(feed)
	if err != nil {
		h.fail(w, "encode feed", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) handleCirculars(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.category(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newViewBody(h.board.View(cat)))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := h.board.Refresh(r.Context())
	switch {
	case errors.Is(err, board.ErrRefreshInProgress):
		if wantsHTML(r) {
			h.redirectWithError(w, r, "A refresh is already running. "+retryHint)
			return
		}
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
		return
	case err != nil:
		msg := "Failed to load data: " + err.Error()
		if wantsHTML(r) {
			h.redirectWithError(w, r, msg+". "+retryHint)
			return
		}
		writeJSON(w, http.StatusBadGateway, errorBody{Error: msg, Hint: retryHint})
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, backTo(r), http.StatusSeeOther)
		return
	}
	cat, ok := h.category(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newViewBody(h.board.View(cat)))
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "pdf export is not configured"})
		return
	}
	h.export(w, r, "pdf", "application/pdf", func(ctx context.Context, doc export.Document, w io.Writer) error {
		return h.pdf.Export(ctx, doc, w)
	})
}

func (h *Handler) handleExportDOCX(w http.ResponseWriter, r *http.Request) {
	if h.docx == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "docx export is not configured"})
		return
	}
	h.export(w, r, "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		func(_ context.Context, doc export.Document, w io.Writer) error {
			return h.docx.Export(doc, w)
		})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(context.Context, export.Document, io.Writer) error) {
	cat, ok := h.category(w, r)
	if !ok {
		return
	}

	var (
		buf  bytes.Buffer
		name string
	)
	err := h.board.Export(r.Context(), cat, ext, func(ctx context.Context, doc export.Document) error {
		name = doc.FileName(ext)
		return write(ctx, doc, &buf)
	})
	switch {
	case errors.Is(err, export.ErrNothingToExport):
		if wantsHTML(r) {
			h.redirectWithError(w, r, nothingToExport)
			return
		}
		writeJSON(w, http.StatusConflict, errorBody{Error: nothingToExport})
		return
	case err != nil:
		if wantsHTML(r) {
			h.logError("export", err)
			h.redirectWithError(w, r, "Error generating "+strings.ToUpper(ext)+": "+err.Error())
			return
		}
		h.fail(w, "export", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) handleShare(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.category(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "index must be a number"})
		return
	}
	share, err := h.board.Share(cat, index)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	if wantsHTML(r) {
		text := share.Title + "\n\n" + share.Text
		if share.URL != "" {
			text += "\n" + share.URL
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, text+"\n")
		return
	}
	writeJSON(w, http.StatusOK, share)
}

func (h *Handler) handleTheme(w http.ResponseWriter, r *http.Request) {
	theme := r.FormValue("theme")
	if theme == "" {
		theme = toggledTheme(themeFrom(r))
	}
	if theme != themeLight && theme != themeDark {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "theme must be light or dark"})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     themeCookie,
		Value:    theme,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
	})
	if wantsHTML(r) {
		http.Redirect(w, r, backTo(r), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"theme": theme})
}

func (h *Handler) category(w http.ResponseWriter, r *http.Request) (domain.Category, bool) {
	cat, err := domain.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return "", false
	}
	return cat, true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	h.logError(msg, err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
}

func themeFrom(r *http.Request) string {
	if c, err := r.Cookie(themeCookie); err == nil && c.Value == themeDark {
		return themeDark
	}
	return themeLight
}

func toggledTheme(current string) string {
	if current == themeDark {
		return themeLight
	}
	return themeDark
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func (h *Handler) logError(msg string, err error) {
	if h.logger != nil {
		h.logger.Error(msg+" failed", "error", err)
	}
}

func (h *Handler) redirectWithError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, backWith(r, msg), http.StatusSeeOther)
}

// backTo returns the same-origin path the form was posted from.
func backTo(r *http.Request) string {
	return backWith(r, "")
}

func backWith(r *http.Request, flash string) string {
	q := url.Values{}
	if cat := r.URL.Query().Get("category"); cat != "" {
		q.Set("category", cat)
	}
	if flash != "" {
		q.Set(flashParam, flash)
	}
	if len(q) == 0 {
		return "/"
	}
	return "/?" + q.Encode()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
