package httpapi

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"CircularsDesk/internal/board"
	"CircularsDesk/internal/catalog"
	"CircularsDesk/internal/domain"
)

type navLink struct {
	Category domain.Category
	Label    string
	Active   bool
}

type pageData struct {
	Theme       string
	ThemeIcon   string
	Category    domain.Category
	Slug        string
	SectionName string
	Nav         []navLink
	View        board.View
	Message     string
	AutoRefresh string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en"{{if eq .Theme "dark"}} data-theme="dark"{{end}}>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>DTE Karnataka Circulars - {{.SectionName}}</title>
<style>
:root{--bg:#f5f7fa;--card:#fff;--text:#333;--muted:#666;--accent:#007bff}
[data-theme="dark"]{--bg:#121212;--card:#1e1e1e;--text:#e0e0e0;--muted:#aaa;--accent:#4dabf7}
body{margin:0;font-family:'Segoe UI',Tahoma,Geneva,Verdana,'Noto Sans Kannada',sans-serif;background:var(--bg);color:var(--text)}
header{display:flex;justify-content:space-between;align-items:center;padding:16px 24px;background:var(--accent);color:#fff}
nav a{margin-right:12px;color:var(--accent);text-decoration:none;font-weight:600}
nav a.active{text-decoration:underline}
main{max-width:960px;margin:0 auto;padding:16px}
.stats,.empty,.notice{padding:12px;border-radius:6px;background:var(--card);margin:12px 0}
.card{background:var(--card);border-radius:8px;margin:12px 0;overflow:hidden;box-shadow:0 1px 3px rgba(0,0,0,.15)}
.card h3{margin:0;padding:10px 14px;color:#fff;font-size:15px}
.card h3.departmental{background:#007bff}.card h3.dvp{background:#28a745}.card h3.est{background:#6f42c1}.card h3.acm{background:#fd7e14}
.card .body{padding:10px 14px}
.card .meta{color:var(--muted);font-size:13px}
.actions form{display:inline}
button{cursor:pointer}
</style>
</head>
<body>
<header>
<h1>DTE Karnataka Circulars</h1>
<form method="post" action="/api/theme?category={{.Category}}"><button type="submit" aria-label="Toggle theme">{{.ThemeIcon}}</button></form>
</header>
<main>
<nav>{{range .Nav}}<a href="/?category={{.Category}}"{{if .Active}} class="active"{{end}}>{{.Label}}</a>{{end}}</nav>
<div class="actions">
<form method="post" action="/api/refresh?category={{.Category}}"><button type="submit">🔄 Refresh Data</button></form>
{{if .View.ExportVisible}}<a href="/api/export.pdf?category={{.Category}}">📄 Export PDF</a>
<a href="/api/export.docx?category={{.Category}}">📝 Export DOCX</a>{{end}}
</div>
{{with .Message}}<div class="notice" role="alert">⚠️ {{.}}
<form method="post" action="/api/refresh?category={{$.Category}}"><button type="submit">Retry</button></form></div>{{end}}
{{if .Items}}
<div class="stats"><strong>📊 {{.View.Stats.Count}} circulars loaded</strong> | <strong>🕒 Last updated:</strong> {{.View.Stats.LastUpdated}}{{with .AutoRefresh}} | <strong>🤖 Auto-refreshed:</strong> Every {{.}}{{end}}</div>
{{range .Items}}
<div class="card">
<h3 class="{{$.Slug}}">{{.Title}}</h3>
<div class="body">
<p class="meta">📅 {{.Date}}{{with .OrderNo}} | 📋 {{.}}{{end}} | 🏛️ {{.Section}}</p>
<a href="{{.Link}}" target="_blank" rel="noopener">{{.LinkLabel}}</a>
<a href="/api/share?category={{$.Category}}&amp;index={{.Index}}">🔗 Share</a>
</div>
</div>
{{end}}
{{else}}
<div class="empty">No circulars found for {{.SectionName}}.</div>
{{end}}
</main>
</body>
</html>`))

type pageItem struct {
	item
	Index int
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	cat, err := domain.ParseCategory(r.URL.Query().Get("category"))
	var message string
	if err != nil {
		cat = domain.CategoryDepartmental
		message = err.Error()
	}
	if flash := r.URL.Query().Get(flashParam); flash != "" && message == "" {
		message = flash
	}

	view := h.board.View(cat)
	if !view.Loaded {
		if rerr := h.board.Refresh(r.Context()); rerr == nil {
			view = h.board.View(cat)
		} else if message == "" {
			message = "Failed to load data: " + rerr.Error() + ". " + retryHint
		}
	}

	theme := themeFrom(r)
	data := struct {
		pageData
		Items []pageItem
	}{
		pageData: pageData{
			Theme:       theme,
			ThemeIcon:   themeIcon(theme),
			Category:    cat,
			Slug:        cat.Slug(),
			SectionName: catalog.SectionName(cat),
			View:        view,
			Message:     message,
			AutoRefresh: intervalLabel(h.autoRefresh),
		},
	}
	for _, c := range domain.Categories {
		data.Nav = append(data.Nav, navLink{Category: c, Label: catalog.ShortSectionName(c), Active: c == cat})
	}
	for i, it := range newViewBody(view).Items {
		data.Items = append(data.Items, pageItem{item: it, Index: i})
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		h.fail(w, "render page", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func themeIcon(theme string) string {
	if theme == themeDark {
		return "☀️"
	}
	return "🌙"
}

// intervalLabel renders d for the stats line, e.g. "30 minutes" or "2 hours".
func intervalLabel(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
