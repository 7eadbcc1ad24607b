package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"CircularsDesk/internal/catalog"
	"CircularsDesk/internal/domain"
)

// TableWidthPx is the CSS width the table is laid out at before capture.
const TableWidthPx = 794

// Document is a single export request.
type Document struct {
	Category    domain.Category
	Records     []domain.Circular
	GeneratedAt time.Time
}

// FileName embeds the category and the generation date.
func (d Document) FileName(ext string) string {
	return fmt.Sprintf("DTE_%s_Circulars_%s.%s", d.Category, d.GeneratedAt.Format("2006-01-02"), ext)
}

var tableTemplate = template.Must(template.New("table").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
body{margin:0;background:#fff}
.sheet{width:{{.Width}}px;box-sizing:border-box;padding:40px;font-family:'Segoe UI',Tahoma,Geneva,Verdana,'Noto Sans Kannada',sans-serif;color:#333;line-height:1.5;background:#fff}
.head{text-align:center;margin-bottom:25px;border-bottom:2px solid #007bff;padding-bottom:15px}
.head h1{font-size:22px;margin:0;color:#007bff}
.head .dept{font-size:16px;margin:8px 0;color:#666;font-weight:600}
.head .meta{font-size:13px;margin:5px 0;color:#666}
table{width:100%;border-collapse:collapse;font-size:10px;margin-top:15px}
th{border:1px solid #333;padding:8px 4px;background:#007bff;color:#fff;font-size:11px}
td{border:1px solid #333;padding:6px 3px;vertical-align:top;font-size:9px;word-wrap:break-word}
tr:nth-child(even) td{background:#fff}
tr:nth-child(odd) td{background:#f8f9fa}
td.sl{text-align:center;font-weight:600;color:#007bff;font-size:10px}
td.date{text-align:center}
td.section{text-align:center;font-size:8px;font-weight:600;color:#28a745}
.foot{text-align:center;margin-top:30px;padding-top:20px;border-top:2px solid #007bff;font-size:12px;color:#666}
</style></head><body><div class="sheet">
<div class="head">
<h1>DTE Karnataka Circulars</h1>
<p class="dept">Department: {{.Section}}</p>
<p class="meta">Generated on: {{.Generated}} | Total Records: {{.Count}}</p>
</div>
<table><thead><tr>
<th style="width:6%">Sl</th><th style="width:12%">Date</th><th style="width:22%">Order No.</th><th style="width:50%">Subject</th><th style="width:10%">Section</th>
</tr></thead><tbody>
{{range .Rows}}<tr><td class="sl">{{.Serial}}</td><td class="date">{{.Date}}</td><td>{{.OrderNo}}</td><td>{{.Subject}}</td><td class="section">{{.Section}}</td></tr>
{{end}}</tbody></table>
<div class="foot">
<p><strong>Generated from DTE Karnataka Circulars App</strong></p>
<p>Official Website: https://dtek.karnataka.gov.in/</p>
<p>This document contains {{.Count}} circulars from {{.Section}}</p>
</div>
</div></body></html>`))

// RenderTableHTML lays out the document as a standalone HTML page.
func RenderTableHTML(doc Document) (string, error) {
	data := struct {
		Width     int
		Section   string
		Generated string
		Count     string
		Rows      []catalog.Row
	}{
		Width:     TableWidthPx,
		Section:   catalog.SectionName(doc.Category),
		Generated: doc.GeneratedAt.Format("02/01/2006"),
		Count:     strconv.Itoa(len(doc.Records)),
		Rows:      catalog.Rows(doc.Records, doc.Category),
	}

	var buf bytes.Buffer
	if err := tableTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render table: %w", err)
	}
	return buf.String(), nil
}
