package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks feed refreshes, exports and scraping runs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Refreshes        *prometheus.CounterVec
	RefreshesDropped prometheus.Counter
	Exports          *prometheus.CounterVec
	ExportDuration   prometheus.Histogram
	PipelineRuns     *prometheus.CounterVec
	SectionCirculars *prometheus.GaugeVec
	FeedCirculars    prometheus.Gauge
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "circulars_feed_refreshes_total",
			Help: "Feed refreshes by outcome",
		}, []string{"outcome"}),
		RefreshesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "circulars_feed_refreshes_dropped_total",
			Help: "Refresh requests ignored because one was already running",
		}),
		Exports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "circulars_exports_total",
			Help: "Document exports by format and outcome",
		}, []string{"format", "outcome"}),
		ExportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "circulars_export_duration_seconds",
			Help:    "Duration of document exports",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "circulars_pipeline_runs_total",
			Help: "Scraping pipeline runs by resulting status",
		}, []string{"status"}),
		SectionCirculars: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circulars_section_scraped",
			Help: "Circulars found per section in the last run",
		}, []string{"section"}),
		FeedCirculars: factory.NewGauge(prometheus.GaugeOpts{
			Name: "circulars_feed_size",
			Help: "Circulars in the last loaded feed",
		}),
	}
}

// ObserveRefresh records a refresh outcome and the resulting feed size.
func (m *Metrics) ObserveRefresh(err error, size int) {
	if m == nil {
		return
	}
	if err != nil {
		m.Refreshes.WithLabelValues("error").Inc()
		return
	}
	m.Refreshes.WithLabelValues("ok").Inc()
	m.FeedCirculars.Set(float64(size))
}

// IncrementRefreshDropped records an ignored re-entrant refresh.
func (m *Metrics) IncrementRefreshDropped() {
	if m == nil {
		return
	}
	m.RefreshesDropped.Inc()
}

// ObserveExport records an export. Call with time.Now() at the start of the export.
func (m *Metrics) ObserveExport(format string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Exports.WithLabelValues(format, outcome).Inc()
	m.ExportDuration.Observe(time.Since(start).Seconds())
}

// ObservePipelineRun records a finished run and its per-section counts.
func (m *Metrics) ObservePipelineRun(status string, counts map[string]int) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(status).Inc()
	for section, n := range counts {
		m.SectionCirculars.WithLabelValues(section).Set(float64(n))
	}
}
