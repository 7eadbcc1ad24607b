package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"CircularsDesk/internal/catalog"
	"CircularsDesk/internal/domain"
	"CircularsDesk/internal/metrics"
	"CircularsDesk/internal/ports"
)

const (
	failedNote = "All scraping attempts failed"
	// digestLimit caps how many circulars one notification lists.
	digestLimit = 10
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.CircularSource
	Store      ports.FeedStore
	Baseline   ports.FeedReader
	Repository ports.CircularRepository
	Notifier   ports.Notifier
	Metrics    *metrics.Metrics
	Limits     Limits
	Logger     *slog.Logger
	Now        func() time.Time
}

// Pipeline implements the scrape, merge and publish workflow.
type Pipeline struct {
	source     ports.CircularSource
	store      ports.FeedStore
	baseline   ports.FeedReader
	repository ports.CircularRepository
	notifier   ports.Notifier
	metrics    *metrics.Metrics
	limits     Limits
	logger     *slog.Logger
	now        func() time.Time
}

// RunReport summarises one pipeline execution.
type RunReport struct {
	RunID       string
	Fresh       int
	Baseline    int
	Existing    int
	Published   int
	NewlySeen   int
	Status      domain.ScrapeStatus
	SectionScan map[string]int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	limits := deps.Limits
	if limits == (Limits{}) {
		limits = DefaultLimits
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		source:     deps.Source,
		store:      deps.Store,
		baseline:   deps.Baseline,
		repository: deps.Repository,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		limits:     limits,
		logger:     deps.Logger,
		now:        now,
	}
}

// ProcessRun scrapes every section and publishes the merged feed.
func (p *Pipeline) ProcessRun(ctx context.Context) (RunReport, error) {
	if p.source == nil {
		return RunReport{}, fmt.Errorf("circular source is not configured")
	}

	scan, err := p.source.FetchAll(ctx)
	if err != nil {
		return RunReport{}, fmt.Errorf("fetch sections: %w", err)
	}
	return p.publish(ctx, scan)
}

// Merge rebuilds the feed from the existing document and the baseline
// without scraping.
func (p *Pipeline) Merge(ctx context.Context) (RunReport, error) {
	return p.publish(ctx, ports.ScanResult{})
}

func (p *Pipeline) publish(ctx context.Context, scan ports.ScanResult) (RunReport, error) {
	if p.store == nil {
		return RunReport{}, fmt.Errorf("feed store is not configured")
	}

	report := RunReport{RunID: uuid.NewString(), SectionScan: scan.Counts}
	log := p.logger
	if log != nil {
		log = log.With("run_id", report.RunID)
	}

	fresh := Dedupe(scan.Circulars)
	report.Fresh = len(fresh)

	pool := fresh
	if len(fresh) < p.limits.BaselineBelow && p.baseline != nil {
		base, err := p.baseline.Load(ctx)
		if err != nil {
			warn(log, "baseline unavailable", err)
		} else {
			report.Baseline = len(base.Circulars)
			pool = append(slices.Clone(fresh), base.Circulars...)
		}
	}

	existingFeed, err := p.store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load existing feed: %w", err)
	}
	report.Existing = len(existingFeed.Circulars)

	final := Assemble(pool, existingFeed.Circulars, p.limits)
	report.Published = len(final)

	now := p.now()
	feed := domain.Feed{
		LastUpdated:     now.Format(time.RFC3339),
		TotalCirculars:  len(final),
		Circulars:       final,
		SourceBreakdown: catalog.Breakdown(final),
		MergeInfo: &domain.MergeInfo{
			RunID:           report.RunID,
			MergedAt:        now.Format(time.RFC3339),
			SourcesUsed:     sourcesUsed(scan.Counts),
			FreshDataCount:  report.Fresh,
			TotalAfterMerge: len(final),
		},
	}
	switch {
	case len(final) == 0:
		feed.ScrapingStatus = domain.StatusFailed
		feed.Note = failedNote
	case report.Fresh > 0:
		feed.ScrapingStatus = domain.StatusSuccess
	default:
		feed.ScrapingStatus = domain.StatusPartial
	}
	report.Status = feed.ScrapingStatus

	if err := p.store.Save(ctx, feed); err != nil {
		return report, fmt.Errorf("save feed: %w", err)
	}
	p.metrics.ObservePipelineRun(string(report.Status), scan.Counts)

	unseen := p.unseen(ctx, log, fresh, existingFeed.Circulars, final)
	report.NewlySeen = len(unseen)

	if p.repository != nil && len(final) > 0 {
		if err := p.repository.SaveBatch(ctx, report.RunID, final); err != nil {
			warn(log, "archive circulars", err)
		}
	}

	if p.notifier != nil && len(unseen) > 0 {
		if err := p.notifier.PublishDigest(ctx, BuildDigest(unseen)); err != nil {
			warn(log, "publish digest", err)
		}
	}

	if log != nil {
		log.Info("feed published",
			"status", report.Status,
			"fresh", report.Fresh,
			"baseline", report.Baseline,
			"existing", report.Existing,
			"published", report.Published,
			"new", report.NewlySeen,
		)
	}
	return report, nil
}

// unseen returns the published fresh records nobody has been told about yet.
// The archive decides when configured; otherwise the previous feed does.
func (p *Pipeline) unseen(ctx context.Context, log *slog.Logger, fresh, previous, final []domain.Circular) []domain.Circular {
	if len(fresh) == 0 {
		return nil
	}

	published := make(map[domain.CircularKey]domain.Circular, len(final))
	for _, c := range final {
		published[c.Key()] = c
	}

	known := make(map[domain.CircularKey]bool, len(previous))
	if p.repository != nil {
		keys := make([]domain.CircularKey, 0, len(fresh))
		for _, c := range fresh {
			keys = append(keys, c.Key())
		}
		seen, err := p.repository.AlreadySeen(ctx, keys)
		if err != nil {
			warn(log, "load archived keys", err)
			return nil
		}
		known = seen
	} else {
		for _, c := range previous {
			known[c.Key()] = true
		}
	}

	var out []domain.Circular
	for _, c := range fresh {
		tagged, ok := published[c.Key()]
		if !ok || known[c.Key()] {
			continue
		}
		out = append(out, tagged)
	}
	return out
}

// BuildDigest renders the notification text for newly published circulars.
func BuildDigest(circulars []domain.Circular) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d new DTE Karnataka circular(s)", len(circulars))
	for i, c := range circulars {
		if i == digestLimit {
			fmt.Fprintf(&sb, "\n\n…and %d more", len(circulars)-digestLimit)
			break
		}
		share := catalog.ShareText(c, catalog.Classify(c))
		sb.WriteString("\n\n")
		sb.WriteString(share.Text)
		if share.URL != "" {
			sb.WriteString("\n")
			sb.WriteString(share.URL)
		}
	}
	return sb.String()
}

func sourcesUsed(counts map[string]int) []string {
	used := []string{}
	var names []string
	for name := range counts {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if counts[name] > 0 {
			used = append(used, name)
		}
	}
	return used
}

func warn(log *slog.Logger, msg string, err error) {
	if log != nil {
		log.Warn(msg, "error", err)
	}
}
