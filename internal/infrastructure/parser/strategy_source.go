package parser

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"CircularsDesk/internal/config"
	"CircularsDesk/internal/domain"
	"CircularsDesk/internal/ports"
	"CircularsDesk/internal/scanner"
)

// StrategySource implements CircularSource via registered scanner strategies.
type StrategySource struct {
	registry    *scanner.Registry
	sites       []config.SiteConfig
	concurrency int
	logger      *slog.Logger
}

var _ ports.CircularSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, concurrency int, log *slog.Logger) *StrategySource {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &StrategySource{
		registry:    reg,
		sites:       sites,
		concurrency: concurrency,
		logger:      log,
	}
}

type sectionJob struct {
	scanner scanner.Scanner
	req     scanner.Request
}

// FetchAll scans every configured section. A section that fails is logged and
// contributes no records; the others still count.
func (s *StrategySource) FetchAll(ctx context.Context) (ports.ScanResult, error) {
	if s.registry == nil {
		return ports.ScanResult{}, fmt.Errorf("scanner registry is not configured")
	}

	var jobs []sectionJob
	for _, site := range s.sites {
		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			return ports.ScanResult{}, fmt.Errorf("site %s: %w", site.Name, err)
		}
		for _, sec := range site.Sections {
			jobs = append(jobs, sectionJob{
				scanner: strategy,
				req: scanner.Request{
					SiteName: site.Name,
					BaseURL:  site.BaseURL,
					MaxRows:  site.MaxRows,
					Options:  site.Options,
					Section:  scanner.Section{Name: sec.Name, URL: sec.URL, Layout: sec.Layout},
				},
			})
		}
	}

	s.debug("fetch all", "sections", len(jobs), "concurrency", s.concurrency)

	results := make([][]domain.Circular, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			found, err := job.scanner.Scan(gctx, job.req)
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("section scan failed", "section", job.req.Section.Name, "error", err)
				}
				return nil
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ports.ScanResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return ports.ScanResult{}, err
	}

	out := ports.ScanResult{Counts: make(map[string]int, len(jobs))}
	for i, job := range jobs {
		out.Counts[job.req.Section.Name] += len(results[i])
		out.Circulars = append(out.Circulars, results[i]...)
	}

	s.debug("strategy source done", "total_circulars", len(out.Circulars))
	return out, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
