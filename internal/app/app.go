package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"CircularsDesk/internal/board"
	"CircularsDesk/internal/config"
	"CircularsDesk/internal/domain"
	"CircularsDesk/internal/export"
	"CircularsDesk/internal/infrastructure/feed"
	"CircularsDesk/internal/infrastructure/parser"
	"CircularsDesk/internal/infrastructure/render"
	"CircularsDesk/internal/infrastructure/scheduler"
	"CircularsDesk/internal/infrastructure/storage"
	"CircularsDesk/internal/infrastructure/telegram"
	"CircularsDesk/internal/logging"
	"CircularsDesk/internal/metrics"
	"CircularsDesk/internal/ports"
	"CircularsDesk/internal/scanner"
	"CircularsDesk/internal/transport/httpapi"
	"CircularsDesk/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	pipeline   *usecase.Pipeline
	board      *board.Store
	reader     ports.FeedReader
	pdf        *export.PDFExporter
	docx       *export.DOCXExporter
	rasterizer *render.ChromeRasterizer
	db         *sql.DB
}

// New builds the application. A configured database must be reachable.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithWriter(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	scanners := scanner.NewRegistry(parser.NewTableScanner(nil, baseLogger.With("component", "scanner.table")))
	source := parser.NewStrategySource(scanners, cfg.Sites, cfg.Pipeline.Concurrency, baseLogger.With("component", "source"))

	a := &Application{cfg: cfg, logger: baseLogger, registry: registry}

	var repository ports.CircularRepository
	if cfg.Database.DSN != "" {
		db, err := storage.OpenPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		repo := storage.NewPostgresRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.db = db
		repository = repo
	}

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Store:      storage.NewFeedFile(cfg.Feed.Path),
		Baseline:   storage.NewFeedFile(cfg.Feed.BaselinePath),
		Repository: repository,
		Notifier:   notifier,
		Metrics:    m,
		Limits: usecase.Limits{
			PerSection:    cfg.Pipeline.PerSectionLimit,
			Total:         cfg.Pipeline.TotalLimit,
			BaselineBelow: cfg.Pipeline.BaselineBelow,
		},
		Logger: baseLogger.With("component", "pipeline"),
	})

	a.reader = feed.NewLoader(cfg.Feed.Source, nil, baseLogger.With("component", "feed"))
	a.board = board.NewStore(a.reader, m, cfg.Scheduler.Location(), baseLogger.With("component", "board"))

	a.rasterizer = render.NewChromeRasterizer(render.ChromeConfig{
		Bin:         cfg.Chrome.Bin,
		DebuggerURL: cfg.Chrome.DebuggerURL,
		NoSandbox:   cfg.Chrome.NoSandbox,
	}, baseLogger.With("component", "render"))
	a.pdf = export.NewPDFExporter(a.rasterizer, baseLogger.With("component", "export.pdf"))
	a.docx = export.NewDOCXExporter("")

	return a, nil
}

// Serve runs the HTTP server until ctx is cancelled. With schedule set the
// pipeline also runs on the configured interval and readers are reloaded
// after every run.
func (a *Application) Serve(ctx context.Context, schedule bool) error {
	if err := a.board.Refresh(ctx); err != nil {
		a.logger.Warn("initial feed load failed", "error", err)
	}

	if schedule {
		sched := usecase.NewScheduler(
			scheduler.NewIntervalScheduler(a.cfg.Scheduler.Every()),
			a.pipeline,
			a.logger.With("component", "scheduler"),
			func(ctx context.Context, _ usecase.RunReport) {
				if err := a.board.Refresh(ctx); err != nil && !errors.Is(err, board.ErrRefreshInProgress) {
					a.logger.Warn("reload after run failed", "error", err)
				}
			},
		)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = sched.Stop(stopCtx)
		}()
	}

	handler := httpapi.NewHandler(a.board, a.pdf, a.docx, a.logger.With("component", "http"))
	if schedule {
		handler.WithAutoRefresh(a.cfg.Scheduler.Every())
	}
	router := httpapi.NewRouter(handler, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := httpapi.NewServer(a.cfg.Server.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// Scrape performs a single pipeline execution.
func (a *Application) Scrape(ctx context.Context) (usecase.RunReport, error) {
	return a.pipeline.ProcessRun(ctx)
}

// Merge rebuilds the feed from existing and baseline data only.
func (a *Application) Merge(ctx context.Context) (usecase.RunReport, error) {
	return a.pipeline.Merge(ctx)
}

// Verify loads the published feed and prints its summary to w.
func (a *Application) Verify(ctx context.Context, w io.Writer) error {
	f, err := a.reader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load feed: %w", err)
	}
	return usecase.Verify(f).Write(w)
}

// Export writes one category as a PDF or DOCX document to w and returns the
// suggested file name.
func (a *Application) Export(ctx context.Context, category domain.Category, format string, w io.Writer) (string, error) {
	if err := a.board.Refresh(ctx); err != nil {
		return "", err
	}

	var name string
	err := a.board.Export(ctx, category, format, func(ctx context.Context, doc export.Document) error {
		name = doc.FileName(format)
		switch format {
		case "pdf":
			return a.pdf.Export(ctx, doc, w)
		case "docx":
			return a.docx.Export(doc, w)
		default:
			return fmt.Errorf("unknown export format %q", format)
		}
	})
	return name, err
}

// Close releases the browser and the database pool.
func (a *Application) Close() error {
	var errs []error
	if a.rasterizer != nil {
		errs = append(errs, a.rasterizer.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
