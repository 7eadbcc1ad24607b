package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"CircularsDesk/internal/app"
	"CircularsDesk/internal/config"
	"CircularsDesk/internal/domain"
	"CircularsDesk/internal/logging"
	"CircularsDesk/internal/usecase"
)

type options struct {
	configPath string
	verbose    bool

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "circularsdesk",
		Short: "DTE Karnataka circulars board",
		Long: `circularsdesk scrapes the DTE Karnataka circular listings into a JSON feed
and serves a filtered, exportable view of it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.configPath != "" {
				opts.cfg = config.LoadFile(opts.configPath)
			} else {
				opts.cfg = config.Load()
			}
			if opts.verbose {
				opts.cfg.Logging.Level = "debug"
			}
			opts.logger = logging.NewWithWriter(cmd.ErrOrStderr(), opts.cfg.Logging.Level, opts.cfg.Logging.Format)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (or set CIRCULARS_CONFIG)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newScrapeCmd(opts),
		newMergeCmd(opts),
		newVerifyCmd(opts),
		newExportCmd(opts),
	)
	return root
}

func newServeCmd(opts *options) *cobra.Command {
	var (
		addr     string
		schedule bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the circulars page and API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				opts.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, opts, func(a *app.Application) error {
				return a.Serve(ctx, schedule)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "Also run the scraper on the configured interval")
	return cmd
}

func newScrapeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Scrape every section once and publish the feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.Application) error {
				report, err := a.Scrape(cmd.Context())
				if err != nil {
					return err
				}
				printReport(cmd, report)
				return nil
			})
		},
	}
}

func newMergeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Rebuild the feed from the existing and baseline documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.Application) error {
				report, err := a.Merge(cmd.Context())
				if err != nil {
					return err
				}
				printReport(cmd, report)
				return nil
			})
		},
	}
}

func newVerifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Summarise the published feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.Application) error {
				return a.Verify(cmd.Context(), cmd.OutOrStdout())
			})
		},
	}
}

func newExportCmd(opts *options) *cobra.Command {
	var (
		category string
		format   string
		outDir   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write one category as a PDF or DOCX document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := domain.ParseCategory(category)
			if err != nil {
				return err
			}
			if format != "pdf" && format != "docx" {
				return fmt.Errorf("format must be pdf or docx, got %q", format)
			}

			return withApp(cmd.Context(), opts, func(a *app.Application) error {
				var buf bytes.Buffer
				name, err := a.Export(cmd.Context(), cat, format, &buf)
				if err != nil {
					return err
				}
				path := filepath.Join(outDir, name)
				if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "Departmental", "Departmental, DVP, EST or ACM")
	cmd.Flags().StringVar(&format, "format", "pdf", "pdf or docx")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	return cmd
}

func withApp(ctx context.Context, opts *options, fn func(*app.Application) error) error {
	a, err := app.New(ctx, opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			opts.logger.Warn("close application", "error", cerr)
		}
	}()
	return fn(a)
}

func printReport(cmd *cobra.Command, r usecase.RunReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s\n", r.RunID, r.Status)
	fmt.Fprintf(out, "  fresh: %d, baseline: %d, existing: %d\n", r.Fresh, r.Baseline, r.Existing)
	fmt.Fprintf(out, "  published: %d, new: %d\n", r.Published, r.NewlySeen)
}
