// Package cmd defines and implements the CLI commands for the releasecrawler
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iantato/Ecophil-Scraper-API/internal/config"
	"github.com/iantato/Ecophil-Scraper-API/internal/logging"
	"github.com/iantato/Ecophil-Scraper-API/internal/metrics"
	"github.com/iantato/Ecophil-Scraper-API/internal/model"
	"github.com/iantato/Ecophil-Scraper-API/internal/portal"
)

var (
	cfgFile string
	headful bool
)

// session bundles the pieces every subcommand needs: validated config and a
// logger tagged with a per-run session id.
type session struct {
	cfg    config.Config
	logger *zap.Logger
}

// newSession loads configuration, builds the logger, and starts the metrics
// endpoint when enabled.
func newSession() (*session, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(zap.String("session_id", uuid.NewString()))

	if cfg.Metrics.Enabled {
		metrics.Init()
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	return &session{cfg: cfg, logger: logger}, nil
}

func (s *session) close() {
	_ = s.logger.Sync()
}

// serveMetrics exposes /metrics for the lifetime of the run. The process is
// short-lived, so the server is never shut down explicitly.
func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("metrics endpoint started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics endpoint error", zap.Error(err))
	}
}

// timeoutTiers maps the configured wait tiers onto the driver.
func timeoutTiers(cfg config.Config) portal.Timeouts {
	return portal.Timeouts{
		Short:        cfg.Timeouts.Short(),
		Medium:       cfg.Timeouts.Medium(),
		Long:         cfg.Timeouts.Long(),
		Download:     cfg.Timeouts.Download(),
		DownloadPoll: cfg.Timeouts.DownloadPoll(),
	}
}

// parseWindow validates the --start/--end flags into a crawl window.
func parseWindow(startFlag, endFlag string, now time.Time) (model.Dates, error) {
	start, err := time.Parse(time.DateOnly, startFlag)
	if err != nil {
		return model.Dates{}, fmt.Errorf("parse --start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, endFlag)
	if err != nil {
		return model.Dates{}, fmt.Errorf("parse --end: %w", err)
	}
	return model.NewDates(start, end, now)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "releasecrawler",
		Short: "Scrapes customs declarations and computes container release statuses.",
		Long: `releasecrawler walks the customs brokerage portal's declarations listing
for a date window, caches the accepted rows per window, and reconciles each
cached reference against document detail pages, declaration PDFs, and
terminal arrival exports to derive a release status per shipment.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env and defaults apply otherwise)")
	cmd.PersistentFlags().BoolVar(&headful, "headful", false, "run the browser with a visible window")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newReconcileCmd())

	return cmd
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command
// context so browser sessions unwind through their deferred Close.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "releasecrawler: %v\n", err)
		os.Exit(1)
	}
}
