package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iantato/Ecophil-Scraper-API/internal/cache"
	"github.com/iantato/Ecophil-Scraper-API/internal/clock"
	"github.com/iantato/Ecophil-Scraper-API/internal/eventlog"
	"github.com/iantato/Ecophil-Scraper-API/internal/model"
	"github.com/iantato/Ecophil-Scraper-API/internal/pdfextract"
	"github.com/iantato/Ecophil-Scraper-API/internal/portal"
	"github.com/iantato/Ecophil-Scraper-API/internal/reconcile"
	"github.com/iantato/Ecophil-Scraper-API/internal/savedir"
)

const reportFile = "release_report.csv"

// newReconcileCmd creates the 'reconcile' subcommand. It resolves a release
// status for every unchecked reference in a window's row cache.
func newReconcileCmd() *cobra.Command {
	var (
		startFlag    string
		endFlag      string
		companies    []string
		skipDownload bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconciles cached rows into release statuses",
		Long: `Downloads the terminal points-transactions exports for the window, then
visits the document detail page of every unchecked cached reference,
extracts the container number from the declaration PDF where needed, and
joins it against the exports' arrival events to compute a release status.
The results land in the window's save directory as a CSV report.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReconcile(cmd, startFlag, endFlag, companies, skipDownload)
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "window start, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&endFlag, "end", "", "window end, YYYY-MM-DD (required)")
	cmd.Flags().StringSliceVar(&companies, "companies", []string{"ati", "mictsi"}, "terminal companies to export arrivals from")
	cmd.Flags().BoolVar(&skipDownload, "skip-download", false, "reuse already-cached terminal exports")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func runReconcile(cmd *cobra.Command, startFlag, endFlag string, companies []string, skipDownload bool) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.close()

	clk := clock.NewSystem()
	dates, err := parseWindow(startFlag, endFlag, clk.Now())
	if err != nil {
		return err
	}

	files := savedir.NewManager(sess.cfg.Data.Dir, sess.logger)
	saveDir := dates.SaveDir()
	if _, err := files.EnsureSaveDir(saveDir); err != nil {
		return err
	}
	rows := cache.NewStore(files.DocumentsDir(), sess.logger).Dir(saveDir)

	drv, err := portal.NewDriver(portal.DriverConfig{
		DownloadDir: files.DataDir(),
		Headless:    !headful,
		Timeouts:    timeoutTiers(sess.cfg),
	}, sess.logger)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer drv.Close()

	ctx := cmd.Context()
	if !skipDownload {
		if err := downloadExports(cmd, sess, drv, files, dates, companies, saveDir); err != nil {
			return err
		}
	}

	exports := make([]string, 0, len(companies))
	for _, company := range companies {
		exports = append(exports, files.CachePath(saveDir, savedir.ExportName(company)))
	}
	arrivals := eventlog.NewLookup(exports...)

	ic := portal.NewIntercommerce(portal.IntercommerceConfig{
		BaseURL: sess.cfg.Intercommerce.BaseURL,
		Account: model.Account{
			Username: sess.cfg.Intercommerce.Username,
			Password: sess.cfg.Intercommerce.Password,
		},
		MaxAttempts: sess.cfg.Login.MaxAttempts,
		Backoff:     sess.cfg.Login.Backoff(),
	}, drv, files, sess.logger)
	if err := ic.Login(ctx); err != nil {
		return err
	}

	engine := reconcile.NewEngine(rows, ic, pdfextract.New(), arrivals, clk, sess.logger)
	records, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	reportPath := filepath.Join(files.DocumentsDir(), saveDir, reportFile)
	if err := reconcile.WriteReport(reportPath, records); err != nil {
		return err
	}
	reconcile.RenderReport(os.Stdout, records)

	sess.logger.Info("reconciliation finished",
		zap.Int("records", len(records)),
		zap.String("report", reportPath),
	)
	return nil
}

// downloadExports logs in to the booking portal and pulls one
// points-transactions export per terminal company.
func downloadExports(
	cmd *cobra.Command,
	sess *session,
	drv *portal.Driver,
	files *savedir.Manager,
	dates model.Dates,
	companies []string,
	saveDir string,
) error {
	vbs := portal.NewVBS(portal.VBSConfig{
		BaseURL: sess.cfg.VBS.BaseURL,
		Account: model.Account{
			Username: sess.cfg.VBS.Username,
			Password: sess.cfg.VBS.Password,
		},
		MaxAttempts: sess.cfg.Login.MaxAttempts,
		Backoff:     sess.cfg.Login.Backoff(),
	}, drv, files, sess.logger)

	ctx := cmd.Context()
	if err := vbs.Login(ctx); err != nil {
		return err
	}
	for _, company := range companies {
		if err := vbs.DownloadTransactions(ctx, dates, company, saveDir); err != nil {
			return fmt.Errorf("download %s export: %w", company, err)
		}
	}
	return nil
}
