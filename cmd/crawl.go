package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iantato/Ecophil-Scraper-API/internal/cache"
	"github.com/iantato/Ecophil-Scraper-API/internal/clock"
	"github.com/iantato/Ecophil-Scraper-API/internal/crawl"
	"github.com/iantato/Ecophil-Scraper-API/internal/model"
	"github.com/iantato/Ecophil-Scraper-API/internal/portal"
	"github.com/iantato/Ecophil-Scraper-API/internal/savedir"
)

// newCrawlCmd creates the 'crawl' subcommand. It walks the declarations
// listing for one branch and one date window and fills the window's row
// cache.
func newCrawlCmd() *cobra.Command {
	var (
		branch    string
		startFlag string
		endFlag   string
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the declarations listing into the row cache",
		Long: `Walks the customs brokerage portal's paginated declarations listing for
one branch, newest-first, caching every accepted row whose creation date
falls inside the requested window. The walk stops at the first row that
precedes the window start.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, branch, startFlag, endFlag)
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "company branch to crawl (required)")
	cmd.Flags().StringVar(&startFlag, "start", "", "window start, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&endFlag, "end", "", "window end, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("branch")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func runCrawl(cmd *cobra.Command, branch, startFlag, endFlag string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.close()

	dates, err := parseWindow(startFlag, endFlag, clock.NewSystem().Now())
	if err != nil {
		return err
	}

	branchURL, err := sess.cfg.Intercommerce.BranchURL(branch)
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

	ic := portal.NewIntercommerce(portal.IntercommerceConfig{
		BaseURL:   sess.cfg.Intercommerce.BaseURL,
		BranchURL: branchURL,
		Account: model.Account{
			Username: sess.cfg.Intercommerce.Username,
			Password: sess.cfg.Intercommerce.Password,
		},
		MaxAttempts: sess.cfg.Login.MaxAttempts,
		Backoff:     sess.cfg.Login.Backoff(),
	}, drv, files, sess.logger)

	ctx := cmd.Context()
	if err := ic.Login(ctx); err != nil {
		return err
	}

	sess.logger.Info("starting crawl",
		zap.String("branch", branch),
		zap.String("save_dir", saveDir),
	)
	return crawl.NewController(ic, rows, dates, branch, sess.logger).Run(ctx)
}
