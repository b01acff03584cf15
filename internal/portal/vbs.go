package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iantato/Ecophil-Scraper-API/internal/metrics"
	"github.com/iantato/Ecophil-Scraper-API/internal/model"
	"github.com/iantato/Ecophil-Scraper-API/internal/savedir"
	"github.com/iantato/Ecophil-Scraper-API/internal/scrape"
)

// VBS page anatomy.
const (
	vbsUsernameField  = `#username`
	vbsPasswordField  = `#password`
	vbsLoginForm      = `form`
	vbsLoginError     = `#error-element-password`
	vbsFacilityReady  = `#vbs_new_selected_facilityid`
	vbsAcceptButton   = `#Accept`
	vbsNotifyMessages = `#NotifyMessages`
	vbsDateFromField  = "PointsTransactionsSearchForm___DATEFROM"
	vbsDateToField    = "PointsTransactionsSearchForm___DATETO"
	vbsReferenceBox   = `#PointsTransactionsSearchForm___REFERENCE`
	vbsSearchButton   = `#Search`

	vbsLoginFailedMarker  = "Login was unsuccessful"
	vbsTransactionsPage   = "/PointsTransactions.aspx"
	vbsDownloadName       = "PointsTransactions.csv"
	vbsMetricsPortalLabel = "vbs"
)

// VBSConfig wires the terminal vehicle-booking-system client.
type VBSConfig struct {
	BaseURL     string
	Account     model.Account
	MaxAttempts int
	Backoff     time.Duration
}

// VBS drives the terminal vehicle-booking portal to export the
// points-transactions report that carries container arrival events.
type VBS struct {
	cfg    VBSConfig
	drv    *Driver
	files  *savedir.Manager
	logger *zap.Logger
}

// NewVBS creates the portal client on an open driver session.
func NewVBS(cfg VBSConfig, drv *Driver, files *savedir.Manager, logger *zap.Logger) *VBS {
	return &VBS{cfg: cfg, drv: drv, files: files, logger: logger}
}

// Login authenticates against the booking portal, retrying credential
// failures up to the configured budget.
func (v *VBS) Login(ctx context.Context) error {
	for attempt := 1; attempt <= v.cfg.MaxAttempts; attempt++ {
		err := v.attemptLogin(ctx)
		if err == nil {
			metrics.ObserveLoginAttempt(vbsMetricsPortalLabel, "success")
			v.logger.Info("logged in to vbs")
			return nil
		}
		if errors.Is(err, scrape.ErrLoadingFailed) {
			v.logger.Error("vbs login page did not load", zap.Error(err))
			return err
		}

		metrics.ObserveLoginAttempt(vbsMetricsPortalLabel, "failure")
		v.logger.Warn("vbs login attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(v.cfg.Backoff):
		}
	}
	return fmt.Errorf("%w: vbs rejected credentials after %d attempts",
		scrape.ErrLoginFailed, v.cfg.MaxAttempts)
}

func (v *VBS) attemptLogin(ctx context.Context) error {
	tiers := v.drv.cfg.Timeouts

	if err := v.drv.Navigate(ctx, v.cfg.BaseURL); err != nil {
		return err
	}
	if err := v.drv.WaitVisible(ctx, vbsUsernameField, tiers.Medium); err != nil {
		return err
	}
	if err := v.drv.WaitVisible(ctx, vbsPasswordField, tiers.Medium); err != nil {
		return err
	}

	if err := v.drv.SendKeys(ctx, vbsUsernameField, v.cfg.Account.Username, tiers.Short); err != nil {
		return err
	}
	if err := v.drv.SendKeys(ctx, vbsPasswordField, v.cfg.Account.Password, tiers.Short); err != nil {
		return err
	}
	if err := v.drv.Submit(ctx, vbsLoginForm, tiers.Short); err != nil {
		return err
	}

	return v.verifyLogin(ctx)
}

func (v *VBS) verifyLogin(ctx context.Context) error {
	if err := v.drv.WaitVisible(ctx, vbsLoginError, v.drv.cfg.Timeouts.Short); err == nil {
		return fmt.Errorf("%w: vbs flagged the password", scrape.ErrLoginFailed)
	} else if !errors.Is(err, scrape.ErrLoadingFailed) {
		return err
	}

	src, err := v.drv.PageSource(ctx)
	if err != nil {
		return err
	}
	if strings.Contains(src, vbsLoginFailedMarker) {
		return fmt.Errorf("%w: vbs login was unsuccessful", scrape.ErrLoginFailed)
	}
	return nil
}

// facilityURL prefixes the company onto the portal host, which is how the
// booking system routes per-facility sessions.
func (v *VBS) facilityURL(company string) string {
	host := strings.TrimPrefix(v.cfg.BaseURL, "https://")
	return "https://" + strings.ToLower(company) + host
}

// acceptTerms switches the session to the company facility and clicks
// through its terms-and-conditions gate.
func (v *VBS) acceptTerms(ctx context.Context, company string) error {
	tiers := v.drv.cfg.Timeouts

	url := fmt.Sprintf("%s/Default.aspx?vbs_Facility_Changed=true&vbs_new_selected_FACILITYID=%s",
		v.facilityURL(company), strings.ToUpper(company))
	if err := v.drv.Navigate(ctx, url); err != nil {
		return err
	}
	if err := v.drv.Click(ctx, vbsAcceptButton, tiers.Medium); err != nil {
		return err
	}
	if err := v.drv.WaitVisible(ctx, vbsNotifyMessages, tiers.Medium); err != nil {
		return err
	}
	return v.drv.Navigate(ctx, v.facilityURL(company)+vbsTransactionsPage)
}

// vbsDate renders a date the way the search form expects, without zero
// padding.
func vbsDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}

// DownloadTransactions exports the company's points-transactions report for
// the crawl window and moves it into the save directory's cache subfolder.
func (v *VBS) DownloadTransactions(ctx context.Context, dates model.Dates, company, saveDir string) error {
	tiers := v.drv.cfg.Timeouts

	if err := v.drv.WaitVisible(ctx, vbsFacilityReady, tiers.Medium); err != nil {
		return err
	}
	if err := v.acceptTerms(ctx, company); err != nil {
		return err
	}

	if err := v.drv.SetFieldValue(ctx, vbsDateFromField, vbsDate(dates.Start), tiers.Medium); err != nil {
		return err
	}
	if err := v.drv.SetFieldValue(ctx, vbsDateToField, vbsDate(dates.End), tiers.Medium); err != nil {
		return err
	}

	if err := v.drv.Click(ctx, vbsReferenceBox, tiers.Short); err != nil {
		return err
	}
	if err := v.drv.Click(ctx, vbsSearchButton, tiers.Short); err != nil {
		return err
	}

	if _, err := v.files.WaitForDownload(ctx, vbsDownloadName, tiers.Download, tiers.DownloadPoll); err != nil {
		return err
	}
	if err := v.files.MoveExport(vbsDownloadName, saveDir, savedir.ExportName(company)); err != nil {
		return err
	}

	v.logger.Info("transactions export downloaded",
		zap.String("company", company),
		zap.String("save_dir", saveDir),
	)
	return nil
}
