package portal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iantato/Ecophil-Scraper-API/internal/metrics"
	"github.com/iantato/Ecophil-Scraper-API/internal/model"
	"github.com/iantato/Ecophil-Scraper-API/internal/savedir"
	"github.com/iantato/Ecophil-Scraper-API/internal/scrape"
)

// Intercommerce page anatomy.
const (
	icUsernameField  = `input[name="clientid"]`
	icPasswordField  = `input[name="password"]`
	icLoginForm      = `form[name="form1"]`
	icCreateForm     = `form[name="frmCreate"]`
	icListingReady   = `[name="txtClient"]`
	icInvoiceField   = `input[name="txtInvNo"]`
	icContainerField = `input[name="txtTotContType"]`
	icQuantityField  = `input[name="txtPackages"]`

	icListingRowXPath   = "/html/body/form/table/tbody/tr[9]/td[2]/table/tbody/tr/td/div/table/tbody/tr/td/table/tbody/tr[%d]"
	icReleaseTableXPath = "/html/body/form/table/tbody/tr[8]/td[2]"

	icDetailPath = "/WebCWS/cws_ip_step2PEZAEXPexpress.asp?ApplNo="
	icPDFPath    = "/WebCWS/pdf/sadPEZAEXP.php?aplid="

	icBadPasswordMarker  = "Incorrect Password"
	icServerErrorMarker  = "The page cannot be displayed because an internal server error has occurred."
	icPDFDownloadName    = "sadPEZAEXP.pdf"
	icMetricsPortalLabel = "intercommerce"
)

// Release-table markers.
const (
	markReleased      = "Released"
	markTransferred   = "Transferred"
	markApproved      = "Approved"
	markAutoInspected = "Auto-Inspected"
)

// IntercommerceConfig wires the customs brokerage portal client.
type IntercommerceConfig struct {
	BaseURL     string
	BranchURL   string
	Account     model.Account
	MaxAttempts int
	Backoff     time.Duration
}

// Intercommerce drives the customs brokerage portal: login, the paginated
// declarations listing, document detail pages, and declaration PDFs.
type Intercommerce struct {
	cfg    IntercommerceConfig
	drv    *Driver
	files  *savedir.Manager
	logger *zap.Logger
}

// NewIntercommerce creates the portal client on an open driver session.
func NewIntercommerce(cfg IntercommerceConfig, drv *Driver, files *savedir.Manager, logger *zap.Logger) *Intercommerce {
	return &Intercommerce{cfg: cfg, drv: drv, files: files, logger: logger}
}

// Login authenticates the session, retrying bad-credential failures up to
// the configured attempt budget. Page-load timeouts are fatal immediately.
func (p *Intercommerce) Login(ctx context.Context) error {
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		err := p.attemptLogin(ctx)
		if err == nil {
			metrics.ObserveLoginAttempt(icMetricsPortalLabel, "success")
			p.logger.Info("logged in to intercommerce")
			return nil
		}
		if errors.Is(err, scrape.ErrLoadingFailed) {
			p.logger.Error("intercommerce login page did not load", zap.Error(err))
			return err
		}

		metrics.ObserveLoginAttempt(icMetricsPortalLabel, "failure")
		p.logger.Warn("intercommerce login attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.Backoff):
		}
	}
	return fmt.Errorf("%w: intercommerce rejected credentials after %d attempts",
		scrape.ErrLoginFailed, p.cfg.MaxAttempts)
}

func (p *Intercommerce) attemptLogin(ctx context.Context) error {
	tiers := p.drv.cfg.Timeouts

	if err := p.drv.Navigate(ctx, p.cfg.BaseURL); err != nil {
		return err
	}
	if err := p.drv.WaitVisible(ctx, icUsernameField, tiers.Medium); err != nil {
		return err
	}
	if err := p.drv.WaitVisible(ctx, icPasswordField, tiers.Medium); err != nil {
		return err
	}

	if err := p.drv.SendKeys(ctx, icUsernameField, p.cfg.Account.Username, tiers.Short); err != nil {
		return err
	}
	if err := p.drv.SendKeys(ctx, icPasswordField, p.cfg.Account.Password, tiers.Short); err != nil {
		return err
	}
	if err := p.drv.Submit(ctx, icLoginForm, tiers.Short); err != nil {
		return err
	}

	return p.verifyLogin(ctx)
}

// verifyLogin treats the reappearance of the account-creation form or a
// bad-password marker in the page source as a credential failure.
func (p *Intercommerce) verifyLogin(ctx context.Context) error {
	tiers := p.drv.cfg.Timeouts

	if err := p.drv.WaitVisible(ctx, icCreateForm, tiers.Short); err == nil {
		return fmt.Errorf("%w: intercommerce returned to the login page", scrape.ErrLoginFailed)
	} else if !errors.Is(err, scrape.ErrLoadingFailed) {
		return err
	}

	src, err := p.drv.PageSource(ctx)
	if err != nil {
		return err
	}
	if strings.Contains(src, icBadPasswordMarker) {
		return fmt.Errorf("%w: incorrect intercommerce password", scrape.ErrLoginFailed)
	}
	return nil
}

// OpenPage loads the branch listing at the given pagination offset.
func (p *Intercommerce) OpenPage(ctx context.Context, offset int) error {
	url := p.cfg.BranchURL + strconv.Itoa(offset)
	if err := p.drv.Navigate(ctx, url); err != nil {
		return err
	}
	return p.drv.WaitVisible(ctx, icListingReady, p.drv.cfg.Timeouts.Medium)
}

// Row returns the cell texts of one listing row by its in-page index.
func (p *Intercommerce) Row(ctx context.Context, index int) ([]string, error) {
	xpath := fmt.Sprintf(icListingRowXPath, index)
	return p.drv.RowCells(ctx, xpath, p.drv.cfg.Timeouts.Short)
}

// OpenDocument loads the detail page for a reference number. A server-error
// marker in the response means the document is unprocessable.
func (p *Intercommerce) OpenDocument(ctx context.Context, reference string) error {
	if err := p.drv.Navigate(ctx, p.cfg.BaseURL+icDetailPath+reference); err != nil {
		return err
	}

	src, err := p.drv.PageSource(ctx)
	if err != nil {
		return err
	}
	if strings.Contains(src, icServerErrorMarker) {
		return fmt.Errorf("%w: %s detail page returned a server error", scrape.ErrInvalidDocument, reference)
	}
	return nil
}

// ReleaseStatus scrapes the document's release table and classifies it.
// A document without a release table is invalid for this pass.
func (p *Intercommerce) ReleaseStatus(ctx context.Context) (string, error) {
	cells, err := p.drv.TableCells(ctx, icReleaseTableXPath, p.drv.cfg.Timeouts.Short)
	if err != nil {
		if errors.Is(err, scrape.ErrLoadingFailed) {
			return "", fmt.Errorf("%w: document has no release table", scrape.ErrInvalidDocument)
		}
		return "", err
	}
	return classifyRelease(cells), nil
}

// classifyRelease is a membership test over the release-table cells.
func classifyRelease(cells []string) string {
	seen := make(map[string]bool, len(cells))
	for _, cell := range cells {
		seen[strings.TrimSpace(cell)] = true
	}
	switch {
	case seen[markReleased] || seen[markTransferred]:
		return model.StatusReleased
	case seen[markApproved] || seen[markAutoInspected]:
		return model.StatusApproved
	default:
		return ""
	}
}

// Detail reads the invoice number, container type, and quantity from the
// open document page.
func (p *Intercommerce) Detail(ctx context.Context) (model.Document, error) {
	tiers := p.drv.cfg.Timeouts

	invoice, err := p.drv.Value(ctx, icInvoiceField, tiers.Short)
	if err != nil {
		return model.Document{}, detailErr(err)
	}
	containerType, err := p.drv.Value(ctx, icContainerField, tiers.Short)
	if err != nil {
		return model.Document{}, detailErr(err)
	}
	quantity, err := p.drv.Value(ctx, icQuantityField, tiers.Short)
	if err != nil {
		return model.Document{}, detailErr(err)
	}

	return model.NewDocument(invoice, containerType, quantity), nil
}

func detailErr(err error) error {
	if errors.Is(err, scrape.ErrLoadingFailed) {
		return fmt.Errorf("%w: document detail fields missing", scrape.ErrInvalidDocument)
	}
	return err
}

// DownloadPDF fetches the declaration PDF for a reference and waits for the
// download to land in the data directory, returning the local path.
func (p *Intercommerce) DownloadPDF(ctx context.Context, reference string) (string, error) {
	if err := p.drv.Navigate(ctx, p.cfg.BaseURL+icPDFPath+reference); err != nil {
		return "", err
	}

	src, err := p.drv.PageSource(ctx)
	if err == nil && strings.Contains(src, icServerErrorMarker) {
		return "", fmt.Errorf("%w: %s declaration PDF returned a server error", scrape.ErrInvalidDocument, reference)
	}

	tiers := p.drv.cfg.Timeouts
	path, err := p.files.WaitForDownload(ctx, icPDFDownloadName, tiers.Download, tiers.DownloadPoll)
	if errors.Is(err, scrape.ErrLoadingFailed) {
		return "", fmt.Errorf("%w: declaration PDF for %s never finished downloading", scrape.ErrInvalidDocument, reference)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}
