// Package portal implements the page-automation clients for the two
// third-party portals using chromedp and headless Chrome.
package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/iantato/Ecophil-Scraper-API/internal/scrape"
)

// Timeouts are the named wait tiers every page interaction uses.
type Timeouts struct {
	Short        time.Duration
	Medium       time.Duration
	Long         time.Duration
	Download     time.Duration
	DownloadPoll time.Duration
}

// DriverConfig controls the browser session.
type DriverConfig struct {
	DownloadDir string
	Headless    bool
	Timeouts    Timeouts
}

// Driver wraps one headless Chrome session. Acquire with NewDriver, release
// with Close; callers wrap every crawl/reconciliation session in the pair so
// the browser is torn down on all exit paths.
type Driver struct {
	cfg         DriverConfig
	allocCancel context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc
	logger      *zap.Logger
}

// NewDriver launches the browser and points downloads at the data directory.
func NewDriver(cfg DriverConfig, logger *zap.Logger) (*Driver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	d := &Driver{
		cfg:         cfg,
		allocCancel: allocCancel,
		tab:         tab,
		tabCancel:   tabCancel,
		logger:      logger,
	}

	if cfg.DownloadDir != "" {
		err := d.run(context.Background(), cfg.Timeouts.Medium,
			browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
				WithDownloadPath(cfg.DownloadDir),
		)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("configure downloads: %w", err)
		}
	}

	return d, nil
}

// Close tears down the tab and the browser process.
func (d *Driver) Close() {
	d.tabCancel()
	d.allocCancel()
}

// run executes chromedp actions against the session tab under a wait budget.
// A blown budget surfaces as scrape.ErrLoadingFailed.
func (d *Driver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(d.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", scrape.ErrLoadingFailed, err)
		}
		return err
	}
	return nil
}

// by picks the chromedp query mode for a selector: XPath expressions start
// with a slash, everything else is CSS.
func by(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "/") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// Navigate loads a URL, waiting up to the medium tier for the page.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, d.cfg.Timeouts.Medium, chromedp.Navigate(url))
}

// WaitVisible blocks until the element is visible or the budget elapses.
func (d *Driver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return d.run(ctx, timeout, chromedp.WaitVisible(selector, by(selector)))
}

// SendKeys types a value into a form field.
func (d *Driver) SendKeys(ctx context.Context, selector, value string, timeout time.Duration) error {
	return d.run(ctx, timeout, chromedp.SendKeys(selector, value, by(selector)))
}

// Submit submits the form owning the selector.
func (d *Driver) Submit(ctx context.Context, selector string, timeout time.Duration) error {
	return d.run(ctx, timeout, chromedp.Submit(selector, by(selector)))
}

// Click waits for the element and clicks it.
func (d *Driver) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return d.run(ctx, timeout, chromedp.Click(selector, by(selector)))
}

// Value reads the current value of a form field.
func (d *Driver) Value(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	var value string
	if err := d.run(ctx, timeout, chromedp.Value(selector, &value, by(selector))); err != nil {
		return "", err
	}
	return value, nil
}

// SetFieldValue force-writes a field by id, stripping any readonly
// attribute first. The vehicle-booking portal marks its date inputs
// readonly and drives them from a calendar widget.
func (d *Driver) SetFieldValue(ctx context.Context, id, value string, timeout time.Duration) error {
	js := fmt.Sprintf(`(() => {
		const el = document.getElementById(%q);
		if (!el) { return false; }
		el.removeAttribute("readonly");
		el.value = %q;
		return true;
	})()`, id, value)

	var ok bool
	if err := d.run(ctx, timeout, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: field %s not present", scrape.ErrLoadingFailed, id)
	}
	return nil
}

// RowCells waits for the table row at the XPath and returns the text of its
// direct children, one string per cell.
func (d *Driver) RowCells(ctx context.Context, xpath string, timeout time.Duration) ([]string, error) {
	if err := d.WaitVisible(ctx, xpath, timeout); err != nil {
		return nil, err
	}

	js := fmt.Sprintf(`(() => {
		const node = document.evaluate(%q, document, null,
			XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		if (!node) { return []; }
		return Array.from(node.children).map(c => c.innerText);
	})()`, xpath)

	var cells []string
	if err := d.run(ctx, timeout, chromedp.Evaluate(js, &cells)); err != nil {
		return nil, err
	}
	return cells, nil
}

// TableCells waits for the node at the XPath and returns the text of every
// td cell underneath it.
func (d *Driver) TableCells(ctx context.Context, xpath string, timeout time.Duration) ([]string, error) {
	if err := d.WaitVisible(ctx, xpath, timeout); err != nil {
		return nil, err
	}

	js := fmt.Sprintf(`(() => {
		const node = document.evaluate(%q, document, null,
			XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		if (!node) { return []; }
		return Array.from(node.querySelectorAll("td")).map(c => c.innerText);
	})()`, xpath)

	var cells []string
	if err := d.run(ctx, timeout, chromedp.Evaluate(js, &cells)); err != nil {
		return nil, err
	}
	return cells, nil
}

// PageSource returns the rendered document HTML.
func (d *Driver) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, d.cfg.Timeouts.Short, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}
