// Package crawl walks the paginated declarations listing and fills the row
// cache for one crawl window.
package crawl

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iantato/Ecophil-Scraper-API/internal/cache"
	"github.com/iantato/Ecophil-Scraper-API/internal/metrics"
	"github.com/iantato/Ecophil-Scraper-API/internal/model"
	"github.com/iantato/Ecophil-Scraper-API/internal/scrape"
)

// Listing geometry: every page shows rows at in-page indexes
// [firstRowIndex, lastRowIndex] and the next page is requested by bumping
// the offset by pageSize.
const (
	firstRowIndex = 15
	lastRowIndex  = 24
	pageSize      = 10
)

// acceptedStatus is the declaration status the crawl collects.
const acceptedStatus = "AG"

// State is the controller's position in its page walk.
type State int

const (
	// StateScanning walks the fixed row-index range of the current page.
	StateScanning State = iota
	// StateAdvancing requests the next page via an offset increment.
	StateAdvancing
	// StateDone is terminal: a row preceding the window start was seen.
	StateDone
)

// Lister is the paginated remote listing the controller walks.
type Lister interface {
	// OpenPage loads the listing at a pagination offset.
	OpenPage(ctx context.Context, offset int) error
	// Row returns the cell texts of the row at an in-page index.
	Row(ctx context.Context, index int) ([]string, error)
}

// RowSink receives accepted rows. Satisfied by *cache.Dir.
type RowSink interface {
	AppendRow(row model.Row) error
	RemoveRow(reference string) error
}

var _ RowSink = (*cache.Dir)(nil)

// Controller crawls one branch listing for one date window. The listing is
// ordered newest-first, so the walk stops at the first row whose creation
// date precedes the window start.
type Controller struct {
	lister Lister
	sink   RowSink
	dates  model.Dates
	branch string
	logger *zap.Logger
}

// NewController builds a Controller for one crawl session.
func NewController(lister Lister, sink RowSink, dates model.Dates, branch string, logger *zap.Logger) *Controller {
	return &Controller{
		lister: lister,
		sink:   sink,
		dates:  dates,
		branch: branch,
		logger: logger,
	}
}

// Run walks the listing until the window is exhausted. A page that fails to
// load within its wait budget aborts the whole crawl.
func (c *Controller) Run(ctx context.Context) error {
	offset := 0
	state := StateScanning

	for state != StateDone {
		if err := c.lister.OpenPage(ctx, offset); err != nil {
			return fmt.Errorf("open listing page at offset %d: %w", offset, err)
		}
		metrics.ObservePageVisited(c.branch)

		next, err := c.scanPage(ctx)
		if err != nil {
			return err
		}
		state = next

		if state == StateAdvancing {
			offset += pageSize
			state = StateScanning
			c.logger.Debug("advancing listing", zap.Int("offset", offset))
		}
	}

	c.logger.Info("finished crawling the listing",
		zap.String("branch", c.branch),
		zap.Int("final_offset", offset),
	)
	return nil
}

// scanPage classifies every row on the current page. It returns StateDone
// when a row precedes the window start and StateAdvancing after a full page
// without one.
func (c *Controller) scanPage(ctx context.Context) (State, error) {
	for index := firstRowIndex; index <= lastRowIndex; index++ {
		cells, err := c.lister.Row(ctx, index)
		if err != nil {
			return StateDone, fmt.Errorf("read listing row %d: %w", index, err)
		}

		row, err := model.ParseRow(cells)
		if err != nil {
			// One malformed row never aborts the page.
			metrics.ObserveRowRejected(metrics.RejectMalformed)
			c.logger.Warn("skipping malformed listing row",
				zap.Int("index", index),
				zap.Error(err),
			)
			continue
		}

		switch c.classify(row) {
		case verdictStop:
			// Newest-first ordering: nothing below can be in-window.
			// Guard against a stray entry from an earlier partial run.
			if err := c.sink.RemoveRow(row.ReferenceNumber); err != nil {
				return StateDone, err
			}
			c.logger.Info("reached the window start, stopping",
				zap.String("reference_number", row.ReferenceNumber),
				zap.Time("creation_date", row.CreationDate),
			)
			return StateDone, nil

		case verdictReject:
			metrics.ObserveRowRejected(rejectReason(c.dates, row))
			c.logger.Debug("rejecting listing row",
				zap.String("reference_number", row.ReferenceNumber),
				zap.String("status", row.Status),
				zap.Time("creation_date", row.CreationDate),
			)

		case verdictAccept:
			if err := c.sink.AppendRow(row); err != nil {
				if errors.Is(err, scrape.ErrAlreadyCached) {
					metrics.ObserveRowRejected(metrics.RejectDuplicate)
					c.logger.Warn("row already cached, skipping",
						zap.String("reference_number", row.ReferenceNumber),
					)
					continue
				}
				return StateDone, fmt.Errorf("cache row %s: %w", row.ReferenceNumber, err)
			}
			metrics.ObserveRowCached(c.branch)
		}
	}

	return StateAdvancing, nil
}

type verdict int

const (
	verdictAccept verdict = iota
	verdictReject
	verdictStop
)

// classify applies the window and status predicates to one row. Rows before
// the window start terminate the walk; rows after the window end or with a
// foreign status are skipped and never stored.
func (c *Controller) classify(row model.Row) verdict {
	day := model.Day(row.CreationDate)
	switch {
	case day.Before(c.dates.Start):
		return verdictStop
	case day.After(c.dates.End) || row.Status != acceptedStatus:
		return verdictReject
	default:
		return verdictAccept
	}
}

func rejectReason(dates model.Dates, row model.Row) string {
	if !dates.Contains(row.CreationDate) {
		return metrics.RejectOutOfWindow
	}
	return metrics.RejectStatus
}
