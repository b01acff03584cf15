// Package reconcile joins cached listing rows with document details,
// container numbers, and terminal arrival events to compute a release
// status per shipment.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iantato/Ecophil-Scraper-API/internal/cache"
	"github.com/iantato/Ecophil-Scraper-API/internal/clock"
	"github.com/iantato/Ecophil-Scraper-API/internal/eventlog"
	"github.com/iantato/Ecophil-Scraper-API/internal/metrics"
	"github.com/iantato/Ecophil-Scraper-API/internal/model"
	"github.com/iantato/Ecophil-Scraper-API/internal/pdfextract"
	"github.com/iantato/Ecophil-Scraper-API/internal/portal"
	"github.com/iantato/Ecophil-Scraper-API/internal/scrape"
)

// DocumentSource serves document pages for cached references.
type DocumentSource interface {
	// OpenDocument loads the detail page for a reference.
	OpenDocument(ctx context.Context, reference string) error
	// ReleaseStatus classifies the open document's release table.
	ReleaseStatus(ctx context.Context) (string, error)
	// Detail reads the open document's invoice, container type, and quantity.
	Detail(ctx context.Context) (model.Document, error)
	// DownloadPDF fetches the declaration PDF, returning its local path.
	DownloadPDF(ctx context.Context, reference string) (string, error)
}

// ContainerExtractor mines container numbers out of downloaded PDFs.
type ContainerExtractor interface {
	ContainerNumber(path string) (string, error)
	Remove(path string) error
}

// ArrivalLookup resolves arrival timestamps for a container.
type ArrivalLookup interface {
	ArrivalDates(containerNumber string) ([]time.Time, error)
}

// RowCache is the slice of the row cache the engine needs: the pending
// records plus removal and check-marking.
type RowCache interface {
	cache.RowSource
	RemoveRow(reference string) error
	MarkChecked(reference string) error
}

var (
	_ DocumentSource     = (*portal.Intercommerce)(nil)
	_ ContainerExtractor = pdfextract.Extractor{}
	_ ArrivalLookup      = (*eventlog.Lookup)(nil)
	_ RowCache           = (*cache.Dir)(nil)
)

// Engine runs one reconciliation pass over a save directory's cached rows.
type Engine struct {
	rows     RowCache
	docs     DocumentSource
	pdf      ContainerExtractor
	arrivals ArrivalLookup
	clk      clock.Clock
	logger   *zap.Logger
}

// NewEngine wires a reconciliation pass.
func NewEngine(
	rows RowCache,
	docs DocumentSource,
	pdf ContainerExtractor,
	arrivals ArrivalLookup,
	clk clock.Clock,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		rows:     rows,
		docs:     docs,
		pdf:      pdf,
		arrivals: arrivals,
		clk:      clk,
		logger:   logger,
	}
}

// Run reconciles every cached reference not yet checked. An invalid
// document is logged, removed from the pending cache, and never aborts the
// batch; session-level failures unwind with the records finished so far.
func (e *Engine) Run(ctx context.Context) ([]model.ReleaseRecord, error) {
	records, err := e.rows.Records()
	if err != nil {
		return nil, err
	}

	var out []model.ReleaseRecord
	for _, rec := range records {
		ref := rec.Row.ReferenceNumber
		if rec.Scraped {
			e.logger.Debug("reference already checked", zap.String("reference_number", ref))
			continue
		}

		release, err := e.reconcile(ctx, rec)
		if errors.Is(err, scrape.ErrInvalidDocument) {
			metrics.ObserveInvalidDocument()
			e.logger.Warn("skipping invalid document",
				zap.String("reference_number", ref),
				zap.Error(err),
			)
			if rmErr := e.rows.RemoveRow(ref); rmErr != nil {
				return out, rmErr
			}
			continue
		}
		if err != nil {
			return out, fmt.Errorf("reconcile %s: %w", ref, err)
		}

		if err := e.rows.MarkChecked(ref); err != nil {
			return out, err
		}
		metrics.ObserveDocumentReconciled(release.ReleaseStatus)
		e.logger.Info("document reconciled",
			zap.String("reference_number", ref),
			zap.String("release_status", release.ReleaseStatus),
		)
		out = append(out, release)
	}

	return out, nil
}

func (e *Engine) reconcile(ctx context.Context, rec cache.Record) (model.ReleaseRecord, error) {
	ref := rec.Row.ReferenceNumber

	if err := e.docs.OpenDocument(ctx, ref); err != nil {
		return model.ReleaseRecord{}, err
	}

	status, err := e.docs.ReleaseStatus(ctx)
	if err != nil {
		return model.ReleaseRecord{}, err
	}

	doc, err := e.docs.Detail(ctx)
	if err != nil {
		return model.ReleaseRecord{}, err
	}

	release := model.ReleaseRecord{
		ReferenceNumber: ref,
		DocumentNumber:  rec.Row.DocumentNumber,
		InvoiceNumber:   doc.InvoiceNumber,
		ContainerType:   doc.ContainerType,
		Quantity:        doc.Quantity,
		CreationDate:    rec.Row.CreationDate,
		DocumentStatus:  status,
	}

	switch doc.ContainerType {
	case model.ContainerLCL:
		// No container-level events for loose cargo; the release table
		// is authoritative.
		release.ReleaseStatus = status

	case model.ContainerFCL:
		containerNumber, err := e.fetchContainerNumber(ctx, ref)
		if err != nil {
			return model.ReleaseRecord{}, err
		}
		release.ContainerNumber = containerNumber

		arrivals, err := e.arrivals.ArrivalDates(containerNumber)
		if err != nil {
			if errors.Is(err, scrape.ErrNotFound) {
				return model.ReleaseRecord{}, fmt.Errorf("%w: %v", scrape.ErrInvalidDocument, err)
			}
			return model.ReleaseRecord{}, err
		}
		release.ReleaseStatus = releaseFromArrivals(arrivals, e.clk.Now())

	default:
		return model.ReleaseRecord{}, fmt.Errorf("%w: unknown container type %q for %s",
			scrape.ErrInvalidDocument, doc.ContainerType, ref)
	}

	release.CheckedDate = e.clk.Now()
	return release, nil
}

func (e *Engine) fetchContainerNumber(ctx context.Context, ref string) (string, error) {
	path, err := e.docs.DownloadPDF(ctx, ref)
	if err != nil {
		return "", err
	}

	containerNumber, err := e.pdf.ContainerNumber(path)
	if err != nil {
		if errors.Is(err, scrape.ErrNotFound) {
			return "", fmt.Errorf("%w: %v", scrape.ErrInvalidDocument, err)
		}
		return "", err
	}

	if err := e.pdf.Remove(path); err != nil {
		e.logger.Warn("could not remove downloaded pdf",
			zap.String("path", path),
			zap.Error(err),
		)
	}
	return containerNumber, nil
}

// releaseFromArrivals marks the shipment released once any arrival event
// predates now.
func releaseFromArrivals(arrivals []time.Time, now time.Time) string {
	for _, at := range arrivals {
		if at.Before(now) {
			return model.StatusReleased
		}
	}
	return model.StatusPending
}
