package crawl

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iantato/Ecophil-Scraper-API/internal/cache"
	"github.com/iantato/Ecophil-Scraper-API/internal/model"
	"github.com/iantato/Ecophil-Scraper-API/internal/scrape"
)

// fakeLister serves pages of prebuilt cell rows, newest-first. Pages are
// addressed by offset/pageSize.
type fakeLister struct {
	pages     [][][]string
	openErr   error
	rowsRead  int
	pagesOpen int
}

func (f *fakeLister) OpenPage(_ context.Context, offset int) error {
	if f.openErr != nil {
		return f.openErr
	}
	if offset/pageSize >= len(f.pages) {
		return fmt.Errorf("%w: no page at offset %d", scrape.ErrLoadingFailed, offset)
	}
	f.pagesOpen++
	return nil
}

func (f *fakeLister) Row(_ context.Context, index int) ([]string, error) {
	page := f.pages[f.pagesOpen-1]
	f.rowsRead++
	return page[index-firstRowIndex], nil
}

func listingCells(ref, status, created string) []string {
	return []string{ref, status, "PEZA-EXP", "ACME PHILIPPINES INC.", "WB-9981", "1", "DOC-5542", created}
}

func testWindow(t *testing.T) model.Dates {
	t.Helper()
	dates, err := model.NewDates(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return dates
}

func newSink(t *testing.T) *cache.Dir {
	t.Helper()
	return cache.NewStore(t.TempDir(), zap.NewNop()).Dir("Jan 01 2024 - Jan 08 2024")
}

func TestControllerStopsAtWindowStart(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{pages: [][][]string{
		{
			listingCells("WP-2024-0010", "AG", "01/10/2024 08:00:00 AM"), // after end: reject
			listingCells("WP-2024-0009", "AG", "01/09/2024 08:00:00 AM"), // after end: reject
			listingCells("WP-2024-0008", "AG", "01/08/2024 08:00:00 AM"),
			listingCells("WP-2024-0007", "AG", "01/07/2024 08:00:00 AM"),
			listingCells("WP-2024-0006", "AG", "01/06/2024 08:00:00 AM"),
			listingCells("WP-2024-0005", "XX", "01/06/2024 07:00:00 AM"), // wrong status: reject
			listingCells("WP-2024-0004", "AG", "01/05/2024 08:00:00 AM"),
			listingCells("WP-2024-0003", "AG", "01/04/2024 08:00:00 AM"),
			listingCells("WP-2024-0002", "AG", "01/03/2024 08:00:00 AM"),
			listingCells("WP-2024-0001", "AG", "01/02/2024 08:00:00 AM"),
		},
		{
			listingCells("WP-2023-0999", "AG", "01/01/2024 08:00:00 AM"),
			listingCells("WP-2023-0998", "AG", "12/31/2023 08:00:00 AM"), // before start: stop
			listingCells("WP-2023-0997", "AG", "12/30/2023 08:00:00 AM"), // never visited
			listingCells("WP-2023-0996", "AG", "12/29/2023 08:00:00 AM"),
			listingCells("WP-2023-0995", "AG", "12/28/2023 08:00:00 AM"),
			listingCells("WP-2023-0994", "AG", "12/27/2023 08:00:00 AM"),
			listingCells("WP-2023-0993", "AG", "12/26/2023 08:00:00 AM"),
			listingCells("WP-2023-0992", "AG", "12/25/2023 08:00:00 AM"),
			listingCells("WP-2023-0991", "AG", "12/24/2023 08:00:00 AM"),
			listingCells("WP-2023-0990", "AG", "12/23/2023 08:00:00 AM"),
		},
	}}
	sink := newSink(t)

	ctrl := NewController(lister, sink, testWindow(t), "main", zap.NewNop())
	require.NoError(t, ctrl.Run(context.Background()))

	refs, err := sink.ReferenceNumbers()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		"WP20240008", "WP20240007", "WP20240006", "WP20240004",
		"WP20240003", "WP20240002", "WP20240001", "WP20230999",
	}, refs)

	// The walk stops exactly at the boundary row: 10 rows on page one,
	// two more on page two.
	require.Equal(t, 12, lister.rowsRead)
	require.Equal(t, 2, lister.pagesOpen)
}

func TestControllerNeverStoresPreWindowRows(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{pages: [][][]string{
		{
			listingCells("WP-2024-0002", "AG", "01/05/2024 08:00:00 AM"),
			listingCells("WP-2023-0001", "AG", "12/30/2023 08:00:00 AM"), // stop
			listingCells("WP-2023-0000", "AG", "12/29/2023 08:00:00 AM"),
			listingCells("WP-2023-0000", "AG", "12/29/2023 08:00:00 AM"),
			listingCells("WP-2023-0000", "AG", "12/29/2023 08:00:00 AM"),
			listingCells("WP-2023-0000", "AG", "12/29/2023 08:00:00 AM"),
			listingCells("WP-2023-0000", "AG", "12/29/2023 08:00:00 AM"),
			listingCells("WP-2023-0000", "AG", "12/29/2023 08:00:00 AM"),
			listingCells("WP-2023-0000", "AG", "12/29/2023 08:00:00 AM"),
			listingCells("WP-2023-0000", "AG", "12/29/2023 08:00:00 AM"),
		},
	}}
	sink := newSink(t)

	ctrl := NewController(lister, sink, testWindow(t), "main", zap.NewNop())
	require.NoError(t, ctrl.Run(context.Background()))

	refs, err := sink.ReferenceNumbers()
	require.NoError(t, err)
	require.Equal(t, []string{"WP20240002"}, refs)
}

func TestControllerSoftSkipsDuplicates(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{pages: [][][]string{
		{
			listingCells("WP-2024-0001", "AG", "01/05/2024 08:00:00 AM"),
			listingCells("WP20240001", "AG", "01/05/2024 07:00:00 AM"), // same normalized key
			listingCells("WP-2024-0002", "AG", "01/04/2024 08:00:00 AM"),
			listingCells("WP-2023-0999", "AG", "12/30/2023 08:00:00 AM"), // stop
			listingCells("WP-2023-0998", "AG", "12/29/2023 08:00:00 AM"),
			listingCells("WP-2023-0997", "AG", "12/28/2023 08:00:00 AM"),
			listingCells("WP-2023-0996", "AG", "12/27/2023 08:00:00 AM"),
			listingCells("WP-2023-0995", "AG", "12/26/2023 08:00:00 AM"),
			listingCells("WP-2023-0994", "AG", "12/25/2023 08:00:00 AM"),
			listingCells("WP-2023-0993", "AG", "12/24/2023 08:00:00 AM"),
		},
	}}
	sink := newSink(t)

	ctrl := NewController(lister, sink, testWindow(t), "main", zap.NewNop())
	require.NoError(t, ctrl.Run(context.Background()))

	refs, err := sink.ReferenceNumbers()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"WP20240001", "WP20240002"}, refs)
}

func TestControllerSkipsMalformedRows(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{pages: [][][]string{
		{
			listingCells("WP-2024-0001", "AG", "01/05/2024 08:00:00 AM"),
			{"garbage"},
			listingCells("WP-2024-0002", "AG", "01/04/2024 08:00:00 AM"),
			listingCells("WP-2023-0999", "AG", "12/30/2023 08:00:00 AM"), // stop
			listingCells("WP-2023-0998", "AG", "12/29/2023 08:00:00 AM"),
			listingCells("WP-2023-0997", "AG", "12/28/2023 08:00:00 AM"),
			listingCells("WP-2023-0996", "AG", "12/27/2023 08:00:00 AM"),
			listingCells("WP-2023-0995", "AG", "12/26/2023 08:00:00 AM"),
			listingCells("WP-2023-0994", "AG", "12/25/2023 08:00:00 AM"),
			listingCells("WP-2023-0993", "AG", "12/24/2023 08:00:00 AM"),
		},
	}}
	sink := newSink(t)

	ctrl := NewController(lister, sink, testWindow(t), "main", zap.NewNop())
	require.NoError(t, ctrl.Run(context.Background()))

	refs, err := sink.ReferenceNumbers()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"WP20240001", "WP20240002"}, refs)
}

func TestControllerPageLoadFailureIsFatal(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{openErr: fmt.Errorf("%w: listing frame", scrape.ErrLoadingFailed)}
	sink := newSink(t)

	ctrl := NewController(lister, sink, testWindow(t), "main", zap.NewNop())
	err := ctrl.Run(context.Background())
	require.ErrorIs(t, err, scrape.ErrLoadingFailed)

	refs, refErr := sink.ReferenceNumbers()
	require.NoError(t, refErr)
	require.Empty(t, refs)
}
