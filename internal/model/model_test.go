package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iantato/Ecophil-Scraper-API/internal/scrape"
)

func TestNormalizeReference(t *testing.T) {
	t.Parallel()

	require.Equal(t, NormalizeReference("AB1234"), NormalizeReference("AB-12-34 "))
	require.Equal(t, "AB1234", NormalizeReference(" AB-12-34"))
	require.Equal(t, "", NormalizeReference("  "))
}

func TestParseRow(t *testing.T) {
	t.Parallel()

	cells := []string{
		"WP-2024-0042", "AG", "PEZA-EXP", "ACME PHILIPPINES INC.",
		"WB-9981", "1", "DOC-5542", "01/05/2024 09:30:00 AM",
	}

	row, err := ParseRow(cells)
	require.NoError(t, err)
	require.Equal(t, "WP20240042", row.ReferenceNumber)
	require.Equal(t, "AG", row.Status)
	require.Equal(t, "DOC-5542", row.DocumentNumber)
	require.Equal(t, time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC), row.CreationDate)
}

func TestParseRowCellCountMismatch(t *testing.T) {
	t.Parallel()

	_, err := ParseRow([]string{"WP-2024-0042", "AG"})
	require.ErrorIs(t, err, scrape.ErrMalformedRow)
}

func TestParseRowBadDate(t *testing.T) {
	t.Parallel()

	cells := []string{
		"WP-2024-0042", "AG", "PEZA-EXP", "ACME PHILIPPINES INC.",
		"WB-9981", "1", "DOC-5542", "2024-01-05T09:30:00Z",
	}
	_, err := ParseRow(cells)
	require.ErrorIs(t, err, scrape.ErrMalformedRow)
}

func TestNewDatesOneWeekWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	dates, err := NewDates(start, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), now)
	require.NoError(t, err)
	require.Equal(t, "Jan 01 2024 - Jan 08 2024", dates.SaveDir())

	_, err = NewDates(start, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), now)
	require.Error(t, err)
}

func TestNewDatesRejectsFuture(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	_, err := NewDates(
		time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
		now,
	)
	require.Error(t, err)
}

func TestNewDatesRejectsReversedWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewDates(
		time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		now,
	)
	require.Error(t, err)
}

func TestDatesContains(t *testing.T) {
	t.Parallel()

	dates := Dates{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
	}

	require.True(t, dates.Contains(time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)))
	require.True(t, dates.Contains(time.Date(2024, 1, 8, 0, 0, 1, 0, time.UTC)))
	require.False(t, dates.Contains(time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC)))
	require.False(t, dates.Contains(time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)))
}

func TestNewDocumentQuantityLabel(t *testing.T) {
	t.Parallel()

	lcl := NewDocument("INV-1", "LCL", "12")
	require.Equal(t, "12 PK - PACKAGE", lcl.Quantity)

	fcl := NewDocument("INV-2", "FCL", "1")
	require.Equal(t, "1", fcl.Quantity)
}
