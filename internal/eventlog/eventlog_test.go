package eventlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iantato/Ecophil-Scraper-API/internal/scrape"
)

func writeExport(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestArrivalDatesFiltersContainerAndEvent(t *testing.T) {
	t.Parallel()

	path := writeExport(t, "ati.csv",
		"Container,Point Event,Event Date\n"+
			"TCNU1234567,ARRIVE,03-Jan-24 14:05\n"+
			"TCNU1234567,DEPART,05-Jan-24 08:00\n"+
			"MSKU7654321,ARRIVE,04-Jan-24 10:00\n"+
			"TCNU1234567,ARRIVE,02-Jan-24 09:30\n")

	dates, err := NewLookup(path).ArrivalDates("TCNU1234567")
	require.NoError(t, err)
	require.Equal(t, []time.Time{
		time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 14, 5, 0, 0, time.UTC),
	}, dates)
}

func TestArrivalDatesMissingContainer(t *testing.T) {
	t.Parallel()

	path := writeExport(t, "ati.csv",
		"Container,Point Event,Event Date\n"+
			"MSKU7654321,ARRIVE,04-Jan-24 10:00\n")

	_, err := NewLookup(path).ArrivalDates("TCNU1234567")
	require.ErrorIs(t, err, scrape.ErrNotFound)
}

func TestArrivalDatesSearchesExportsInOrder(t *testing.T) {
	t.Parallel()

	ati := writeExport(t, "ati.csv",
		"Container,Point Event,Event Date\n"+
			"MSKU7654321,ARRIVE,04-Jan-24 10:00\n")
	mictsi := writeExport(t, "mictsi.csv",
		"Container,Point Event,Event Date\n"+
			"TCNU1234567,ARRIVE,05-Jan-24 16:45\n")

	dates, err := NewLookup(ati, mictsi).ArrivalDates("TCNU1234567")
	require.NoError(t, err)
	require.Len(t, dates, 1)
	require.Equal(t, time.Date(2024, 1, 5, 16, 45, 0, 0, time.UTC), dates[0])
}

func TestArrivalDatesMissingExportFile(t *testing.T) {
	t.Parallel()

	_, err := NewLookup(filepath.Join(t.TempDir(), "absent.csv")).ArrivalDates("TCNU1234567")
	require.Error(t, err)
}
