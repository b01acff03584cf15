package cache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iantato/Ecophil-Scraper-API/internal/model"
	"github.com/iantato/Ecophil-Scraper-API/internal/scrape"
)

const testSaveDir = "Jan 01 2024 - Jan 08 2024"

func newTestDir(t *testing.T) *Dir {
	t.Helper()
	return NewStore(t.TempDir(), zap.NewNop()).Dir(testSaveDir)
}

func testRow(ref string, created time.Time) model.Row {
	return model.Row{
		ReferenceNumber:         model.NormalizeReference(ref),
		Status:                  "AG",
		DocumentDeclarationType: "PEZA-EXP",
		Consignee:               "ACME PHILIPPINES INC.",
		Waybill:                 "WB-9981",
		NumberOfContainers:      "1",
		DocumentNumber:          "DOC-5542",
		CreationDate:            created,
	}
}

func TestAppendRowDistinctKeys(t *testing.T) {
	t.Parallel()

	dir := newTestDir(t)
	created := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	refs := []string{"WP-2024-0001", "WP-2024-0002", "WP-2024-0003"}

	for _, ref := range refs {
		require.NoError(t, dir.AppendRow(testRow(ref, created)))
	}

	got, err := dir.ReferenceNumbers()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"WP20240001", "WP20240002", "WP20240003"}, got)
}

func TestAppendRowDuplicateLeavesStoreUnchanged(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir(), zap.NewNop())
	dir := store.Dir(testSaveDir)
	created := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, dir.AppendRow(testRow("WP-2024-0001", created)))
	before, err := os.ReadFile(dir.rowsPath())
	require.NoError(t, err)

	// Same key in a different raw spelling must still collide.
	err = dir.AppendRow(testRow("WP20240001", created.Add(24*time.Hour)))
	require.ErrorIs(t, err, scrape.ErrAlreadyCached)

	after, err := os.ReadFile(dir.rowsPath())
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestCreationDateRoundTrip(t *testing.T) {
	t.Parallel()

	dir := newTestDir(t)
	created := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)
	require.NoError(t, dir.AppendRow(testRow("WP-2024-0001", created)))

	rec, err := dir.Record("WP20240001")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), rec.Row.CreationDate)

	// A second append re-parses the stored dates; the loaded date must
	// survive the second rewrite as the same calendar date.
	require.NoError(t, dir.AppendRow(testRow("WP-2024-0002", created)))
	rec, err = dir.Record("WP20240001")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), rec.Row.CreationDate)
}

func TestRemoveRowAbsentStoreIsNoOp(t *testing.T) {
	t.Parallel()

	dir := newTestDir(t)
	require.NoError(t, dir.RemoveRow("WP20240001"))
	_, err := os.Stat(dir.rowsPath())
	require.True(t, os.IsNotExist(err), "remove on an absent store must not create a file")
}

func TestRemoveRowMissingKeyIsNoOp(t *testing.T) {
	t.Parallel()

	dir := newTestDir(t)
	created := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, dir.AppendRow(testRow("WP-2024-0001", created)))

	before, err := os.ReadFile(dir.rowsPath())
	require.NoError(t, err)

	require.NoError(t, dir.RemoveRow("WP20249999"))

	after, err := os.ReadFile(dir.rowsPath())
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRemoveRowDeletesKey(t *testing.T) {
	t.Parallel()

	dir := newTestDir(t)
	created := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, dir.AppendRow(testRow("WP-2024-0001", created)))
	require.NoError(t, dir.AppendRow(testRow("WP-2024-0002", created)))

	require.NoError(t, dir.RemoveRow("WP-2024-0001"))

	refs, err := dir.ReferenceNumbers()
	require.NoError(t, err)
	require.Equal(t, []string{"WP20240002"}, refs)
}

func TestReferenceNumbersAbsentStore(t *testing.T) {
	t.Parallel()

	dir := newTestDir(t)
	refs, err := dir.ReferenceNumbers()
	require.NoError(t, err)
	require.Empty(t, refs)
}

func TestIsCheckedMissingKey(t *testing.T) {
	t.Parallel()

	dir := newTestDir(t)
	_, err := dir.IsChecked("WP20240001")
	require.ErrorIs(t, err, scrape.ErrNotFound)

	created := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, dir.AppendRow(testRow("WP-2024-0001", created)))

	_, err = dir.IsChecked("WP20249999")
	require.ErrorIs(t, err, scrape.ErrNotFound)
}

func TestMarkChecked(t *testing.T) {
	t.Parallel()

	dir := newTestDir(t)
	created := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, dir.AppendRow(testRow("WP-2024-0001", created)))

	checked, err := dir.IsChecked("WP20240001")
	require.NoError(t, err)
	require.False(t, checked)

	require.NoError(t, dir.MarkChecked("WP20240001"))

	checked, err = dir.IsChecked("WP20240001")
	require.NoError(t, err)
	require.True(t, checked)

	require.ErrorIs(t, dir.MarkChecked("WP20249999"), scrape.ErrNotFound)
}

func TestRowSourceInterchangeability(t *testing.T) {
	t.Parallel()

	dir := newTestDir(t)
	created := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, dir.AppendRow(testRow("WP-2024-0001", created)))

	fileRecords, err := dir.Records()
	require.NoError(t, err)

	var src RowSource = Memory(fileRecords)
	memRecords, err := src.Records()
	require.NoError(t, err)
	require.Equal(t, fileRecords, memRecords)
}
