// Package cache persists scraped listing rows per save directory as a
// cache/rows.csv file keyed by normalized reference number.
//
// Every mutation is a load-modify-store of the whole file. The design
// assumes exactly one writer per save directory at a time; callers must
// serialize access externally (one crawl or reconciliation session per
// directory, run to completion). No file locking is layered on.
package cache

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iantato/Ecophil-Scraper-API/internal/model"
	"github.com/iantato/Ecophil-Scraper-API/internal/scrape"
)

const (
	cacheSubdir = "cache"
	rowsFile    = "rows.csv"

	// CSV cannot carry a date type, so creation dates are stored in this
	// layout and re-parsed to a calendar date on every load.
	storedDateLayout = time.DateOnly
)

var header = []string{
	"reference_number",
	"status",
	"document_declaration_type",
	"consignee",
	"waybill",
	"number_of_containers",
	"document_number",
	"creation_date",
	"scraped",
}

// Record is one cached row plus its reconciliation flag. Scraped flips to
// true once the reference has been checked by the reconciliation engine.
type Record struct {
	Row     model.Row
	Scraped bool
}

// Store owns the row caches under one documents directory.
type Store struct {
	root   string
	logger *zap.Logger
}

// NewStore creates a Store rooted at the documents directory.
func NewStore(root string, logger *zap.Logger) *Store {
	return &Store{root: root, logger: logger}
}

// Dir scopes the store to one save directory.
func (s *Store) Dir(saveDir string) *Dir {
	return &Dir{store: s, name: saveDir}
}

// Dir is the per-save-directory namespace of the row cache.
type Dir struct {
	store *Store
	name  string
}

func (d *Dir) rowsPath() string {
	return filepath.Join(d.store.root, d.name, cacheSubdir, rowsFile)
}

// AppendRow caches a row. If the backing file does not exist yet it is
// created containing only this row. A normalized-key duplicate fails with
// scrape.ErrAlreadyCached without touching the file.
func (d *Dir) AppendRow(row model.Row) error {
	records, _, err := d.load()
	if err != nil {
		return err
	}

	key := model.NormalizeReference(row.ReferenceNumber)
	for _, rec := range records {
		if rec.Row.ReferenceNumber == key {
			return fmt.Errorf("%w: %s", scrape.ErrAlreadyCached, key)
		}
	}

	records = append(records, Record{Row: row})
	if err := d.write(records); err != nil {
		return err
	}

	d.store.logger.Info("row cached",
		zap.String("reference_number", key),
		zap.String("save_dir", d.name),
	)
	return nil
}

// RemoveRow deletes the row with the given reference number. It is
// idempotent: a missing store or a missing key is a no-op and creates
// nothing.
func (d *Dir) RemoveRow(reference string) error {
	records, exists, err := d.load()
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	key := model.NormalizeReference(reference)
	kept := records[:0]
	for _, rec := range records {
		if rec.Row.ReferenceNumber != key {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(records) {
		return nil
	}

	if err := d.write(kept); err != nil {
		return err
	}

	d.store.logger.Info("row removed",
		zap.String("reference_number", key),
		zap.String("save_dir", d.name),
	)
	return nil
}

// ReferenceNumbers lists all cached reference numbers. An absent store
// yields an empty result.
func (d *Dir) ReferenceNumbers() ([]string, error) {
	records, _, err := d.load()
	if err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(records))
	for _, rec := range records {
		refs = append(refs, rec.Row.ReferenceNumber)
	}
	return refs, nil
}

// Record looks up one cached row by reference number. Unlike the bulk
// reads, a point lookup of a missing key fails with scrape.ErrNotFound.
func (d *Dir) Record(reference string) (Record, error) {
	records, _, err := d.load()
	if err != nil {
		return Record{}, err
	}

	key := model.NormalizeReference(reference)
	for _, rec := range records {
		if rec.Row.ReferenceNumber == key {
			return rec, nil
		}
	}
	return Record{}, fmt.Errorf("%w: reference %s", scrape.ErrNotFound, key)
}

// IsChecked reports whether the reference has already been reconciled.
// A missing key is scrape.ErrNotFound, distinct from false.
func (d *Dir) IsChecked(reference string) (bool, error) {
	rec, err := d.Record(reference)
	if err != nil {
		return false, err
	}
	return rec.Scraped, nil
}

// MarkChecked flips the scraped flag for the reference so it is skipped by
// later reconciliation passes.
func (d *Dir) MarkChecked(reference string) error {
	records, exists, err := d.load()
	if err != nil {
		return err
	}

	key := model.NormalizeReference(reference)
	if exists {
		for i := range records {
			if records[i].Row.ReferenceNumber == key {
				records[i].Scraped = true
				return d.write(records)
			}
		}
	}
	return fmt.Errorf("%w: reference %s", scrape.ErrNotFound, key)
}

// Records returns all cached records, satisfying RowSource. An absent
// store yields an empty result.
func (d *Dir) Records() ([]Record, error) {
	records, _, err := d.load()
	return records, err
}

func (d *Dir) load() ([]Record, bool, error) {
	f, err := os.Open(d.rowsPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open row cache: %w", err)
	}
	defer f.Close()

	lines, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, true, fmt.Errorf("read row cache: %w", err)
	}
	if len(lines) == 0 {
		return nil, true, nil
	}

	records := make([]Record, 0, len(lines)-1)
	for _, fields := range lines[1:] {
		rec, err := decode(fields)
		if err != nil {
			return nil, true, fmt.Errorf("decode row cache %s: %w", d.rowsPath(), err)
		}
		records = append(records, rec)
	}
	return records, true, nil
}

func (d *Dir) write(records []Record) error {
	path := d.rowsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create row cache: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write row cache header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(encode(rec)); err != nil {
			f.Close()
			return fmt.Errorf("write row cache record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush row cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close row cache: %w", err)
	}
	return nil
}

func encode(rec Record) []string {
	return []string{
		rec.Row.ReferenceNumber,
		rec.Row.Status,
		rec.Row.DocumentDeclarationType,
		rec.Row.Consignee,
		rec.Row.Waybill,
		rec.Row.NumberOfContainers,
		rec.Row.DocumentNumber,
		rec.Row.CreationDate.Format(storedDateLayout),
		strconv.FormatBool(rec.Scraped),
	}
}

func decode(fields []string) (Record, error) {
	if len(fields) != len(header) {
		return Record{}, fmt.Errorf("expected %d columns, got %d", len(header), len(fields))
	}

	created, err := time.Parse(storedDateLayout, fields[7])
	if err != nil {
		return Record{}, fmt.Errorf("creation date %q: %w", fields[7], err)
	}
	scraped, err := strconv.ParseBool(fields[8])
	if err != nil {
		return Record{}, fmt.Errorf("scraped flag %q: %w", fields[8], err)
	}

	return Record{
		Row: model.Row{
			ReferenceNumber:         fields[0],
			Status:                  fields[1],
			DocumentDeclarationType: fields[2],
			Consignee:               fields[3],
			Waybill:                 fields[4],
			NumberOfContainers:      fields[5],
			DocumentNumber:          fields[6],
			CreationDate:            created,
		},
		Scraped: scraped,
	}, nil
}
