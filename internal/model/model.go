// Package model defines the core types of the release crawler: scraped
// listing rows, the crawl date window, document details, and the derived
// release record.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/iantato/Ecophil-Scraper-API/internal/scrape"
)

// creationDateLayout is the fixed timestamp format of the listing's
// creation-date column.
const creationDateLayout = "01/02/2006 03:04:05 PM"

// saveDirLayout formats one side of a save-directory name.
const saveDirLayout = "Jan 02 2006"

// maxWindow caps the crawl window length.
const maxWindow = 7 * 24 * time.Hour

// rowCellCount is the number of cells in one listing table row.
const rowCellCount = 8

// Container type codes as they appear in the document detail form.
const (
	ContainerFCL = "FCL"
	ContainerLCL = "LCL"
)

// Document statuses read from the release table, and the derived release
// statuses.
const (
	StatusReleased = "Released"
	StatusApproved = "Approved"
	StatusPending  = "Pending"
)

// lclQuantityLabel is appended to LCL quantities so the report carries the
// packaging unit.
const lclQuantityLabel = " PK - PACKAGE"

// Account holds portal credentials.
type Account struct {
	Username string
	Password string
}

// Dates is the crawl window. Both bounds are calendar dates in the past and
// the window never exceeds one week. Construct via NewDates; read-only
// afterwards.
type Dates struct {
	Start time.Time
	End   time.Time
}

// NewDates validates and builds a crawl window. now anchors the "in the
// past" check so callers can inject a clock.
func NewDates(start, end, now time.Time) (Dates, error) {
	start = Day(start)
	end = Day(end)
	today := Day(now)

	if !start.Before(today) || !end.Before(today) {
		return Dates{}, fmt.Errorf("crawl window must lie in the past")
	}
	if end.Before(start) {
		return Dates{}, fmt.Errorf("end date %s precedes start date %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	if end.Sub(start) > maxWindow {
		return Dates{}, fmt.Errorf("crawl window must not exceed 1 week")
	}
	return Dates{Start: start, End: end}, nil
}

// SaveDir returns the human-readable directory name for this window,
// e.g. "Jan 01 2024 - Jan 08 2024".
func (d Dates) SaveDir() string {
	return d.Start.Format(saveDirLayout) + " - " + d.End.Format(saveDirLayout)
}

// Contains reports whether the calendar date of t falls inside [Start, End].
func (d Dates) Contains(t time.Time) bool {
	day := Day(t)
	return !day.Before(d.Start) && !day.After(d.End)
}

// Day truncates a timestamp to its calendar date in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Row is one shipment-declaration record scraped from the listing table.
// Rows are immutable once parsed; reconciliation derives a separate
// ReleaseRecord instead of mutating them.
type Row struct {
	ReferenceNumber         string
	Status                  string
	DocumentDeclarationType string
	Consignee               string
	Waybill                 string
	NumberOfContainers      string
	DocumentNumber          string
	CreationDate            time.Time
}

// NormalizeReference strips separator characters and surrounding whitespace.
// The normalized form is the only form ever used as a cache or lookup key.
func NormalizeReference(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, "-", ""))
}

// ParseRow builds a Row from the cell texts of one listing table row.
// The reference number is normalized at parse time.
func ParseRow(cells []string) (Row, error) {
	if len(cells) != rowCellCount {
		return Row{}, fmt.Errorf("%w: expected %d cells, got %d",
			scrape.ErrMalformedRow, rowCellCount, len(cells))
	}

	created, err := time.Parse(creationDateLayout, strings.TrimSpace(cells[7]))
	if err != nil {
		return Row{}, fmt.Errorf("%w: creation date %q: %v",
			scrape.ErrMalformedRow, cells[7], err)
	}

	return Row{
		ReferenceNumber:         NormalizeReference(cells[0]),
		Status:                  strings.TrimSpace(cells[1]),
		DocumentDeclarationType: strings.TrimSpace(cells[2]),
		Consignee:               strings.TrimSpace(cells[3]),
		Waybill:                 strings.TrimSpace(cells[4]),
		NumberOfContainers:      strings.TrimSpace(cells[5]),
		DocumentNumber:          strings.TrimSpace(cells[6]),
		CreationDate:            created,
	}, nil
}

// Document is the per-shipment detail scraped from the document page.
type Document struct {
	InvoiceNumber string
	ContainerType string
	Quantity      string
}

// NewDocument normalizes the scraped detail fields. LCL quantities carry the
// packaging unit label.
func NewDocument(invoiceNumber, containerType, quantity string) Document {
	containerType = strings.ToUpper(strings.TrimSpace(containerType))
	quantity = strings.TrimSpace(quantity)
	if containerType == ContainerLCL {
		quantity += lclQuantityLabel
	}
	return Document{
		InvoiceNumber: strings.TrimSpace(invoiceNumber),
		ContainerType: containerType,
		Quantity:      quantity,
	}
}

// ReleaseRecord is the derived per shipment-container result of one
// reconciliation pass. CheckedDate is set once when the record is finalized.
type ReleaseRecord struct {
	ReferenceNumber string
	DocumentNumber  string
	InvoiceNumber   string
	ContainerNumber string
	ContainerType   string
	Quantity        string
	CreationDate    time.Time
	DocumentStatus  string
	ReleaseStatus   string
	CheckedDate     time.Time
}
