// Package eventlog scans terminal container-event exports for arrival
// timestamps.
package eventlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/iantato/Ecophil-Scraper-API/internal/scrape"
)

// eventDateLayout is the timestamp format of the export's Event Date column.
const eventDateLayout = "02-Jan-06 15:04"

// arrivalEvent is the Point Event marker for container arrivals.
const arrivalEvent = "ARRIVE"

// Export column headers.
const (
	containerColumn = "Container"
	eventColumn     = "Point Event"
	dateColumn      = "Event Date"
)

// Lookup resolves arrival dates across one or more downloaded exports, in
// order. The first export containing the container wins.
type Lookup struct {
	paths []string
}

// NewLookup creates a Lookup over the given export files.
func NewLookup(paths ...string) *Lookup {
	return &Lookup{paths: paths}
}

// ArrivalDates returns the ordered arrival timestamps for a container.
// A container absent from every export is scrape.ErrNotFound, never an
// empty success.
func (l *Lookup) ArrivalDates(containerNumber string) ([]time.Time, error) {
	for _, path := range l.paths {
		dates, err := scanExport(path, containerNumber)
		if err != nil {
			return nil, err
		}
		if len(dates) > 0 {
			return dates, nil
		}
	}
	return nil, fmt.Errorf("%w: container %s has no arrival events", scrape.ErrNotFound, containerNumber)
}

func scanExport(path, containerNumber string) ([]time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event export: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	lines, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read event export %s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, nil
	}

	containerIdx, eventIdx, dateIdx := -1, -1, -1
	for i, name := range lines[0] {
		switch name {
		case containerColumn:
			containerIdx = i
		case eventColumn:
			eventIdx = i
		case dateColumn:
			dateIdx = i
		}
	}
	if containerIdx < 0 || eventIdx < 0 || dateIdx < 0 {
		return nil, fmt.Errorf("event export %s is missing required columns", path)
	}

	var dates []time.Time
	for _, fields := range lines[1:] {
		if len(fields) <= containerIdx || len(fields) <= eventIdx || len(fields) <= dateIdx {
			continue
		}
		if fields[containerIdx] != containerNumber || fields[eventIdx] != arrivalEvent {
			continue
		}
		at, err := time.Parse(eventDateLayout, fields[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("event date %q in %s: %w", fields[dateIdx], path, err)
		}
		dates = append(dates, at)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}
