package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/iantato/Ecophil-Scraper-API/internal/model"
)

var reportHeader = []string{
	"reference_number",
	"document_number",
	"invoice_number",
	"container_number",
	"container_type",
	"quantity",
	"creation_date",
	"document_status",
	"release_status",
	"checked_date",
}

// WriteReport persists the release records of one pass as a CSV artifact.
func WriteReport(path string, records []model.ReleaseRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create release report: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(reportHeader); err != nil {
		f.Close()
		return fmt.Errorf("write report header: %w", err)
	}
	for _, rec := range records {
		fields := []string{
			rec.ReferenceNumber,
			rec.DocumentNumber,
			rec.InvoiceNumber,
			rec.ContainerNumber,
			rec.ContainerType,
			rec.Quantity,
			rec.CreationDate.Format(time.DateOnly),
			rec.DocumentStatus,
			rec.ReleaseStatus,
			rec.CheckedDate.Format(time.RFC3339),
		}
		if err := w.Write(fields); err != nil {
			f.Close()
			return fmt.Errorf("write report record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush release report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close release report: %w", err)
	}
	return nil
}

// RenderReport prints the release records as a terminal table.
func RenderReport(w io.Writer, records []model.ReleaseRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Reference", "Container", "Type", "Quantity", "Status", "Release", "Checked"})

	for _, rec := range records {
		t.AppendRow(table.Row{
			rec.ReferenceNumber,
			rec.ContainerNumber,
			rec.ContainerType,
			rec.Quantity,
			rec.DocumentStatus,
			rec.ReleaseStatus,
			rec.CheckedDate.Format("2006-01-02 15:04"),
		})
	}

	t.Render()
}
