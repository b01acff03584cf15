// Package pdfextract mines container numbers out of downloaded declaration
// PDFs.
package pdfextract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/iantato/Ecophil-Scraper-API/internal/scrape"
)

// containerLabel is the token marking the line that carries the container
// number on the declaration's first page.
const containerLabel = "Container No"

// containerHeader is a decorative header stripped before line scanning.
const containerHeader = "- Container No(s) -"

// Extractor locates container numbers in local PDF files.
type Extractor struct{}

// New creates an Extractor.
func New() Extractor {
	return Extractor{}
}

// ContainerNumber extracts the container number from the first page of the
// PDF at path: the trailing token of the line carrying the label.
// A PDF without the label fails with scrape.ErrNotFound.
func (Extractor) ContainerNumber(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	page := reader.Page(1)
	if page.V.IsNull() {
		return "", fmt.Errorf("pdf %s has no pages", filepath.Base(path))
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract text from %s: %w", filepath.Base(path), err)
	}

	text = strings.ReplaceAll(text, containerHeader, "")
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, containerLabel) {
			continue
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		return tokens[len(tokens)-1], nil
	}

	return "", fmt.Errorf("%w: container number in %s", scrape.ErrNotFound, filepath.Base(path))
}

// Remove deletes a downloaded PDF once its container number is extracted.
func (Extractor) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove pdf: %w", err)
	}
	return nil
}
