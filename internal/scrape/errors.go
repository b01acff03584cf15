// Package scrape defines the error taxonomy shared by the portal drivers,
// the crawl controller, and the reconciliation engine.
//
// Session-level errors (ErrLoginFailed, ErrLoadingFailed) unwind the whole
// crawl or reconciliation run. Per-record errors (ErrInvalidDocument,
// ErrAlreadyCached, ErrMalformedRow, ErrNotFound) are recovered at the
// innermost loop: the offending row or reference is logged and skipped.
package scrape

import "errors"

var (
	// ErrLoginFailed indicates the portal rejected the configured
	// credentials after the allowed number of attempts.
	ErrLoginFailed = errors.New("login failed")

	// ErrLoadingFailed indicates a page or element did not appear within
	// its wait budget.
	ErrLoadingFailed = errors.New("page load timed out")

	// ErrInvalidDocument marks a reference whose document is unprocessable
	// or out of policy for this pass.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrAlreadyCached is the idempotency guard of the row cache: the
	// reference number is already present in the store.
	ErrAlreadyCached = errors.New("reference number already cached")

	// ErrMalformedRow indicates a scraped table row did not match the
	// expected cell count or date format.
	ErrMalformedRow = errors.New("malformed row")

	// ErrNotFound is a lookup miss: a reference number absent from the
	// cache, or a container number absent from an event export.
	ErrNotFound = errors.New("not found")
)
