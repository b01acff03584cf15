// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reject reasons for scraper_rows_rejected_total.
const (
	RejectOutOfWindow = "out_of_window"
	RejectStatus      = "status"
	RejectDuplicate   = "duplicate"
	RejectMalformed   = "malformed"
)

var (
	rowsCachedTotal      *prometheus.CounterVec
	rowsRejectedTotal    *prometheus.CounterVec
	pagesVisitedTotal    *prometheus.CounterVec
	documentsTotal       *prometheus.CounterVec
	invalidDocumentTotal prometheus.Counter
	loginAttemptsTotal   *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		rowsCachedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_rows_cached_total",
				Help: "Total listing rows accepted into the row cache, labeled by branch.",
			},
			[]string{"branch"},
		)

		rowsRejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_rows_rejected_total",
				Help: "Total listing rows rejected by the crawl window, labeled by reason.",
			},
			[]string{"reason"},
		)

		pagesVisitedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_visited_total",
				Help: "Total listing pages visited, labeled by branch.",
			},
			[]string{"branch"},
		)

		documentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_documents_reconciled_total",
				Help: "Total documents reconciled, labeled by release status.",
			},
			[]string{"status"},
		)

		invalidDocumentTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_invalid_documents_total",
				Help: "Total references skipped as invalid during reconciliation.",
			},
		)

		loginAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_login_attempts_total",
				Help: "Total portal login attempts, labeled by portal and outcome.",
			},
			[]string{"portal", "outcome"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRowCached counts an accepted row.
func ObserveRowCached(branch string) {
	if rowsCachedTotal != nil {
		rowsCachedTotal.WithLabelValues(branch).Inc()
	}
}

// ObserveRowRejected counts a rejected row by reason.
func ObserveRowRejected(reason string) {
	if rowsRejectedTotal != nil {
		rowsRejectedTotal.WithLabelValues(reason).Inc()
	}
}

// ObservePageVisited counts one listing page load.
func ObservePageVisited(branch string) {
	if pagesVisitedTotal != nil {
		pagesVisitedTotal.WithLabelValues(branch).Inc()
	}
}

// ObserveDocumentReconciled counts a finished release record by status.
func ObserveDocumentReconciled(status string) {
	if documentsTotal != nil {
		documentsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveInvalidDocument counts a skipped reference.
func ObserveInvalidDocument() {
	if invalidDocumentTotal != nil {
		invalidDocumentTotal.Inc()
	}
}

// ObserveLoginAttempt counts one login attempt.
func ObserveLoginAttempt(portal, outcome string) {
	if loginAttemptsTotal != nil {
		loginAttemptsTotal.WithLabelValues(portal, outcome).Inc()
	}
}
