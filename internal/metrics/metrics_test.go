package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	ObserveRowCached("main")
	ObserveRowRejected(RejectStatus)
	ObservePageVisited("main")
	ObserveDocumentReconciled("Released")
	ObserveInvalidDocument()
	ObserveLoginAttempt("intercommerce", "success")
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObserveRowCached("main")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "scraper_rows_cached_total")
}
