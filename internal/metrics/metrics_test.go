package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotentAndRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncPublished("processes", "added")
	IncPublished("processes", "added")
	ObserveDrain(3)
	AddHighlightDiscarded("services", 2)
	SetDisplayedItems("processes", 5)
	SetDisplayedItems("processes", 4)

	if got := testutil.ToFloat64(eventsPublished.WithLabelValues("processes", "added")); got != 2 {
		t.Fatalf("published counter = %v", got)
	}
	if got := testutil.ToFloat64(eventsDrained); got != 3 {
		t.Fatalf("drained counter = %v", got)
	}
	if got := testutil.ToFloat64(highlightDiscarded.WithLabelValues("services")); got != 2 {
		t.Fatalf("discarded counter = %v", got)
	}
	if got := testutil.ToFloat64(displayedItems.WithLabelValues("processes")); got != 4 {
		t.Fatalf("displayed gauge = %v", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	// Force registration with the default registry even if another test ran first.
	regOK.Store(false)
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatalf("register: %v", err)
	}
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "procview_handle_live") {
		t.Fatal("handle gauge missing from exposition")
	}
}
