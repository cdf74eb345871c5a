package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordEvent("text")
	c.RecordEvent("text")
	c.RecordEvent("command")
	c.RecordRejection("age")
	c.RecordSubmission()
	c.RecordNotification(NotificationFailed)

	if got := testutil.ToFloat64(c.events.WithLabelValues("text")); got != 2 {
		t.Errorf("Expected 2 text events, got %v", got)
	}
	if got := testutil.ToFloat64(c.rejections.WithLabelValues("age")); got != 1 {
		t.Errorf("Expected 1 age rejection, got %v", got)
	}
	if got := testutil.ToFloat64(c.submissions); got != 1 {
		t.Errorf("Expected 1 submission, got %v", got)
	}
	if got := testutil.ToFloat64(c.notifications.WithLabelValues(NotificationFailed)); got != 1 {
		t.Errorf("Expected 1 failed notification, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	RegisterActiveSessions(reg, func() int { return 3 })
	c.RecordCancel()

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"intake_cancellations_total 1", "intake_active_sessions 3"} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %q in scrape output", want)
		}
	}
}
