package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := NewNop()
	m.SessionsIssued.Inc()
	m.AuthFailures.WithLabelValues("expired").Add(2)

	if got := testutil.ToFloat64(m.AuthFailures.WithLabelValues("expired")); got != 2 {
		t.Errorf("auth failures = %v, want 2", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "classroom_sessions_issued_total 1") {
		t.Errorf("metrics output missing sessions counter:\n%s", body)
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewNop()
	b := NewNop()
	a.ResetRequests.Inc()
	if got := testutil.ToFloat64(b.ResetRequests); got != 0 {
		t.Errorf("second registry saw %v resets, want 0", got)
	}
}
