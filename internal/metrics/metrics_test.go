package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservations(t *testing.T) {
	m := New()

	m.ObserveRequest("GET", "/api/messages/{dealId}", 200, 30*time.Millisecond)
	m.ObserveRequest("GET", "/api/messages/{dealId}", 200, 10*time.Millisecond)
	m.ObserveRequest("POST", "/api/messages", 0, time.Second)
	m.ObserveReconnect()
	m.ObserveInbound("newMessage")
	m.ObserveOutbound("joinDeal")
	m.HistoryFetched(time.Millisecond, nil)
	m.MessageSent(errors.New("boom"))
	m.DuplicateDropped()

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/messages/{dealId}", "200")); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/messages", "0")); got != 1 {
		t.Errorf("transport errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.reconnects); got != 1 {
		t.Errorf("reconnects = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.socketEvents.WithLabelValues("in", "newMessage")); got != 1 {
		t.Errorf("inbound = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.sends.WithLabelValues("error")); got != 1 {
		t.Errorf("failed sends = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.historyFetches.WithLabelValues("ok")); got != 1 {
		t.Errorf("history fetches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.duplicates); got != 1 {
		t.Errorf("duplicates = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveReconnect()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "dealroom_realtime_reconnects_total 1") {
		t.Errorf("exposition missing reconnect counter:\n%s", body)
	}
}
