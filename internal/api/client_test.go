package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const testToken = "tok-123"

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL).Authorized(testToken)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListMessages(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/messages/d1" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer "+testToken {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[
			{"_id":"m1","deal":"d1","sender":{"_id":"u1","name":"Ann","email":"ann@x.io"},"content":"hi","readBy":["u1"],"createdAt":"2024-05-01T10:00:00Z"},
			{"_id":"m2","deal":{"_id":"d1","title":"Boat"},"sender":"u2","content":"yo","createdAt":"2024-05-01T10:01:00Z"}
		]}`))
	})

	msgs, err := c.ListMessages(context.Background(), "d1")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Sender.Name != "Ann" || msgs[0].Deal != "d1" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Deal != "d1" {
		t.Errorf("populated deal ref = %q, want d1", msgs[1].Deal)
	}
	if msgs[1].Sender.ID != "u2" {
		t.Errorf("bare sender ref = %q, want u2", msgs[1].Sender.ID)
	}
	if !msgs[1].CreatedAt.Equal(time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", msgs[1].CreatedAt)
	}
}

func TestCreateMessageSendsClientID(t *testing.T) {
	const clientID = "6f1c1c0e-8d6a-4b43-9a8e-0c7a4b7f2d11"
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/messages" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body["dealId"] != "d1" || body["content"] != "hello" || body["clientId"] != clientID {
			t.Errorf("body = %v", body)
		}
		writeJSON(w, http.StatusCreated, map[string]any{"message": map[string]any{
			"_id": "m9", "deal": "d1", "content": "hello", "clientId": clientID,
			"sender":    map[string]string{"_id": "u1", "name": "Ann"},
			"createdAt": "2024-05-01T10:00:00Z",
		}})
	})

	msg, err := c.CreateMessage(context.Background(), "d1", "hello", clientID)
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if msg.ID != "m9" || msg.ClientID != clientID {
		t.Errorf("msg = %+v", msg)
	}
}

func TestCreateMessageValidation(t *testing.T) {
	c := New("http://127.0.0.1:0").Authorized(testToken)
	if _, err := c.CreateMessage(context.Background(), "d1", "", ""); err == nil {
		t.Error("expected validation error for empty content")
	}
	if _, err := c.CreateMessage(context.Background(), "", "hi", ""); err == nil {
		t.Error("expected validation error for empty deal id")
	}
	if _, err := c.CreateMessage(context.Background(), "d1", "hi", "not-a-uuid"); err == nil {
		t.Error("expected validation error for malformed client id")
	}
}

func TestErrorBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Not a participant"})
	})

	_, err := c.ListMessages(context.Background(), "d1")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T %v, want *Error", err, err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Message != "Not a participant" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestUnauthorized(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := c.Me(context.Background())
	if !IsUnauthorized(err) {
		t.Errorf("IsUnauthorized(%v) = false", err)
	}
}

func TestAnonymousClientRefusesAuthedCalls(t *testing.T) {
	c := New("http://127.0.0.1:0")
	if _, err := c.ListDeals(context.Background(), ""); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("error = %v, want ErrNotSignedIn", err)
	}
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("login must not send a bearer token")
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token": "fresh",
			"user":  map[string]string{"_id": "u1", "name": "Ann", "email": "ann@x.io", "role": "buyer"},
		})
	}))
	defer srv.Close()

	user, token, err := New(srv.URL).Login(context.Background(), "ann@x.io", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if token != "fresh" || user.ID != "u1" || user.Role != "buyer" {
		t.Errorf("Login() = %+v, %q", user, token)
	}
}

func TestLoginRejectsBadEmail(t *testing.T) {
	if _, _, err := New("http://127.0.0.1:0").Login(context.Background(), "nope", "x"); err == nil {
		t.Error("expected validation error")
	}
}

func TestListDealsStatusFilter(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("status"); got != DealInProgress {
			t.Errorf("status query = %q", got)
		}
		writeJSON(w, http.StatusOK, map[string]any{"deals": []map[string]any{
			{"_id": "d1", "title": "Boat", "status": DealInProgress, "currentPrice": 1200.5},
		}})
	})

	deals, err := c.ListDeals(context.Background(), DealInProgress)
	if err != nil {
		t.Fatal(err)
	}
	if len(deals) != 1 || deals[0].CurrentPrice != 1200.5 {
		t.Errorf("deals = %+v", deals)
	}
	if _, err := c.ListDeals(context.Background(), "bogus"); err == nil {
		t.Error("expected validation error for unknown status")
	}
}

func TestProposePrice(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/deals/d1/price" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var body map[string]float64
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{"deal": map[string]any{
			"_id": "d1", "currentPrice": body["price"],
			"priceHistory": []map[string]any{{"price": body["price"], "proposedBy": map[string]string{"_id": "u1", "name": "Ann", "role": "buyer"}, "timestamp": "2024-05-01T10:00:00Z"}},
		}})
	})

	deal, err := c.ProposePrice(context.Background(), "d1", 950)
	if err != nil {
		t.Fatal(err)
	}
	if deal.CurrentPrice != 950 || len(deal.PriceHistory) != 1 || deal.PriceHistory[0].ProposedBy.Role != "buyer" {
		t.Errorf("deal = %+v", deal)
	}
	if _, err := c.ProposePrice(context.Background(), "d1", -1); err == nil {
		t.Error("expected validation error for negative price")
	}
}

func TestAnalyticsRaw(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analytics/dashboard" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{"totalDeals":4}}`))
	})
	data, err := c.Analytics(context.Background(), ReportDashboard)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"totalDeals":4}` {
		t.Errorf("data = %s", data)
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	routes []string
	codes  []int
}

func (o *recordingObserver) ObserveRequest(method, route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.routes = append(o.routes, method+" "+route)
	o.codes = append(o.codes, status)
}

func TestObserverUsesRouteTemplate(t *testing.T) {
	obs := &recordingObserver{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"messages": []any{}})
	}))
	defer srv.Close()

	c := New(srv.URL, WithObserver(obs)).Authorized(testToken)
	if _, err := c.ListMessages(context.Background(), "d42"); err != nil {
		t.Fatal(err)
	}
	if len(obs.routes) != 1 || obs.routes[0] != "GET /api/messages/{dealId}" || obs.codes[0] != 200 {
		t.Errorf("observations = %v %v", obs.routes, obs.codes)
	}
}

func TestParsePrice(t *testing.T) {
	cases := map[string]float64{
		"1250.5":    1250.5,
		"$1,250.50": 1250.5,
		" 1_000 ":   1000,
	}
	for in, want := range cases {
		got, err := ParsePrice(in)
		if err != nil || got != want {
			t.Errorf("ParsePrice(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "abc", "0", "-5"} {
		if _, err := ParsePrice(bad); err == nil {
			t.Errorf("ParsePrice(%q) expected error", bad)
		}
	}
}
