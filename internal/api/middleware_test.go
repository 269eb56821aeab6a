package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kjannette/smartprice/internal/metrics"
	"github.com/kjannette/smartprice/internal/models"
)

const testKey = "s3cret"

// guardedServer runs the full middleware chain with an API key set.
func guardedServer(trigger *fakeTrigger) *Server {
	return NewServer(Deps{
		Scheduler:  trigger,
		Runs:       &fakeRuns{rep: &models.RunReport{ID: "stored", Property: "finikas"}},
		Properties: []string{"zed", "finikas"},
	}, 0, testKey, "https://ops.example.com")
}

func send(s *Server, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestAuth_PublicEndpoints(t *testing.T) {
	metrics.ObserveDate("zed", models.DatePriced)
	s := guardedServer(&fakeTrigger{})

	for _, path := range []string{"/health", "/metrics"} {
		if rr := send(s, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Errorf("%s without token: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestAuth_TriggerRun(t *testing.T) {
	trigger := &fakeTrigger{}
	s := guardedServer(trigger)

	tests := []struct {
		name string
		auth string
		code int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"raw key without scheme", testKey, http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"valid bearer", "Bearer " + testKey, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := send(s, http.MethodPost, "/v1/runs", tt.auth); rr.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rr.Code)
			}
		})
	}
	if trigger.calls.Load() != 1 {
		t.Fatalf("only the authenticated POST should reach the scheduler, got %d triggers", trigger.calls.Load())
	}
}

func TestAuth_PropertyResolvedAfterAuth(t *testing.T) {
	s := guardedServer(&fakeTrigger{})

	// an unknown property must not be revealed to unauthenticated callers
	if rr := send(s, http.MethodGet, "/v1/runs/latest?property=ghost", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before property lookup, got %d", rr.Code)
	}
	if rr := send(s, http.MethodGet, "/v1/runs/latest?property=ghost", "Bearer "+testKey); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown property, got %d", rr.Code)
	}

	rr := send(s, http.MethodGet, "/v1/runs/latest?property=finikas", "Bearer "+testKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var rep models.RunReport
	if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil || rep.Property != "finikas" {
		t.Fatalf("unexpected body %s (%v)", rr.Body.String(), err)
	}
}

func TestCORS_RunTriggerPreflight(t *testing.T) {
	s := guardedServer(&fakeTrigger{})

	req := httptest.NewRequest(http.MethodOptions, "/v1/runs", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("preflight must not require a token, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Fatalf("allow-methods: %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Fatalf("allow-origin: %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Fatalf("allow-headers: %q", got)
	}
}

func TestCORS_HeadersOnRejectedRequest(t *testing.T) {
	s := guardedServer(&fakeTrigger{})

	rr := send(s, http.MethodPost, "/v1/runs", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("a browser needs CORS headers to read the 401")
	}
}

func TestAuth_DisabledWithoutKey(t *testing.T) {
	trigger := &fakeTrigger{}
	s := NewServer(Deps{Scheduler: trigger, Properties: []string{"zed"}}, 0, "", "")

	if rr := send(s, http.MethodPost, "/v1/runs", ""); rr.Code != http.StatusAccepted {
		t.Fatalf("expected open API without a key, got %d", rr.Code)
	}
	if rr := send(s, http.MethodGet, "/v1/runs/latest", ""); rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("default origin should be *, got %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestPathDates(t *testing.T) {
	s := NewServer(Deps{Calendars: map[string]CalendarLookup{}, Properties: []string{"zed"}}, 0, "", "")

	tests := []struct {
		date string
		bad  bool
	}{
		{"2026-07-14", false},
		{"2026-02-30", true},
		{"14-07-2026", true},
		{"2026-7-14", true},
	}
	for _, tt := range tests {
		rr := send(s, http.MethodGet, "/v1/calendar/"+tt.date, "")
		if tt.bad != (rr.Code == http.StatusBadRequest) {
			t.Errorf("%s: got %d", tt.date, rr.Code)
		}
	}
}
