package external

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjannette/smartprice/internal/httputil"
	"github.com/kjannette/smartprice/internal/models"
)

var fastRetry = httputil.RetryConfig{MaxAttempts: 3, Backoff: 5 * time.Millisecond, AttemptTimeout: time.Second}

func newTestClient(url string) *SmoobuClient {
	return NewSmoobuClient(SmoobuOptions{APIKey: "secret", CustomerID: 42, BaseURL: url, Retry: fastRetry})
}

func TestCheckAvailability(t *testing.T) {
	var got availabilityRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != availabilityPath || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Api-Key") != "secret" {
			t.Errorf("missing Api-Key header")
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Write([]byte(`{"availableApartments":[3,1,3]}`))
	}))
	defer srv.Close()

	date := time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)
	sample, err := newTestClient(srv.URL).CheckAvailability(context.Background(), date, []int64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}

	if got.ArrivalDate != "2026-08-14" || got.DepartureDate != "2026-08-15" {
		t.Fatalf("dates: %s -> %s", got.ArrivalDate, got.DepartureDate)
	}
	if got.CustomerID != 42 || len(got.Apartments) != 4 {
		t.Fatalf("payload: %+v", got)
	}
	// duplicates in the response are collapsed: 2 of 4 free
	if sample.Ratio != 0.5 {
		t.Fatalf("expected occupancy 0.5, got %v", sample.Ratio)
	}
	if len(sample.Available) != 2 {
		t.Fatalf("expected 2 unique available, got %v", sample.Available)
	}
}

func TestCheckAvailability_IgnoresUntrackedListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"availableApartments":[3]}`))
	}))
	defer srv.Close()

	date := time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)
	sample, err := newTestClient(srv.URL).CheckAvailability(context.Background(), date, []int64{1, 2})
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if sample.Ratio != 1 || len(sample.Available) != 0 {
		t.Fatalf("expected fully occupied pool, got ratio %v available %v", sample.Ratio, sample.Available)
	}
}

func TestCheckAvailability_TruncatedErrorBody(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Length", "64")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("short"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CheckAvailability(context.Background(), time.Now(), []int64{1})
	if err == nil {
		t.Fatal("expected error for a body that could not be read")
	}
	if !errors.Is(err, httputil.ErrExhausted) {
		t.Fatalf("expected body read failures to be retried to exhaustion, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestCheckAvailability_RetriesThenExhausts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CheckAvailability(context.Background(), time.Now(), []int64{1})
	if !errors.Is(err, httputil.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestCheckAvailability_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CheckAvailability(context.Background(), time.Now(), []int64{1})
	if err == nil {
		t.Fatal("expected error on 401")
	}
	if errors.Is(err, httputil.ErrExhausted) {
		t.Fatal("4xx is not an exhausted retry")
	}
	if hits.Load() != 1 {
		t.Fatalf("expected 1 attempt, got %d", hits.Load())
	}
	t.Logf("401: %v", err)
}

func TestSubmitRate(t *testing.T) {
	var got rateRequest
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.URL.Path != ratesPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	lp := models.ListingPrice{ListingID: 1439913, Date: time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC), Price: 104.5}
	attempts, err := newTestClient(srv.URL).SubmitRate(context.Background(), lp)
	if err != nil {
		t.Fatalf("SubmitRate: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if len(got.Apartments) != 1 || got.Apartments[0] != 1439913 {
		t.Fatalf("apartments: %v", got.Apartments)
	}
	op := got.Operations[0]
	if op.Dates[0] != "2026-08-14" || op.DailyPrice != 104.5 || op.MinLengthOfStay != 1 {
		t.Fatalf("operation: %+v", op)
	}
}

func TestDryRunSubmitter(t *testing.T) {
	d := NewDryRunSubmitter()
	if d.Mode() != models.SubmissionDryRun {
		t.Fatalf("mode: %s", d.Mode())
	}
	lp := models.ListingPrice{ListingID: 7, Date: time.Now(), Price: 90}
	if n, err := d.SubmitRate(context.Background(), lp); err != nil || n != 1 {
		t.Fatalf("SubmitRate: %d, %v", n, err)
	}
	if len(d.Sent()) != 1 || d.Sent()[0].ListingID != 7 {
		t.Fatalf("sent: %v", d.Sent())
	}
}
