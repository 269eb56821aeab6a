package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(callAttempts.WithLabelValues("availability", "failure"))
	ObserveAttempt("availability", "failure")
	ObserveAttempt("availability", "failure")
	if got := testutil.ToFloat64(callAttempts.WithLabelValues("availability", "failure")); got != before+2 {
		t.Fatalf("expected %v, got %v", before+2, got)
	}

	ObserveSubmission("zed", "sent")
	if got := testutil.ToFloat64(submissions.WithLabelValues("zed", "sent")); got < 1 {
		t.Fatalf("submission counter not incremented: %v", got)
	}
}

func TestBasePriceGauge(t *testing.T) {
	SetBasePrice("finikas", "near_term", 123.45)
	if got := testutil.ToFloat64(basePrice.WithLabelValues("finikas", "near_term")); got != 123.45 {
		t.Fatalf("expected 123.45, got %v", got)
	}
}
