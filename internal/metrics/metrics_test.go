package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestToggleTotalCountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(ToggleTotal.WithLabelValues(OutcomeNotFound))
	ToggleTotal.WithLabelValues(OutcomeNotFound).Inc()
	after := testutil.ToFloat64(ToggleTotal.WithLabelValues(OutcomeNotFound))

	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestCollectorsAreRegistered(t *testing.T) {
	if n := testutil.CollectAndCount(ProgressDivergence); n != 1 {
		t.Fatalf("expected 1 series, got %d", n)
	}
	if n := testutil.CollectAndCount(StackCompletions); n != 1 {
		t.Fatalf("expected 1 series, got %d", n)
	}
}
