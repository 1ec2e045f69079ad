package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncSeek(t *testing.T) {
	before := testutil.ToFloat64(Seeks.WithLabelValues("failure"))
	IncSeek(false)
	if got := testutil.ToFloat64(Seeks.WithLabelValues("failure")); got != before+1 {
		t.Fatalf("failure seeks = %v, want %v", got, before+1)
	}
}

func TestObserveLate(t *testing.T) {
	before := testutil.ToFloat64(FramesLate)
	ObserveLate(20 * time.Millisecond)
	if got := testutil.ToFloat64(FramesLate); got != before+1 {
		t.Fatalf("late frames = %v, want %v", got, before+1)
	}
}
