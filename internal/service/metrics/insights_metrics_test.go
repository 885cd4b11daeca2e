package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCountsErrors(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(InsightsErrors.WithLabelValues("summary"))
	Observe("summary", time.Now(), nil)
	Observe("summary", time.Now(), errors.New("boom"))
	if got := testutil.ToFloat64(InsightsErrors.WithLabelValues("summary")) - before; got != 1 {
		t.Fatalf("errors delta = %v", got)
	}
}

func TestCacheLookup(t *testing.T) {
	CacheLookup("patterns", true)
	CacheLookup("patterns", false)
	CacheLookup("patterns", false)
	if got := testutil.ToFloat64(CacheLookups.WithLabelValues("patterns", "miss")); got != 2 {
		t.Fatalf("misses = %v", got)
	}
}
