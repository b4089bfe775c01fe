package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c interface {
	Write(*dto.Metric) error
}) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestRecordTrustMutationIncrementsByOutcome(t *testing.T) {
	before := counterValue(t, TrustMutationsTotal.WithLabelValues("setTrust", "accepted"))
	RecordTrustMutation("setTrust", true)
	after := counterValue(t, TrustMutationsTotal.WithLabelValues("setTrust", "accepted"))
	if after != before+1 {
		t.Errorf("expected the accepted counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestRecordIdentityEventIncrementsByKind(t *testing.T) {
	before := counterValue(t, IdentityEventsTotal.WithLabelValues("created"))
	RecordIdentityEvent("created")
	after := counterValue(t, IdentityEventsTotal.WithLabelValues("created"))
	if after != before+1 {
		t.Errorf("expected the created counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestUpdateHintQueueDepthGaugeSetsValue(t *testing.T) {
	UpdateHintQueueDepthGauge(42)
	if got := counterValue(t, HintQueueDepthGauge); got != 42 {
		t.Errorf("expected hint queue depth gauge 42, got %v", got)
	}
}

func TestUpdateFastPartitionSizeGaugeSetsValue(t *testing.T) {
	UpdateFastPartitionSizeGauge(7)
	if got := counterValue(t, FastPartitionSizeGauge); got != 7 {
		t.Errorf("expected fast partition size gauge 7, got %v", got)
	}
}
