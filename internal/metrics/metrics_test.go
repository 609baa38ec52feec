package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := cv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func TestRecordAuthFailure(t *testing.T) {
	before := getCounterValue(AuthFailuresTotal, "token_expired")
	RecordAuthFailure("token_expired")
	RecordAuthFailure("token_expired")

	if got := getCounterValue(AuthFailuresTotal, "token_expired"); got != before+2 {
		t.Errorf("expected %v, got %v", before+2, got)
	}
}

func TestRecordPermissionDenial(t *testing.T) {
	before := getCounterValue(PermissionDenialsTotal, "role:admin")
	RecordPermissionDenial("role:admin")

	if got := getCounterValue(PermissionDenialsTotal, "role:admin"); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}

func TestRecordRateLimit(t *testing.T) {
	before := getCounterValue(RateLimitDecisionsTotal, "forgot_password", "limited")
	RecordRateLimit("forgot_password", "limited")

	if got := getCounterValue(RateLimitDecisionsTotal, "forgot_password", "limited"); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}

func TestRecordSweep(t *testing.T) {
	m := &dto.Metric{}
	_ = RateLimitSweptTotal.Write(m)
	before := m.GetCounter().GetValue()

	RecordSweep(3, 7)

	m = &dto.Metric{}
	_ = RateLimitSweptTotal.Write(m)
	if got := m.GetCounter().GetValue(); got != before+3 {
		t.Errorf("expected swept %v, got %v", before+3, got)
	}

	g := &dto.Metric{}
	_ = RateLimitWindows.Write(g)
	if got := g.GetGauge().GetValue(); got != 7 {
		t.Errorf("expected 7 live windows, got %v", got)
	}
}

func TestRegistryGathers(t *testing.T) {
	RecordAuthFailure("invalid_token")
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "minutes_auth_failures_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected minutes_auth_failures_total in registry")
	}
}
