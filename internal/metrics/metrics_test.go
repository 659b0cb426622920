package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名・ラベルのメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return nil
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordLogin_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(ResultSuccess)
	c.RecordLogin(ResultRejected)
	c.RecordLogin(ResultRejected)

	if v := findMetric(t, reg, "cakeshop_logins_total", map[string]string{"result": ResultRejected}).GetCounter().GetValue(); v != 2 {
		t.Errorf("rejected logins = %v, want 2", v)
	}
	if v := findMetric(t, reg, "cakeshop_logins_total", map[string]string{"result": ResultSuccess}).GetCounter().GetValue(); v != 1 {
		t.Errorf("successful logins = %v, want 1", v)
	}
}

func TestRecordCartMutation_CountsByOp(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCartMutation("add")
	c.RecordCartMutation("add")
	c.RecordCartMutation("clear")

	if v := findMetric(t, reg, "cakeshop_cart_mutations_total", map[string]string{"op": "add"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("add mutations = %v, want 2", v)
	}
}

func TestRecordTokenRejected_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTokenRejected()

	if v := findMetric(t, reg, "cakeshop_token_rejected_total", nil).GetCounter().GetValue(); v != 1 {
		t.Errorf("token_rejected_total = %v, want 1", v)
	}
}

func TestRecordHTTPStatus_LabelsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(401)
	c.RecordHTTPStatus(401)
	c.RecordHTTPStatus(200)

	if v := findMetric(t, reg, "cakeshop_http_status_total", map[string]string{"status_code": "401"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("401 count = %v, want 2", v)
	}
}

func TestRecordRequestLatency_Observes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(150 * time.Millisecond)

	h := findMetric(t, reg, "cakeshop_http_request_duration_seconds", nil).GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", h.GetSampleCount())
	}
}

func TestNop_DoesNotPanic(t *testing.T) {
	var c MetricsCollector = Nop{}
	c.RecordSignup(ResultSuccess)
	c.RecordUploadFailure("cakeapp/cakes")
	c.RecordStoreUnavailable("cart.add")
	c.RecordRequestLatency(time.Second)
}
