package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsWith_Isolated(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg, "test")

	m.BuildErrors.WithLabelValues("pumpfun", "slippage").Inc()
	m.ChannelWins.WithLabelValues("relay").Add(2)

	if got := testutil.ToFloat64(m.BuildErrors.WithLabelValues("pumpfun", "slippage")); got != 1 {
		t.Errorf("expected 1 build error, got %v", got)
	}
	if got := testutil.ToFloat64(m.ChannelWins.WithLabelValues("relay")); got != 2 {
		t.Errorf("expected 2 relay wins, got %v", got)
	}
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.OutcomesByStatus.WithLabelValues("confirmed"))
	RecordOutcome("confirmed", "bundle")
	RecordAttempt("bundle", "confirmed", 120*time.Millisecond)
	RecordBuild("pumpfun", time.Millisecond, "")

	if got := testutil.ToFloat64(DefaultMetrics.OutcomesByStatus.WithLabelValues("confirmed")); got != before+1 {
		t.Errorf("expected outcome counter to increase")
	}
}

func TestHandler(t *testing.T) {
	RecordSignalState("settled")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "copytrader_engine_signals_total") {
		t.Error("expected engine signal metric in output")
	}
}
