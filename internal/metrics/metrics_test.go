package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordFrame(false)
	m.RecordFrame(false)
	m.RecordFrame(true)
	m.RecordSilence()
	m.RecordExport(44, 0.001)
	m.RecordRPC(0.2, nil)
	m.RecordRPC(0.3, errors.New("down"))
	m.RecordTransition("Passive", "Listening")
	m.RecordTransition("Passive", "Listening")
	m.RecordBreaker(1)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"recorded", m.FramesRecorded, 2},
		{"dropped", m.FramesDropped, 1},
		{"silence", m.SilenceTriggers, 1},
		{"exports", m.Exports, 1},
		{"rpc calls", m.RPCCalls, 2},
		{"rpc failures", m.RPCFailures, 1},
		{"transitions", m.Transitions.WithLabelValues("Passive", "Listening"), 2},
		{"breaker", m.BreakerState, 1},
	}

	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordFrame(true)
	m.RecordSilence()
	m.RecordExport(1, 1)
	m.RecordRPC(1, nil)
	m.RecordTransition("a", "b")
	m.RecordBreaker(2)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordSilence()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lexaudio_silence_triggers_total 1") {
		t.Errorf("body missing silence counter:\n%s", rec.Body.String())
	}
}
