package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/phonalign/internal/observe"
	"github.com/MrWong99/phonalign/pkg/pronunciation"
)

// headerCounter counts WriteHeader calls.
type headerCounter struct {
	*httptest.ResponseRecorder
	calls int
}

func (h *headerCounter) WriteHeader(code int) {
	h.calls++
	h.ResponseRecorder.WriteHeader(code)
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		value      any
		wantStatus int
		wantBody   string
	}{
		{"ok", http.StatusCreated, map[string]int{"n": 1}, http.StatusCreated, `{"n":1}`},
		{"unencodable", http.StatusOK, map[string]float64{"x": math.NaN()}, http.StatusInternalServerError, `{"error":"encode response"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := &headerCounter{ResponseRecorder: httptest.NewRecorder()}
			writeJSON(w, tt.status, tt.value)

			if w.calls != 1 {
				t.Errorf("WriteHeader called %d times, want 1", w.calls)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := strings.TrimSpace(w.Body.String())
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
			if !json.Valid([]byte(body)) {
				t.Errorf("body is not valid JSON: %q", body)
			}
		})
	}
}

type panickingObserver struct{}

func (panickingObserver) ObserveAnalysis(context.Context, pronunciation.Stats) {
	panic("observer failed")
}

func TestAnalyze_GaugeReleasedOnPanic(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	a, err := pronunciation.NewAnalyzer(pronunciation.WithObserver(panickingObserver{}))
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	s := New(a, WithMetrics(m))

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("analyze did not panic")
			}
		}()
		_, _ = s.analyze(context.Background(), pronunciation.Request{
			Lexicon:    []pronunciation.LexiconInput{{Word: "cat", Phonemes: "k æ t"}},
			Recognized: "k æ t",
		})
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "phonalign.active_analyses" {
				continue
			}
			found = true
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("active_analyses data is %T", met.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			if total != 0 {
				t.Errorf("active analyses = %d after panic, want 0", total)
			}
		}
	}
	if !found {
		t.Error("phonalign.active_analyses was not recorded")
	}
}
