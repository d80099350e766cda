package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHealthzReportsServiceUnavailableWhenNotInitialized(t *testing.T) {
	s := New(0, nil, func() HealthStatus { return HealthStatus{Initialized: false} })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var body HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body failed: %v", err)
	}
	if body.Initialized {
		t.Error("expected Initialized=false in body")
	}
}

func TestHealthzReportsOKWhenInitialized(t *testing.T) {
	s := New(0, nil, func() HealthStatus { return HealthStatus{Initialized: true, PartitionCount: 3} })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body failed: %v", err)
	}
	if !body.Initialized || body.PartitionCount != 3 {
		t.Errorf("body = %+v, want Initialized=true PartitionCount=3", body)
	}
}

func TestMetricsEndpointOnlyRegisteredWhenRegistryProvided(t *testing.T) {
	t.Run("nil registry means no /metrics route", func(t *testing.T) {
		s := New(0, nil, func() HealthStatus { return HealthStatus{Initialized: true} })
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		s.httpServer.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404 when no registry is wired", rec.Code)
		}
	})

	t.Run("real registry serves metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		s := New(0, registry, func() HealthStatus { return HealthStatus{Initialized: true} })
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		s.httpServer.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})
}
