package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"MarketPulse/pkg/logger"
)

func TestHealthzReportsDependencies(t *testing.T) {
	down := errors.New("connection refused")
	cases := []struct {
		name  string
		check HealthCheck
		code  int
		state string
	}{
		{"healthy", func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"degraded", func(context.Context) error { return down }, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewServer(logger.NewNop(), nil, WithMetricsPath(""), WithHealthCheck("clickhouse", tc.check))
			rec := httptest.NewRecorder()
			s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d", rec.Code, tc.code)
			}
			data, ok := decode(t, rec).Data.(map[string]interface{})
			if !ok {
				t.Fatalf("data is not an object")
			}
			if data["status"] != tc.state {
				t.Fatalf("status field = %v, want %s", data["status"], tc.state)
			}
		})
	}
}

func TestWithHealthCheckIgnoresNil(t *testing.T) {
	cfg := &ServerConfig{}
	WithHealthCheck("redis", nil)(cfg)
	if len(cfg.HealthChecks) != 0 {
		t.Fatalf("nil check should not be registered")
	}
}
