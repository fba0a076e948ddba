package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newMetricsApp(t *testing.T) (*fiber.App, *PrometheusMiddleware, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMiddleware(reg)
	if err != nil {
		t.Fatalf("failed to create middleware: %v", err)
	}

	app := fiber.New()
	app.Use(m.Handler())
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Get("/forms/:id", ok)
	app.Delete("/forms/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Post("/forms/:id/submit", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadRequest, "bad request")
	})
	app.Get("/forms/:id/export", func(c *fiber.Ctx) error { return errors.New("render failed") })
	app.Get("/metrics", ok)
	app.Get("/healthz", ok)
	return app, m, reg
}

func TestPrometheusMiddleware(t *testing.T) {
	app, m, _ := newMetricsApp(t)

	requests := []struct {
		method string
		target string
	}{
		{"GET", "/forms/5e0d"},
		{"GET", "/forms/77aa"},
		{"DELETE", "/forms/5e0d"},
		{"POST", "/forms/5e0d/submit"},
		{"GET", "/forms/5e0d/export"},
	}
	for _, r := range requests {
		if _, err := app.Test(httptest.NewRequest(r.method, r.target, nil)); err != nil {
			t.Fatalf("%s %s: %v", r.method, r.target, err)
		}
	}

	tests := []struct {
		method, path, status string
		want                 float64
	}{
		{"GET", "/forms/:id", "200", 2},
		{"DELETE", "/forms/:id", "204", 1},
		{"POST", "/forms/:id/submit", "400", 1},
		{"GET", "/forms/:id/export", "500", 1},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(m.requestCount.WithLabelValues(tt.method, tt.path, tt.status))
		if got != tt.want {
			t.Errorf("%s %s %s: expected count %v, got %v", tt.method, tt.path, tt.status, tt.want, got)
		}
	}

	if n := testutil.CollectAndCount(m.requestDuration); n != 4 {
		t.Errorf("expected 4 latency series, got %d", n)
	}
}

func TestPrometheusMiddleware_SkipsProbesAndScrapes(t *testing.T) {
	app, _, reg := newMetricsApp(t)

	for _, target := range []string{"/metrics", "/healthz"} {
		if _, err := app.Test(httptest.NewRequest("GET", target, nil)); err != nil {
			t.Fatalf("GET %s: %v", target, err)
		}
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if len(mf.GetMetric()) > 0 {
			t.Errorf("expected no series for %s, got %d", mf.GetName(), len(mf.GetMetric()))
		}
	}
}

func TestNewPrometheusMiddleware_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusMiddleware(reg); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if _, err := NewPrometheusMiddleware(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
