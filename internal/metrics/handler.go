// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.ObserveRequest(r.Method, route, status, time.Since(start))
	})
}

// Snapshot is a small summary of the counters shown on the dashboard.
type Snapshot struct {
	Requests      float64 `json:"requests"`
	LoginFailures float64 `json:"loginFailures"`
	RateLimited   float64 `json:"rateLimited"`
	ContentWrites float64 `json:"contentWrites"`
	Uploads       float64 `json:"uploads"`
	UploadBytes   float64 `json:"uploadBytes"`
	PagesPatched  float64 `json:"pagesPatched"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Snapshot gathers the registry into a Snapshot.
func (m *Metrics) Snapshot() (Snapshot, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return Snapshot{}, err
	}
	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	start := gaugeValue(fam[namespace+"_server_start_time_seconds"])
	return Snapshot{
		Requests:      sumCounter(fam[namespace+"_http_requests_total"]),
		LoginFailures: counterWithLabel(fam[namespace+"_logins_total"], "result", "failure"),
		RateLimited:   sumCounter(fam[namespace+"_ratelimit_rejections_total"]),
		ContentWrites: sumCounter(fam[namespace+"_content_writes_total"]),
		Uploads:       counterWithLabel(fam[namespace+"_uploads_total"], "result", "success"),
		UploadBytes:   sumCounter(fam[namespace+"_upload_bytes_total"]),
		PagesPatched:  sumCounter(fam[namespace+"_site_pages_patched_total"]),
		UptimeSeconds: float64(time.Now().Unix()) - start,
	}, nil
}

func sumCounter(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func counterWithLabel(f *dto.MetricFamily, name, value string) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if f == nil || len(f.GetMetric()) == 0 {
		return 0
	}
	return f.GetMetric()[0].GetGauge().GetValue()
}
