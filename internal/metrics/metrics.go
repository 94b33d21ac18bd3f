// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus counters for HTTP traffic, logins,
// content writes and uploads on a private registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "chapel"

// Metrics holds all collectors.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	LoginsTotal              *prometheus.CounterVec
	RateLimitRejectionsTotal *prometheus.CounterVec
	ContentWritesTotal       *prometheus.CounterVec
	UploadsTotal             *prometheus.CounterVec
	UploadBytesTotal         prometheus.Counter
	PagesPatchedTotal        prometheus.Counter

	ServerStartTime prometheus.Gauge
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_rejections_total",
			Help:      "Requests rejected by a rate limiter.",
		}, []string{"scope"}),

		ContentWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_writes_total",
			Help:      "Content section writes by page and operation.",
		}, []string{"page", "op"}),

		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Media uploads by result.",
		}, []string{"result"}),

		UploadBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes stored by successful uploads.",
		}),

		PagesPatchedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "site_pages_patched_total",
			Help:      "Public pages served with stored content applied.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_start_time_seconds",
			Help:      "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.RateLimitRejectionsTotal,
		m.ContentWritesTotal,
		m.UploadsTotal,
		m.UploadBytesTotal,
		m.PagesPatchedTotal,
		m.ServerStartTime,
	)
	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one HTTP request. The recording methods are no-ops
// on a nil *Metrics.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncLogin counts a login attempt; result is "success", "failure" or "blocked".
func (m *Metrics) IncLogin(result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

// IncRateLimitRejection counts a request refused by a limiter.
func (m *Metrics) IncRateLimitRejection(scope string) {
	if m == nil {
		return
	}
	m.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
}

// IncContentWrite counts a section save or delete.
func (m *Metrics) IncContentWrite(page, op string) {
	if m == nil {
		return
	}
	m.ContentWritesTotal.WithLabelValues(page, op).Inc()
}

// ObserveUpload counts an upload; size is only added on success.
func (m *Metrics) ObserveUpload(result string, size int64) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(result).Inc()
	if result == "success" && size > 0 {
		m.UploadBytesTotal.Add(float64(size))
	}
}

// IncPagePatched counts a patched public page.
func (m *Metrics) IncPagePatched() {
	if m == nil {
		return
	}
	m.PagesPatchedTotal.Inc()
}
