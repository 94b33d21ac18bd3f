// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

// DBStatFunc returns connection pool statistics.
type DBStatFunc func() sql.DBStats

type dbPoolCollector struct {
	statFunc DBStatFunc

	openDesc  *prometheus.Desc
	inUseDesc *prometheus.Desc
	idleDesc  *prometheus.Desc
}

// NewDBPoolCollector creates a collector exposing database pool gauges.
func NewDBPoolCollector(statFunc DBStatFunc) prometheus.Collector {
	return &dbPoolCollector{
		statFunc:  statFunc,
		openDesc:  prometheus.NewDesc(namespace+"_db_open_connections", "Open database connections.", nil, nil),
		inUseDesc: prometheus.NewDesc(namespace+"_db_in_use_connections", "Database connections in use.", nil, nil),
		idleDesc:  prometheus.NewDesc(namespace+"_db_idle_connections", "Idle database connections.", nil, nil),
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.openDesc
	ch <- c.inUseDesc
	ch <- c.idleDesc
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.statFunc()
	ch <- prometheus.MustNewConstMetric(c.openDesc, prometheus.GaugeValue, float64(s.OpenConnections))
	ch <- prometheus.MustNewConstMetric(c.inUseDesc, prometheus.GaugeValue, float64(s.InUse))
	ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, float64(s.Idle))
}

// RegisterDB exposes pool statistics of db.
func (m *Metrics) RegisterDB(db *sql.DB) {
	m.registry.MustRegister(NewDBPoolCollector(db.Stats))
}
