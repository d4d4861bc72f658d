// Copyright 2026 Hexresearch
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry exposes the indexer's Prometheus metrics
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ergvein"

type Metrics struct {
	Registry *prometheus.Registry

	ActiveConnections prometheus.Gauge
	FiltersServed     prometheus.Counter
	SessionsTotal     *prometheus.CounterVec

	buildInfo *prometheus.GaugeVec
	startTime time.Time
}

// New returns metrics registered on a private registry
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_connections",
				Help:      "Current number of connected wallets.",
			},
		),
		FiltersServed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "filters_served_total",
				Help:      "Total number of filters sent in response to filter requests.",
			},
		),
		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total number of finished sessions by outcome.",
			},
			[]string{"outcome"},
		),
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_info",
				Help:      "Build info (constant 1, labeled by version and git_sha).",
			},
			[]string{"version", "git_sha"},
		),
		startTime: time.Now(),
	}
	uptime := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)
	m.Registry.MustRegister(
		m.ActiveConnections,
		m.FiltersServed,
		m.SessionsTotal,
		m.buildInfo,
		uptime,
	)
	return m
}

// MetricsHandler exposes the registry. Mount it with mux.Handle("/metrics", m.MetricsHandler()).
func (m *Metrics) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup
func (m *Metrics) SetBuildInfo(version, gitSHA string) {
	m.buildInfo.WithLabelValues(version, gitSHA).Set(1)
}

func (m *Metrics) ConnectionOpened() {
	m.ActiveConnections.Inc()
}

func (m *Metrics) SessionClosed(outcome string) {
	m.ActiveConnections.Dec()
	m.SessionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddFiltersServed(count int) {
	m.FiltersServed.Add(float64(count))
}
