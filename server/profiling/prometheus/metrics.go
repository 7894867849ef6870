/*
 * Copyright 2025 The Pigeon Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package prometheus provides a Prometheus metrics exporter.
package prometheus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/muni-town/pigeon/internal/version"
)

const (
	namespace  = "pigeon"
	roleLabel  = "role"
	cacheLabel = "cache"
)

// Metrics manages the metric information that Pigeon is trying to measure.
type Metrics struct {
	registry *prometheus.Registry

	serverVersion *prometheus.GaugeVec

	roomsCreatedTotal  prometheus.Counter
	messagesSentTotal  prometheus.Counter
	invitesIssuedTotal prometheus.Counter
	syncLoopsTotal     prometheus.Counter

	transportsOpenedTotal *prometheus.CounterVec
	transportsClosedTotal prometheus.Counter
	transportsOpen        prometheus.Gauge

	resolverCacheHits   *prometheus.GaugeVec
	resolverCacheMisses *prometheus.GaugeVec
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	metrics := &Metrics{
		registry: reg,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		roomsCreatedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rooms",
			Name:      "created_total",
			Help:      "The total count of rooms created locally.",
		}),
		messagesSentTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rooms",
			Name:      "messages_sent_total",
			Help:      "The total count of timeline messages written locally.",
		}),
		invitesIssuedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rooms",
			Name:      "invites_issued_total",
			Help:      "The total count of invites written to the outbox.",
		}),
		syncLoopsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "loops_total",
			Help:      "The total count of long-poll compute passes.",
		}),
		transportsOpenedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "transports_opened_total",
			Help:      "The total count of transports established, by role.",
		}, []string{roleLabel}),
		transportsClosedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "transports_closed_total",
			Help:      "The total count of transports closed.",
		}),
		transportsOpen: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "transports_open",
			Help:      "The number of currently open transports.",
		}),
		resolverCacheHits: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "cache_hits",
			Help:      "The total count of resolver cache hits, by cache.",
		}, []string{cacheLabel}),
		resolverCacheMisses: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "cache_misses",
			Help:      "The total count of resolver cache misses, by cache.",
		}, []string{cacheLabel}),
	}
	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// AddRoomsCreated adds the given count of locally created rooms.
func (m *Metrics) AddRoomsCreated(count int) {
	m.roomsCreatedTotal.Add(float64(count))
}

// AddMessagesSent adds the given count of sent messages.
func (m *Metrics) AddMessagesSent(count int) {
	m.messagesSentTotal.Add(float64(count))
}

// AddInvitesIssued adds the given count of issued invites.
func (m *Metrics) AddInvitesIssued(count int) {
	m.invitesIssuedTotal.Add(float64(count))
}

// AddSyncLoops adds one long-poll compute pass.
func (m *Metrics) AddSyncLoops() {
	m.syncLoopsTotal.Inc()
}

// AddTransportOpened counts one established transport of the given role.
func (m *Metrics) AddTransportOpened(role string) {
	m.transportsOpenedTotal.With(prometheus.Labels{roleLabel: role}).Inc()
	m.transportsOpen.Inc()
}

// AddTransportClosed counts one closed transport.
func (m *Metrics) AddTransportClosed() {
	m.transportsClosedTotal.Inc()
	m.transportsOpen.Dec()
}

// SetResolverCacheStats records the hit/miss totals of one resolver cache.
func (m *Metrics) SetResolverCacheStats(cache string, hits, misses int64) {
	m.resolverCacheHits.With(prometheus.Labels{cacheLabel: cache}).Set(float64(hits))
	m.resolverCacheMisses.With(prometheus.Labels{cacheLabel: cache}).Set(float64(misses))
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
