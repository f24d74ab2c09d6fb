// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes tick-loop health on /metrics. Carried as an ambient
// observability signal, not as a correctness mechanism — spec.md's
// Non-goals exclude authoritative wall-clock timing from the tick's own
// logic, not from being observed externally.
type Metrics struct {
	tickDuration     prometheus.Histogram
	tickOverrun      prometheus.Counter
	patchesCommitted prometheus.Counter
}

// NewMetrics registers the tick-loop histogram and counters on reg. A nil reg gets its own
// private registry, so callers that don't care about exposing /metrics
// (tests, an Engine built without an httpapi layer) don't have to thread one
// through.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spacxt",
			Subsystem: "orchestrator",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one orchestrator tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		tickOverrun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spacxt",
			Subsystem: "orchestrator",
			Name:      "tick_overrun_total",
			Help:      "Ticks whose duration exceeded tick_budget_ms.",
		}),
		patchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spacxt",
			Subsystem: "orchestrator",
			Name:      "patches_committed_total",
			Help:      "Patches committed across all ticks.",
		}),
	}
	reg.MustRegister(m.tickDuration, m.tickOverrun, m.patchesCommitted)
	return m
}

// Observe records the outcome of one tick.
func (m *Metrics) Observe(d time.Duration, overran bool, patchesApplied int) {
	m.tickDuration.Observe(d.Seconds())
	if overran {
		m.tickOverrun.Inc()
	}
	m.patchesCommitted.Add(float64(patchesApplied))
}
