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
// Package orchestrator implements the tick loop (C6): deterministic agent
// ordering, a parallel read-only Phase A, and a serialized Phase B commit,
// matching the two-phase discipline spec.md §5 and §9 call out explicitly
// ("parallel reads in Phase A, serialized commit in Phase B").
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tumluliu/spacxt/internal/agentrt"
	"github.com/tumluliu/spacxt/internal/bus"
	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/geom"
	"github.com/tumluliu/spacxt/internal/log"
	"github.com/tumluliu/spacxt/internal/scene"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("spacxt/orchestrator")

// Config bundles the thresholds a tick needs, independent of
// internal/config so the orchestrator can be driven by tests directly.
type Config struct {
	Thresholds   geom.Thresholds
	TauPropose   float64
	TauAccept    float64
	TauSupersede float64
	TickBudget   time.Duration
}

// Orchestrator owns the agent registry and the tick loop.
type Orchestrator struct {
	store    *scene.Store
	bus      *bus.Bus
	registry agentrt.Registry
	cfg      Config
	metrics  *Metrics

	mu     sync.Mutex
	agents map[string]agentrt.Agent
	seq    int64
}

// New builds an Orchestrator over the given store and bus.
func New(store *scene.Store, b *bus.Bus, registry agentrt.Registry, cfg Config, metrics *Metrics) *Orchestrator {
	return &Orchestrator{
		store:    store,
		bus:      b,
		registry: registry,
		cfg:      cfg,
		metrics:  metrics,
		agents:   make(map[string]agentrt.Agent),
	}
}

// RegisterAgent adds an agent to the tick loop. A node added mid-tick
// participates starting next tick, per spec.md §4.5 step 1.
func (o *Orchestrator) RegisterAgent(a agentrt.Agent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.agents[a.ID] = a
}

// UnregisterAgent removes an agent, typically after its node is removed.
func (o *Orchestrator) UnregisterAgent(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.agents, id)
}

// Agents returns the current agent set sorted by id, the deterministic
// order spec.md §4.5 requires for reproducibility.
func (o *Orchestrator) Agents() []agentrt.Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]agentrt.Agent, 0, len(o.agents))
	for _, a := range o.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ExternalTimestamp reserves the next logical timestamp for a patch
// applied outside the tick loop (the command router, a cascade triggered
// by an intent) so it interleaves deterministically with tick timestamps
// under the same replay guarantee as Tick itself.
func (o *Orchestrator) ExternalTimestamp() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	return o.seq*1000 + 500
}

// Result reports what happened during one tick.
type Result struct {
	Seq            int64
	PatchesApplied int
	Overran        bool
	Duration       time.Duration
}

// Tick runs one full cycle: snapshot the agent set, Phase A in parallel,
// Phase B serialized, merge and commit patches in agent order, per
// spec.md §4.5.
func (o *Orchestrator) Tick(ctx context.Context) (Result, error) {
	start := time.Now()
	o.mu.Lock()
	o.seq++
	seq := o.seq
	o.mu.Unlock()

	ctx, span := tracer.Start(ctx, "tick", trace.WithAttributes(attribute.Int64("tick.seq", seq)))
	defer span.End()

	agents := o.Agents()

	// Ticks are logical, not wall-clock (spec.md §5): every patch authored
	// during tick `seq` shares one logical timestamp, with origin (the
	// agent id) breaking ties in the same order patches are committed.
	// This is what keeps the event log byte-identical across replays of
	// the same bootstrap and intent sequence.
	tickTimestamp := seq * 1000

	perceptions, err := o.phaseA(ctx, agents, tickTimestamp)
	if err != nil {
		return Result{}, err
	}

	patches := o.phaseB(agents, perceptions, tickTimestamp)

	applied := 0
	for _, p := range patches {
		if p.IsEmpty() && len(p.Warnings) == 0 {
			continue
		}
		if _, err := o.store.ApplyPatch(p); err != nil {
			log.Warn("tick: patch rejected", zap.String("origin", p.Stamp.Origin), zap.Error(err))
			continue
		}
		applied++
	}

	elapsed := time.Since(start)
	overran := o.cfg.TickBudget > 0 && elapsed > o.cfg.TickBudget
	if overran {
		// The tick still commits everything already prepared above;
		// correctness wins over latency, per spec.md §5. The overrun is
		// recorded as a warning-only event so replay stays unaffected.
		warnPatch := scene.NewPatch(tickTimestamp+999, "tick-overrun")
		warnPatch.Warnings = []errkind.Kind{errkind.TickOverrun}
		if _, err := o.store.ApplyPatch(warnPatch); err != nil {
			log.Warn("tick: failed to record overrun event", zap.Error(err))
		}
	}

	if o.metrics != nil {
		o.metrics.Observe(elapsed, overran, applied)
	}
	span.SetAttributes(
		attribute.Int("tick.patches_applied", applied),
		attribute.Bool("tick.overran", overran),
	)

	return Result{Seq: seq, PatchesApplied: applied, Overran: overran, Duration: elapsed}, nil
}

func (o *Orchestrator) phaseA(ctx context.Context, agents []agentrt.Agent, tickTimestamp int64) (map[string]agentrt.Perception, error) {
	_, span := tracer.Start(ctx, "phase_a_perceive")
	defer span.End()

	perceptions := make([]agentrt.Perception, len(agents))
	g, _ := errgroup.WithContext(ctx)
	for i, a := range agents {
		i, a := i, a
		g.Go(func() error {
			p, err := agentrt.PerceiveAndPropose(a, o.store, o.bus, o.registry, o.cfg.Thresholds, o.cfg.TauPropose, tickTimestamp)
			if err != nil {
				return err
			}
			perceptions[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]agentrt.Perception, len(agents))
	for i, a := range agents {
		out[a.ID] = perceptions[i]
	}
	return out, nil
}

func (o *Orchestrator) phaseB(agents []agentrt.Agent, perceptions map[string]agentrt.Perception, tickTimestamp int64) []*scene.Patch {
	patches := make([]*scene.Patch, 0, len(agents))
	for _, a := range agents {
		p, err := agentrt.HandleInboxAndCommit(a, o.store, o.bus, perceptions[a.ID], o.cfg.TauAccept, o.cfg.TauSupersede, tickTimestamp)
		if err != nil {
			log.Warn("phase B failed for agent", zap.String("agent", a.ID), zap.Error(err))
			continue
		}
		patches = append(patches, p)
	}
	return patches
}
