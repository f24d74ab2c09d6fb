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
// Package runtime wires the store, bus, agent runtime, orchestrator,
// support engine, spatial context assembler, question dispatcher, and
// command router into the single programmatic surface spec.md §6.4 names:
// load_bootstrap, tick, apply_intent, ask, snapshot, subscribe.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tumluliu/spacxt/internal/agentrt"
	"github.com/tumluliu/spacxt/internal/bootstrap"
	"github.com/tumluliu/spacxt/internal/bus"
	"github.com/tumluliu/spacxt/internal/config"
	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/geom"
	"github.com/tumluliu/spacxt/internal/log"
	"github.com/tumluliu/spacxt/internal/ordered"
	"github.com/tumluliu/spacxt/internal/orchestrator"
	"github.com/tumluliu/spacxt/internal/pubsub"
	"github.com/tumluliu/spacxt/internal/qa"
	"github.com/tumluliu/spacxt/internal/router"
	"github.com/tumluliu/spacxt/internal/scene"
	"github.com/tumluliu/spacxt/internal/spatialctx"
	"github.com/tumluliu/spacxt/internal/support"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("spacxt/runtime")

// Option configures New beyond cfg. Most callers need none: the zero value
// of every option is the same "private metrics registry" behavior New had
// before options existed.
type Option func(*engineOptions)

type engineOptions struct {
	registry prometheus.Registerer
}

// WithMetricsRegistry registers the orchestrator's tick-loop metrics on reg
// instead of a private, unreachable registry, so a caller exposing
// /metrics (cmd/spacxtd's serve command) can actually scrape them.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(o *engineOptions) { o.registry = reg }
}

// EngineEvent is what Subscribe delivers: the committed event plus the
// freshly assembled spatial context, so a subscriber never has to call
// back into the engine to render it.
type EngineEvent struct {
	Event   scene.Event
	Context spatialctx.Context
}

// Engine is the runtime surface, per spec.md §6.4.
type Engine struct {
	cfg *config.Config

	store        *scene.Store
	bus          *bus.Bus
	orchestrator *orchestrator.Orchestrator
	router       *router.Router

	mu          sync.RWMutex
	supportIdx  *support.Index
	classOrder  *ordered.Map[string, agentrt.ClassConfig]

	subMu       sync.Mutex
	subscribers []subscriber
	nextSubID   uint64
}

type subscriber struct {
	id uint64
	fn func(pubsub.Event[EngineEvent])
}

// New builds an Engine from cfg. Call LoadBootstrap before Tick or
// ApplyIntent.
func New(cfg *config.Config, opts ...Option) *Engine {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	store := scene.New()
	b := bus.New()
	registry := agentrt.Registry{}

	orchCfg := orchestrator.Config{
		Thresholds: geom.Thresholds{
			TauNear:    cfg.Thresholds.TauNear,
			TauContact: cfg.Thresholds.TauContact,
			TauLevel:   geom.DefaultTauLevel,
			TauBeside:  geom.DefaultTauBeside,
			Epsilon:    geom.DefaultEpsilon,
		},
		TauPropose:   cfg.Thresholds.TauPropose,
		TauAccept:    cfg.Thresholds.TauAccept,
		TauSupersede: cfg.Thresholds.TauSupersede,
		TickBudget:   time.Duration(cfg.TickBudgetMS) * time.Millisecond,
	}
	metrics := orchestrator.NewMetrics(o.registry)
	orch := orchestrator.New(store, b, registry, orchCfg, metrics)

	e := &Engine{
		cfg:          cfg,
		store:        store,
		bus:          b,
		orchestrator: orch,
		router:       router.NewRouter(router.DefaultClassCatalog, geom.DefaultThresholds()),
		supportIdx:   support.NewIndex(),
		classOrder:   ordered.New[string, agentrt.ClassConfig](),
	}
	store.Subscribe(e.onCommit)
	return e
}

// RegisterAgentClass records a per-class ClassConfig for diagnostic
// listing, preserving registration order. The record stays in the Engine:
// it is not added to the agent registry the orchestrator reads, so it does
// not change any agent's perception radius. The tick loop always
// dispatches agents in sorted-by-id order.
func (e *Engine) RegisterAgentClass(class string, cfg agentrt.ClassConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.classOrder.Set(class, cfg)
}

// RegisteredClasses returns every agent class registered so far, in
// registration order.
func (e *Engine) RegisteredClasses() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.classOrder.Keys()
}

// LoadBootstrap parses raw per spec.md §6.1, populates the store, and
// registers one agent per non-room node.
func (e *Engine) LoadBootstrap(raw []byte, origin string) (scene.Event, error) {
	nodes, rels, err := bootstrap.Load(raw)
	if err != nil {
		return scene.Event{}, err
	}
	return e.seed(nodes, rels, origin)
}

// Resume re-seeds the store from a prior checkpoint's nodes/relations
// (internal/scene/sqlitelog.Log.Resume), skipping the §6.1 JSON parse since
// the checkpoint already holds typed *scene.Node/*scene.Relation values.
// Used by cmd/spacxtd's serve command to recover across restarts.
func (e *Engine) Resume(nodes []*scene.Node, relations []*scene.Relation, origin string) (scene.Event, error) {
	return e.seed(nodes, relations, origin)
}

func (e *Engine) seed(nodes []*scene.Node, rels []*scene.Relation, origin string) (scene.Event, error) {
	ev, err := e.store.LoadBootstrap(nodes, rels, scene.Stamp{Origin: origin})
	if err != nil {
		return scene.Event{}, err
	}

	for _, n := range nodes {
		if n.IsRoomOrContainer {
			continue
		}
		e.orchestrator.RegisterAgent(agentrt.Agent{ID: n.ID, Class: n.Class})
	}
	return ev, nil
}

// AttachEventSink subscribes sink directly to the underlying store, in
// addition to the Engine's own onCommit handler. Used to wire
// internal/scene/sqlitelog's durable checkpoint log without exposing the
// store itself.
func (e *Engine) AttachEventSink(sink scene.EventSink) {
	e.store.Subscribe(sink)
}

// Tick runs one orchestrator cycle.
func (e *Engine) Tick(ctx context.Context) (orchestrator.Result, error) {
	return e.orchestrator.Tick(ctx)
}

// ApplyIntent routes intent through the command router and applies the
// resulting patch, per spec.md §6.3. Query intents are rejected: call Ask
// instead. move_object and remove_object additionally trigger the §4.6/§4.7
// support cascade against the committed result, so a real move or removal
// honors the same follow-up patch SimulateRemoval's what-if path already
// produces.
func (e *Engine) ApplyIntent(intent router.Intent, origin string) (scene.Event, error) {
	switch intent.Type {
	case router.RemoveObject:
		return e.applyRemove(intent, origin)
	case router.MoveObject:
		return e.applyMove(intent, origin)
	default:
		timestamp := e.orchestrator.ExternalTimestamp()
		patch, err := e.router.Route(intent, e.store.Snapshot(), timestamp, origin)
		if err != nil {
			return scene.Event{}, err
		}
		return e.store.ApplyPatch(patch)
	}
}

// applyMove routes a move_object intent, commits it, then cascades the same
// delta to every recursive dependent of the moved node (spec.md §4.6,
// Testable Property 6, scenario S3), so e.g. moving table_1 carries cup_1
// along with it instead of leaving it behind.
func (e *Engine) applyMove(intent router.Intent, origin string) (scene.Event, error) {
	timestamp := e.orchestrator.ExternalTimestamp()
	snap := e.store.Snapshot()
	before, ok := snap.NodeByID()[intent.NodeID]
	if !ok {
		return scene.Event{}, errkind.Newf(errkind.DanglingRef, "move_object: node %q does not exist", intent.NodeID)
	}
	oldPos := before.Pos

	patch, err := e.router.Route(intent, snap, timestamp, origin)
	if err != nil {
		return scene.Event{}, err
	}
	ev, err := e.store.ApplyPatch(patch)
	if err != nil {
		return scene.Event{}, err
	}

	var newPos geom.Vec3
	var moved bool
	for _, u := range patch.UpdateNodes {
		if u.NodeID == intent.NodeID && u.Fields.Pos != nil {
			newPos, moved = *u.Fields.Pos, true
		}
	}
	if !moved {
		return ev, nil
	}
	delta := newPos.Sub(oldPos)
	if delta == (geom.Vec3{}) {
		return ev, nil
	}

	e.mu.RLock()
	idx := e.supportIdx
	e.mu.RUnlock()

	cascade := idx.CascadeMove(e.store.Snapshot(), intent.NodeID, delta, scene.Stamp{Timestamp: timestamp, Origin: origin})
	if cascade == nil {
		return ev, nil
	}
	return e.store.ApplyPatch(cascade)
}

// applyRemove routes a remove_object intent through the support index's
// removal cascade instead of the router's bare RemoveNodes patch, so an
// actual removal drops non-fixed dependents to their next lower
// ground-stable surface (or records a LostSupport warning for fixed ones),
// per spec.md §4.7, the same cascade SimulateRemoval already runs as a
// what-if against a cloned store.
func (e *Engine) applyRemove(intent router.Intent, origin string) (scene.Event, error) {
	if intent.NodeID == "" {
		return scene.Event{}, errkind.New(errkind.BadIntent, "remove_object requires a node id")
	}
	snap := e.store.Snapshot()
	if _, ok := snap.NodeByID()[intent.NodeID]; !ok {
		return scene.Event{}, errkind.Newf(errkind.DanglingRef, "remove_object: node %q does not exist", intent.NodeID)
	}

	e.mu.RLock()
	idx := e.supportIdx
	e.mu.RUnlock()

	timestamp := e.orchestrator.ExternalTimestamp()
	patch := idx.RemovalCascade(snap, intent.NodeID, scene.Stamp{Timestamp: timestamp, Origin: origin}, geom.DefaultThresholds())
	return e.store.ApplyPatch(patch)
}

// Ask classifies and answers question against the current spatial
// context, per spec.md §4.9.
func (e *Engine) Ask(question string) qa.Answer {
	_, span := tracer.Start(context.Background(), "ask")
	defer span.End()

	ctx := e.assembledContext()
	return qa.Dispatch(question, ctx, e)
}

// SimulateRemoval implements qa.RemovalSimulator: it runs the §4.7
// removal cascade against a store clone, never touching the live store.
func (e *Engine) SimulateRemoval(targetID string) (qa.SimulationResult, error) {
	snap := e.store.Snapshot()
	if _, ok := snap.NodeByID()[targetID]; !ok {
		return qa.SimulationResult{}, errkind.Newf(errkind.NotFound, "node %q", targetID)
	}

	e.mu.RLock()
	idx := e.supportIdx
	e.mu.RUnlock()

	patch := idx.RemovalCascade(snap, targetID, scene.Stamp{Timestamp: 0, Origin: "what-if"}, geom.DefaultThresholds())

	sim := scene.New()
	if _, err := sim.LoadBootstrap(snap.Nodes, snap.Relations, scene.Stamp{Origin: "what-if-seed"}); err != nil {
		return qa.SimulationResult{}, err
	}
	before := sim.Snapshot()
	beforeKeys := map[scene.RelationKey]bool{}
	for _, r := range before.Relations {
		beforeKeys[r.Key()] = true
	}

	if _, err := sim.ApplyPatch(patch); err != nil {
		return qa.SimulationResult{}, err
	}

	after := sim.Snapshot()
	afterKeys := map[scene.RelationKey]bool{}
	for _, r := range after.Relations {
		afterKeys[r.Key()] = true
	}

	var vanished []scene.RelationKey
	for k := range beforeKeys {
		if !afterKeys[k] {
			vanished = append(vanished, k)
		}
	}

	var fell []string
	for _, u := range patch.UpdateNodes {
		fell = append(fell, u.NodeID)
	}
	allNonFixed := true
	byID := snap.NodeByID()
	for _, x := range idx.Dependents(targetID) {
		if n, ok := byID[x]; ok && n.LevelOfMobility == "fixed" {
			allNonFixed = false
		}
	}

	return qa.SimulationResult{
		FellToFloor:       fell,
		VanishedRelations: vanished,
		Warnings:          patch.Warnings,
		AllNonFixed:       allNonFixed,
	}, nil
}

// Snapshot returns the store's current deep-copy snapshot.
func (e *Engine) Snapshot() scene.Snapshot {
	return e.store.Snapshot()
}

// AssembledContext returns the current spatial context (exported for the
// HTTP layer, which needs it independent of asking a question).
func (e *Engine) AssembledContext() spatialctx.Context {
	return e.assembledContext()
}

func (e *Engine) assembledContext() spatialctx.Context {
	e.mu.RLock()
	idx := e.supportIdx
	e.mu.RUnlock()
	return spatialctx.Assemble(e.store.Snapshot(), idx, e.cfg.ClusterRules.ClassToClusterType, geom.Vec3{}, 0.6)
}

// Subscribe registers fn to receive every committed event, wrapped in the
// pubsub envelope: Created for the bootstrap event, Deleted when the
// patch removed nodes, Updated otherwise. The returned func deregisters fn;
// callers with a bounded lifetime (an SSE connection) must call it once
// they stop reading, or the Engine keeps notifying a dead receiver forever.
func (e *Engine) Subscribe(fn func(pubsub.Event[EngineEvent])) (unsubscribe func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers = append(e.subscribers, subscriber{id: id, fn: fn})
	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		for i, s := range e.subscribers {
			if s.id == id {
				e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
				break
			}
		}
	}
}

// onCommit is the scene.EventSink passed to store.Subscribe: it rebuilds
// the support index under the same notification the store uses for every
// committed patch, per spec.md §4.6 ("recomputed incrementally after
// every committed event"), then fans out to Engine subscribers.
func (e *Engine) onCommit(ev scene.Event, snap scene.Snapshot) {
	idx := support.NewIndex()
	idx.Rebuild(snap)

	e.mu.Lock()
	e.supportIdx = idx
	e.mu.Unlock()

	e.subMu.Lock()
	subs := make([]subscriber, len(e.subscribers))
	copy(subs, e.subscribers)
	e.subMu.Unlock()
	if len(subs) == 0 {
		return
	}

	ctx := spatialctx.Assemble(snap, idx, e.cfg.ClusterRules.ClassToClusterType, geom.Vec3{}, 0.6)
	payload := EngineEvent{Event: ev, Context: ctx}

	var wrapped pubsub.Event[EngineEvent]
	switch {
	case ev.Seq == 0:
		wrapped = pubsub.NewCreatedEvent(payload)
	case ev.NodeDelta < 0:
		wrapped = pubsub.NewDeletedEvent(payload)
	default:
		wrapped = pubsub.NewUpdatedEvent(payload)
	}
	for _, s := range subs {
		s.fn(wrapped)
	}
}

// Logger exposes the engine's structured logger for callers that want to
// attach request-scoped fields.
func (e *Engine) Logger() *zap.Logger {
	return log.Logger()
}
