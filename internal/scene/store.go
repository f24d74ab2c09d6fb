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
package scene

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/geom"
	"github.com/tumluliu/spacxt/internal/log"
	"go.uber.org/zap"
)

// EventSink receives every committed event, in commit order. The
// orchestrator's support system and any external visualizer subscribe
// through this to keep their derived indices current, per spec.md §4.6
// ("recomputed incrementally after every committed event").
type EventSink func(Event, Snapshot)

// Store is the scene graph's sole mutable shared resource (spec.md §9,
// "Global mutable state"). It is guarded by a single writer lock so
// readers never observe a partially-applied patch, matching §5's
// "guarded by a single writer lock" shared-resource policy.
type Store struct {
	mu sync.RWMutex

	nodes           map[string]*Node
	nodeFieldStamps map[string]map[string]Stamp
	relations       map[RelationKey]*Relation

	events       []Event
	bootstrapped bool

	sinks []EventSink
}

// New returns an empty store, ready for LoadBootstrap.
func New() *Store {
	return &Store{
		nodes:           make(map[string]*Node),
		nodeFieldStamps: make(map[string]map[string]Stamp),
		relations:       make(map[RelationKey]*Relation),
	}
}

// Subscribe registers fn to be called, in commit order, after every
// applied patch (bootstrap included). It is the store-level half of the
// runtime surface's subscribe(event_handler), spec.md §6.4.
func (s *Store) Subscribe(fn EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, fn)
}

// LoadBootstrap atomically populates nodes and initial relations and
// emits a single "bootstrap" event, per spec.md §4.2. It fails with
// BadBootstrap when a node id is duplicated, a size component is <= 0, a
// confidence is outside [0,1], or a relation refers to an unknown node.
func (s *Store) LoadBootstrap(nodes []*Node, relations []*Relation, stamp Stamp) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bootstrapped {
		return Event{}, errkind.New(errkind.BadBootstrap, "store already bootstrapped; load a fresh store instead")
	}

	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return Event{}, errkind.New(errkind.BadBootstrap, "node missing id")
		}
		if seen[n.ID] {
			return Event{}, errkind.Newf(errkind.BadBootstrap, "duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
		if n.Size.W <= 0 || n.Size.D <= 0 || n.Size.H <= 0 {
			return Event{}, errkind.Newf(errkind.BadBootstrap, "node %q has non-positive size", n.ID)
		}
		if n.Confidence < 0 || n.Confidence > 1 {
			return Event{}, errkind.Newf(errkind.BadBootstrap, "node %q confidence %v out of [0,1]", n.ID, n.Confidence)
		}
	}
	for _, r := range relations {
		if r.A == r.B {
			return Event{}, errkind.Newf(errkind.BadBootstrap, "relation %s has identical endpoints %q", r.Type, r.A)
		}
		if !seen[r.A] || !seen[r.B] {
			return Event{}, errkind.Newf(errkind.BadBootstrap, "relation %s(%s,%s) references unknown node", r.Type, r.A, r.B)
		}
	}

	for _, n := range nodes {
		cp := n.Clone()
		s.nodes[cp.ID] = cp
		s.nodeFieldStamps[cp.ID] = allFieldsStamp(stamp)
	}
	for _, r := range relations {
		cp := r.Clone()
		cp.Stamp = stamp
		if cp.TypeSource == "" && !ReservedRelationTypes[cp.Type] {
			cp.TypeSource = "custom"
		}
		s.relations[cp.Key()] = cp
	}
	s.bootstrapped = true

	ev := Event{
		Seq:       len(s.events),
		Stamp:     stamp,
		Summary:   fmt.Sprintf("bootstrap: %d nodes, %d relations", len(nodes), len(relations)),
		NodeDelta: len(nodes),
		RelDelta:  len(relations),
	}
	s.events = append(s.events, ev)
	s.notify(ev)
	return ev, nil
}

var trackedFields = []string{"name", "class", "pos", "orientation", "size", "affordances", "lom", "confidence", "state", "meta"}

func allFieldsStamp(stamp Stamp) map[string]Stamp {
	m := make(map[string]Stamp, len(trackedFields))
	for _, f := range trackedFields {
		m[f] = stamp
	}
	return m
}

// GetNode returns a deep copy of the node with the given id, or NotFound.
func (s *Store) GetNode(id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, errkind.Newf(errkind.NotFound, "node %q", id)
	}
	return n.Clone(), nil
}

// Neighbors returns all nodes (excluding id itself) within Euclidean
// radius r of node id's position, per spec.md §4.2.
func (s *Store) Neighbors(id string, r float64) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	origin, ok := s.nodes[id]
	if !ok {
		return nil, errkind.Newf(errkind.NotFound, "node %q", id)
	}
	var out []*Node
	for nid, n := range s.nodes {
		if nid == id {
			continue
		}
		if geom.Distance(origin.Pos, n.Pos) <= r {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

// ApplyPatch atomically validates references, adds nodes, updates nodes
// (per-field LWW), adds relations, removes nodes, removes relations, and
// appends one event, per spec.md §4.2. On any validation failure the
// store is left unchanged.
func (s *Store) ApplyPatch(p *Patch) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	finalIDs := make(map[string]bool, len(s.nodes)+len(p.AddNodes))
	for id := range s.nodes {
		finalIDs[id] = true
	}
	for _, n := range p.AddNodes {
		finalIDs[n.ID] = true
	}
	for _, id := range p.RemoveNodes {
		delete(finalIDs, id)
	}

	for _, r := range p.AddRelations {
		if r.A == r.B {
			return Event{}, errkind.Newf(errkind.DanglingRef, "relation %s has identical endpoints %q", r.Type, r.A)
		}
		if !finalIDs[r.A] || !finalIDs[r.B] {
			return Event{}, errkind.Newf(errkind.DanglingRef, "relation %s(%s,%s) references a missing node", r.Type, r.A, r.B)
		}
	}

	nodeDelta, relDelta := 0, 0

	for _, n := range p.AddNodes {
		cp := n.Clone()
		s.nodes[cp.ID] = cp
		s.nodeFieldStamps[cp.ID] = allFieldsStamp(p.Stamp)
		nodeDelta++
	}

	for _, u := range p.UpdateNodes {
		if err := s.applyFieldUpdates(u, p.Stamp); err != nil {
			log.Warn("skipping update for missing node", zap.String("node", u.NodeID))
			continue
		}
	}

	for _, r := range p.AddRelations {
		key := r.Key()
		existing, ok := s.relations[key]
		if ok && !p.Stamp.GreaterThan(existing.Stamp) {
			continue // idempotent add: the newer record wins, per spec.md §4.2
		}
		cp := r.Clone()
		cp.Stamp = p.Stamp
		if cp.TypeSource == "" && !ReservedRelationTypes[cp.Type] {
			cp.TypeSource = "custom"
		}
		if !ok {
			relDelta++
		}
		s.relations[key] = cp
	}

	for _, id := range p.RemoveNodes {
		if _, ok := s.nodes[id]; !ok {
			continue
		}
		delete(s.nodes, id)
		delete(s.nodeFieldStamps, id)
		for key := range s.relations {
			if key.A == id || key.B == id {
				delete(s.relations, key)
				relDelta--
			}
		}
		nodeDelta--
	}

	for _, key := range p.RemoveRelations {
		existing, ok := s.relations[key]
		if !ok {
			continue
		}
		if p.Stamp.GreaterOrEqual(existing.Stamp) {
			delete(s.relations, key)
			relDelta--
		}
	}

	ev := Event{
		Seq:       len(s.events),
		Stamp:     p.Stamp,
		Summary:   fmt.Sprintf("patch from %s: %+d nodes, %+d relations", p.Stamp.Origin, nodeDelta, relDelta),
		Warnings:  p.Warnings,
		NodeDelta: nodeDelta,
		RelDelta:  relDelta,
	}
	s.events = append(s.events, ev)
	s.notify(ev)
	return ev, nil
}

// applyFieldUpdates merges one node's field delta under per-field LWW.
// State and Meta keys are merged individually rather than replaced
// wholesale, the same last-non-zero-field-wins idiom the teacher's
// session.Session.Merge uses, generalized to timestamped per-field stamps.
func (s *Store) applyFieldUpdates(u NodeUpdate, stamp Stamp) error {
	n, ok := s.nodes[u.NodeID]
	if !ok {
		return errkind.Newf(errkind.NotFound, "node %q", u.NodeID)
	}
	stamps := s.nodeFieldStamps[u.NodeID]
	if stamps == nil {
		stamps = make(map[string]Stamp)
		s.nodeFieldStamps[u.NodeID] = stamps
	}

	wins := func(field string) bool {
		cur, ok := stamps[field]
		if !ok || stamp.GreaterThan(cur) {
			stamps[field] = stamp
			return true
		}
		return false
	}

	f := u.Fields
	if f.Name != nil && wins("name") {
		n.Name = *f.Name
	}
	if f.Class != nil && wins("class") {
		n.Class = *f.Class
	}
	if f.Pos != nil && wins("pos") {
		n.Pos = *f.Pos
	}
	if f.Orientation != nil && wins("orientation") {
		n.Orientation = *f.Orientation
	}
	if f.Size != nil && wins("size") {
		n.Size = *f.Size
	}
	if f.Affordances != nil && wins("affordances") {
		n.Affordances = append([]string(nil), (*f.Affordances)...)
	}
	if f.LevelOfMobility != nil && wins("lom") {
		n.LevelOfMobility = *f.LevelOfMobility
	}
	if f.Confidence != nil && wins("confidence") {
		n.Confidence = *f.Confidence
	}
	if len(f.State) > 0 && wins("state") {
		if n.State == nil {
			n.State = map[string]any{}
		}
		for k, v := range f.State {
			n.State[k] = v
		}
	}
	if len(f.Meta) > 0 && wins("meta") {
		if n.Meta == nil {
			n.Meta = map[string]any{}
		}
		for k, v := range f.Meta {
			n.Meta[k] = v
		}
	}
	return nil
}

func (s *Store) notify(ev Event) {
	if len(s.sinks) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, sink := range s.sinks {
		sink(ev, snap)
	}
}

// Snapshot is a deep, read-only copy of the store suitable for export,
// visualization, or what-if simulation, per spec.md §4.2.
type Snapshot struct {
	Nodes     []*Node
	Relations []*Relation
}

// NodeByID indexes the snapshot's nodes for O(1) lookup.
func (s Snapshot) NodeByID() map[string]*Node {
	out := make(map[string]*Node, len(s.Nodes))
	for _, n := range s.Nodes {
		out[n.ID] = n
	}
	return out
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	nodes := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n.Clone())
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	rels := make([]*Relation, 0, len(s.relations))
	for _, r := range s.relations {
		rels = append(rels, r.Clone())
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].Type != rels[j].Type {
			return rels[i].Type < rels[j].Type
		}
		if rels[i].A != rels[j].A {
			return rels[i].A < rels[j].A
		}
		return rels[i].B < rels[j].B
	})
	return Snapshot{Nodes: nodes, Relations: rels}
}

// Events returns the full committed event log, in commit order. It is
// the ground truth for replay and audit, per spec.md §3.1.
func (s *Store) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ContextObject is a compact per-node record for as_context / §4.8 output.
type ContextObject struct {
	ID    string
	Name  string
	Class string
	Pos   geom.Vec3
}

// Context is the compact structure as_context returns to external prompt
// builders, per spec.md §4.2.
type Context struct {
	Objects   []ContextObject
	TopK      []ContextObject
	Relations []*Relation
	Summary   string
}

// AsContext returns objects within roi of viewerPose, the k nearest among
// them, and relations between members of that set, per spec.md §4.2.
func (s *Store) AsContext(viewerPose geom.Vec3, roi float64, k int) Context {
	snap := s.Snapshot()

	var within []ContextObject
	dist := make(map[string]float64, len(snap.Nodes))
	for _, n := range snap.Nodes {
		d := geom.Distance(viewerPose, n.Pos)
		if d <= roi {
			within = append(within, ContextObject{ID: n.ID, Name: n.Name, Class: n.Class, Pos: n.Pos})
			dist[n.ID] = d
		}
	}
	sort.Slice(within, func(i, j int) bool { return dist[within[i].ID] < dist[within[j].ID] })

	topK := within
	if k >= 0 && k < len(topK) {
		topK = topK[:k]
	}

	inSet := make(map[string]bool, len(within))
	for _, o := range within {
		inSet[o.ID] = true
	}
	var rels []*Relation
	for _, r := range snap.Relations {
		if inSet[r.A] && inSet[r.B] {
			rels = append(rels, r)
		}
	}

	return Context{
		Objects:   within,
		TopK:      topK,
		Relations: rels,
		Summary:   fmt.Sprintf("%d objects within %.2f units, %d relations among them", len(within), roi, len(rels)),
	}
}
