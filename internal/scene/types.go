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
// Package scene implements the scene graph store (C2) and the patch/event
// model (C3): nodes, relations, an append-only event log, and last-writer-
// wins patch application.
package scene

import (
	"github.com/tumluliu/spacxt/internal/geom"
)

// Quaternion is a normalized orientation; {0,0,0,1} is identity.
type Quaternion struct {
	X, Y, Z, W float64
}

// Node is a physical object or room, per spec.md §3.1.
type Node struct {
	ID                string
	Name              string
	Class             string
	Pos               geom.Vec3
	Orientation       Quaternion
	Size              geom.Size
	Affordances       []string
	LevelOfMobility   string // fixed | low | medium | high
	Confidence        float64
	State             map[string]any
	Meta              map[string]any
	IsRoomOrContainer bool
}

// Body projects a Node to the shape the topology kit (internal/geom)
// operates on.
func (n *Node) Body() geom.Body {
	return geom.Body{
		ID:                n.ID,
		Pos:               n.Pos,
		Size:              n.Size,
		Affordances:       n.Affordances,
		LevelOfMobility:   n.LevelOfMobility,
		IsRoomOrContainer: n.IsRoomOrContainer,
	}
}

func (n *Node) HasAffordance(tag string) bool {
	for _, a := range n.Affordances {
		if a == tag {
			return true
		}
	}
	return false
}

// Clone deep-copies a Node so snapshots and what-if simulations never
// alias the store's own records.
func (n *Node) Clone() *Node {
	cp := *n
	cp.Affordances = append([]string(nil), n.Affordances...)
	cp.State = cloneAnyMap(n.State)
	cp.Meta = cloneAnyMap(n.Meta)
	return &cp
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RelationKey identifies a Relation by its (type, a, b) triple, per
// spec.md §3.1.
type RelationKey struct {
	Type string
	A, B string
}

// Relation is a typed, directed edge between two nodes, per spec.md §3.1.
type Relation struct {
	Type       string
	A, B       string
	Props      map[string]float64
	Confidence float64
	Stamp      Stamp
	// TypeSource marks relations outside the reserved set, per spec.md §4.8.
	TypeSource string
}

func (r Relation) Key() RelationKey { return RelationKey{r.Type, r.A, r.B} }

func (r *Relation) Clone() *Relation {
	cp := *r
	cp.Props = make(map[string]float64, len(r.Props))
	for k, v := range r.Props {
		cp.Props[k] = v
	}
	return &cp
}

// ReservedRelationTypes is the closed subset named in spec.md §4.1.
var ReservedRelationTypes = map[string]bool{
	"near": true, "far": true,
	"on_top_of": true, "supports": true,
	"beside": true, "above": true, "below": true,
	"in": true,
}

// Stamp is a (timestamp, origin) pair used for last-writer-wins ordering,
// per spec.md §4.2.
type Stamp struct {
	Timestamp int64
	Origin    string
}

// GreaterThan compares two stamps lexicographically: timestamp first,
// then origin, as spec.md §4.2 requires for deterministic tie-breaking.
func (s Stamp) GreaterThan(o Stamp) bool {
	if s.Timestamp != o.Timestamp {
		return s.Timestamp > o.Timestamp
	}
	return s.Origin > o.Origin
}

// GreaterOrEqual reports whether s is >= o under the same ordering.
func (s Stamp) GreaterOrEqual(o Stamp) bool {
	return s == o || s.GreaterThan(o)
}
