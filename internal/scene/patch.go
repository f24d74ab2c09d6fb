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
	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/geom"
)

// NodeFields carries per-field updates for one node; a nil pointer means
// "leave this field alone". State and Meta are merged key-by-key rather
// than replaced wholesale, matching the teacher's last-non-zero-field-wins
// merge idiom (internal/session.Session.Merge) generalized to LWW.
type NodeFields struct {
	Name            *string
	Class           *string
	Pos             *geom.Vec3
	Orientation     *Quaternion
	Size            *geom.Size
	Affordances     *[]string
	LevelOfMobility *string
	Confidence      *float64
	State           map[string]any
	Meta            map[string]any
}

// NodeUpdate targets one existing node with a NodeFields delta.
type NodeUpdate struct {
	NodeID string
	Fields NodeFields
}

// Patch is a transactional delta, per spec.md §3.1/§4.2. Every patch
// carries a monotonically non-decreasing Stamp used for LWW resolution of
// every field and relation it touches.
type Patch struct {
	Stamp           Stamp
	AddNodes        []*Node
	UpdateNodes     []NodeUpdate
	AddRelations    []*Relation
	RemoveRelations []RelationKey
	RemoveNodes     []string
	// Warnings lets a patch author (the support system, at removal-cascade
	// time) attach physical-consistency warnings that must never reject
	// the patch, per spec.md §7.
	Warnings []errkind.Kind
}

// NewPatch builds an empty patch stamped with the given timestamp/origin.
func NewPatch(timestamp int64, origin string) *Patch {
	return &Patch{Stamp: Stamp{Timestamp: timestamp, Origin: origin}}
}

func (p *Patch) IsEmpty() bool {
	return len(p.AddNodes) == 0 && len(p.UpdateNodes) == 0 &&
		len(p.AddRelations) == 0 && len(p.RemoveRelations) == 0
}

// Event is an append-only record of a committed patch, per spec.md §3.1.
// The event log is the source of truth for replay and audit.
type Event struct {
	Seq       int
	Stamp     Stamp
	Summary   string
	Warnings  []errkind.Kind
	NodeDelta int
	RelDelta  int
}
