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
// Package geom implements the topology kit: pure predicates over
// Node-shaped records (distance, AABB overlap, support/beside/above-below
// predicates). None of it touches the scene store; callers decide whether
// to propose a candidate relation.
package geom

import "math"

// Vec3 is a position or offset in the shared scene frame.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Size is an axis-aligned width/depth/height, treated as an OBB assumed
// axis-aligned for relation tests per spec.md §3.1.
type Size struct {
	W, D, H float64
}

// Body is the subset of a Node's fields the topology kit needs.
type Body struct {
	ID   string
	Pos  Vec3
	Size Size
	// Affordances and LevelOfMobility feed the on_top_of/supports and
	// containment predicates.
	Affordances       []string
	LevelOfMobility   string
	IsRoomOrContainer bool
}

// HasAffordance reports whether b carries the given affordance tag.
func (b Body) HasAffordance(tag string) bool {
	for _, a := range b.Affordances {
		if a == tag {
			return true
		}
	}
	return false
}

// Default thresholds, spec.md §4.1 / §6.5.
const (
	DefaultTauNear    = 0.75
	DefaultTauContact = 0.05
	DefaultTauLevel   = 0.15
	DefaultTauBeside  = 1.2
	DefaultEpsilon    = 0.02
	TauChain          = 3
)

// TauFar is twice tau_near, per spec.md §4.1.
func TauFar(tauNear float64) float64 { return 2 * tauNear }

// Distance returns the Euclidean distance between two positions.
func Distance(a, b Vec3) float64 {
	d := a.Sub(b)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Candidate is a proposed relation descriptor, as described in spec.md
// §4.1: "{type, a, b, conf, props}". The caller decides whether to act on
// it.
type Candidate struct {
	Type  string
	A, B  string
	Conf  float64
	Props map[string]float64
}

// aabbXYOverlapArea returns the area of overlap between a's and b's XY
// footprints, or 0 when they do not overlap.
func aabbXYOverlapArea(a, b Body) float64 {
	axMin, axMax := a.Pos.X-a.Size.W/2, a.Pos.X+a.Size.W/2
	ayMin, ayMax := a.Pos.Y-a.Size.D/2, a.Pos.Y+a.Size.D/2
	bxMin, bxMax := b.Pos.X-b.Size.W/2, b.Pos.X+b.Size.W/2
	byMin, byMax := b.Pos.Y-b.Size.D/2, b.Pos.Y+b.Size.D/2

	ox := math.Min(axMax, bxMax) - math.Max(axMin, bxMin)
	oy := math.Min(ayMax, byMax) - math.Max(ayMin, byMin)
	if ox <= 0 || oy <= 0 {
		return 0
	}
	return ox * oy
}

func footprintArea(b Body) float64 { return b.Size.W * b.Size.D }

// Near evaluates the near/far predicate for (a,b) with the given tau_near.
// It returns near when d <= tau_near and far when d >= tau_far; for a
// distance strictly between the two neither applies and ok is false.
func Near(a, b Body, tauNear float64) (Candidate, bool) {
	d := Distance(a.Pos, b.Pos)
	if d <= tauNear {
		conf := clamp(1-d/tauNear, 0.1, 1)
		return Candidate{Type: "near", A: a.ID, B: b.ID, Conf: conf, Props: map[string]float64{"dist": d}}, true
	}
	tauFar := TauFar(tauNear)
	if d >= tauFar {
		conf := clamp((d-tauFar)/tauFar, 0.1, 1)
		return Candidate{Type: "far", A: a.ID, B: b.ID, Conf: conf, Props: map[string]float64{"dist": d}}, true
	}
	return Candidate{}, false
}

// OnTopOf evaluates whether a rests on b, per spec.md §4.1(on_top_of/supports).
// When it holds, both the directed on_top_of(a,b) and its inverse
// supports(b,a) are returned.
func OnTopOf(a, b Body, tauContact, epsilon float64) (onTop, supports Candidate, ok bool) {
	overlap := aabbXYOverlapArea(a, b)
	footprint := footprintArea(a)
	if footprint <= 0 || overlap/footprint < 0.5 {
		return Candidate{}, Candidate{}, false
	}

	g := (a.Pos.Z - a.Size.H/2) - (b.Pos.Z + b.Size.H/2)
	if g < -epsilon || g > tauContact {
		return Candidate{}, Candidate{}, false
	}

	if !b.HasAffordance("support") && b.LevelOfMobility != "fixed" && b.LevelOfMobility != "low" {
		return Candidate{}, Candidate{}, false
	}

	conf := clamp(1-math.Abs(g)/tauContact, 0.5, 0.99)
	heightDiff := b.Pos.Z - a.Pos.Z

	onTop = Candidate{Type: "on_top_of", A: a.ID, B: b.ID, Conf: conf, Props: map[string]float64{"height_diff": heightDiff}}
	supports = Candidate{Type: "supports", A: b.ID, B: a.ID, Conf: conf, Props: map[string]float64{"height_diff": heightDiff}}
	return onTop, supports, true
}

// Beside evaluates the beside predicate, per spec.md §4.1.
func Beside(a, b Body, tauLevel, tauBeside float64) (Candidate, bool) {
	if math.Abs(a.Pos.Z-b.Pos.Z) > tauLevel {
		return Candidate{}, false
	}
	dxy := math.Hypot(a.Pos.X-b.Pos.X, a.Pos.Y-b.Pos.Y)
	if dxy > tauBeside {
		return Candidate{}, false
	}
	conf := clamp(1-dxy/tauBeside, 0.1, 1)
	return Candidate{Type: "beside", A: a.ID, B: b.ID, Conf: conf, Props: map[string]float64{"dist": dxy}}, true
}

// AboveBelow evaluates the above/below predicate: XY-projections overlap
// but the vertical gap exceeds tau_contact. Returns "above" when a is
// higher than b, "below" otherwise.
func AboveBelow(a, b Body, tauContact float64) (Candidate, bool) {
	overlap := aabbXYOverlapArea(a, b)
	footprint := footprintArea(a)
	if footprint <= 0 || overlap <= 0 {
		return Candidate{}, false
	}
	g := (a.Pos.Z - a.Size.H/2) - (b.Pos.Z + b.Size.H/2)
	if g <= tauContact {
		return Candidate{}, false
	}
	frac := clamp(overlap/footprint, 0, 1)
	typ := "above"
	if a.Pos.Z < b.Pos.Z {
		typ = "below"
	}
	return Candidate{Type: typ, A: a.ID, B: b.ID, Conf: frac, Props: map[string]float64{"height_diff": b.Pos.Z - a.Pos.Z}}, true
}

// In evaluates containment of a's centroid inside b's AABB; only
// meaningful when b is a room or a container-affordance node. Confidence
// is fixed at 1.0, per spec.md §4.1.
func In(a, b Body) (Candidate, bool) {
	if !b.IsRoomOrContainer && !b.HasAffordance("container") {
		return Candidate{}, false
	}
	bxMin, bxMax := b.Pos.X-b.Size.W/2, b.Pos.X+b.Size.W/2
	byMin, byMax := b.Pos.Y-b.Size.D/2, b.Pos.Y+b.Size.D/2
	bzMin, bzMax := b.Pos.Z-b.Size.H/2, b.Pos.Z+b.Size.H/2
	if a.Pos.X < bxMin || a.Pos.X > bxMax || a.Pos.Y < byMin || a.Pos.Y > byMax || a.Pos.Z < bzMin || a.Pos.Z > bzMax {
		return Candidate{}, false
	}
	return Candidate{Type: "in", A: a.ID, B: b.ID, Conf: 1.0, Props: map[string]float64{}}, true
}

// priority orders candidate relation types for the same (a,b) pair, per
// spec.md §4.1: "on_top_of > beside > near > above/below > far".
var priority = map[string]int{
	"on_top_of": 0,
	"beside":    1,
	"near":      2,
	"above":     3,
	"below":     3,
	"far":       4,
}

// Thresholds bundles the tunables every Evaluate call needs, mirroring
// config.Thresholds without importing the config package (geom stays
// dependency-free, as a pure predicate library should).
type Thresholds struct {
	TauNear    float64
	TauContact float64
	TauLevel   float64
	TauBeside  float64
	Epsilon    float64
}

// DefaultThresholds returns the spec.md §6.5 defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TauNear:    DefaultTauNear,
		TauContact: DefaultTauContact,
		TauLevel:   DefaultTauLevel,
		TauBeside:  DefaultTauBeside,
		Epsilon:    DefaultEpsilon,
	}
}

// Evaluate runs every applicable predicate for the ordered pair (a,b) and
// returns only the single highest-priority positive candidate, per
// spec.md §4.1's tie-break rule. It also returns the inverse "supports"
// candidate when on_top_of wins, since that predicate alone emits two
// relations.
func Evaluate(a, b Body, t Thresholds) (primary Candidate, inverse *Candidate, ok bool) {
	var candidates []Candidate
	var supportsInverse *Candidate

	if onTop, supports, ok := OnTopOf(a, b, t.TauContact, t.Epsilon); ok {
		candidates = append(candidates, onTop)
		supportsInverse = &supports
	}
	if c, ok := Beside(a, b, t.TauLevel, t.TauBeside); ok {
		candidates = append(candidates, c)
	}
	if c, ok := Near(a, b, t.TauNear); ok {
		candidates = append(candidates, c)
	}
	if c, ok := AboveBelow(a, b, t.TauContact); ok {
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		return Candidate{}, nil, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if priority[c.Type] < priority[best.Type] {
			best = c
		}
	}

	if best.Type == "on_top_of" {
		return best, supportsInverse, true
	}
	return best, nil, true
}
