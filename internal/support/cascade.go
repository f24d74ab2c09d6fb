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
package support

import (
	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/geom"
	"github.com/tumluliu/spacxt/internal/scene"
)

// CascadeOrigin tags every cascade patch, per spec.md §4.6.
const CascadeOrigin = "support-cascade"

// CascadeMove builds the follow-up patch that applies delta to every
// recursive dependent of y, preserving relative offsets, per spec.md
// §4.6. Rotation propagation is left as a documented limitation
// (spec.md §9 open question (i)): only translation cascades; rotation is
// never propagated and config.CascadeRotation is not read.
func (idx *Index) CascadeMove(snap scene.Snapshot, y string, delta geom.Vec3, triggerStamp scene.Stamp) *scene.Patch {
	deps := idx.RecursiveDependents(y)
	if len(deps) == 0 {
		return nil
	}
	byID := snap.NodeByID()

	patch := scene.NewPatch(triggerStamp.Timestamp+1, CascadeOrigin)
	for _, x := range deps {
		n, ok := byID[x]
		if !ok {
			continue
		}
		newPos := n.Pos.Add(delta)
		patch.UpdateNodes = append(patch.UpdateNodes, scene.NodeUpdate{
			NodeID: x,
			Fields: scene.NodeFields{Pos: &newPos},
		})
	}
	return patch
}

// RemovalCascade implements spec.md §4.7: removing y cascades to every
// dependent x — kept in place with a LostSupport warning if x is fixed,
// otherwise dropped to the next lower ground-stable surface found by
// re-evaluating the topology kit on the remaining nodes, or to the room
// floor if none is found.
func (idx *Index) RemovalCascade(snap scene.Snapshot, y string, triggerStamp scene.Stamp, th geom.Thresholds) *scene.Patch {
	byID := snap.NodeByID()
	deps := idx.Dependents(y)

	patch := scene.NewPatch(triggerStamp.Timestamp+1, "removal-cascade")
	patch.RemoveNodes = []string{y}

	remaining := make([]*scene.Node, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if n.ID == y {
			continue
		}
		remaining = append(remaining, n)
	}

	remainingByID := make(map[string]*scene.Node, len(remaining))
	for _, n := range remaining {
		remainingByID[n.ID] = n
	}
	stable := func(id string) bool { return idx.GroundStable(remainingByID, id) }

	for _, x := range deps {
		node, ok := byID[x]
		if !ok {
			continue
		}
		if node.LevelOfMobility == "fixed" {
			patch.Warnings = append(patch.Warnings, errkind.LostSupport)
			continue
		}

		surfaceZ, found := nextLowerSurface(node, remaining, th, stable)
		if !found {
			surfaceZ = roomFloor(node, remaining)
		}
		newPos := node.Pos
		newPos.Z = surfaceZ + node.Size.H/2
		patch.UpdateNodes = append(patch.UpdateNodes, scene.NodeUpdate{
			NodeID: x,
			Fields: scene.NodeFields{Pos: &newPos},
		})
	}
	return patch
}

// nextLowerSurface looks for the highest ground-stable surface below x's
// current resting height whose footprint overlaps x's by the same 50%
// threshold the on_top_of predicate uses.
func nextLowerSurface(x *scene.Node, candidates []*scene.Node, th geom.Thresholds, stable func(string) bool) (float64, bool) {
	bestZ := 0.0
	found := false
	for _, c := range candidates {
		if c.ID == x.ID {
			continue
		}
		top := c.Pos.Z + c.Size.H/2
		if top >= x.Pos.Z-x.Size.H/2 {
			continue
		}
		if !footprintOverlaps(x, c) {
			continue
		}
		if !stable(c.ID) {
			continue
		}
		if !found || top > bestZ {
			bestZ = top
			found = true
		}
	}
	return bestZ, found
}

func footprintOverlaps(a, b *scene.Node) bool {
	axMin, axMax := a.Pos.X-a.Size.W/2, a.Pos.X+a.Size.W/2
	ayMin, ayMax := a.Pos.Y-a.Size.D/2, a.Pos.Y+a.Size.D/2
	bxMin, bxMax := b.Pos.X-b.Size.W/2, b.Pos.X+b.Size.W/2
	byMin, byMax := b.Pos.Y-b.Size.D/2, b.Pos.Y+b.Size.D/2

	ox := min(axMax, bxMax) - max(axMin, bxMin)
	oy := min(ayMax, byMax) - max(ayMin, byMin)
	if ox <= 0 || oy <= 0 {
		return false
	}
	footprint := a.Size.W * a.Size.D
	if footprint <= 0 {
		return false
	}
	return (ox*oy)/footprint >= 0.5
}

// roomFloor returns the floor z of the room containing x: the bottom of
// the AABB of the first room (in candidate order) that contains x, or 0
// if none does.
func roomFloor(x *scene.Node, candidates []*scene.Node) float64 {
	for _, c := range candidates {
		if !c.IsRoomOrContainer {
			continue
		}
		body, xBody := c.Body(), x.Body()
		if cand, ok := geom.In(xBody, body); ok && cand.Conf > 0 {
			return c.Pos.Z - c.Size.H/2
		}
	}
	return 0
}
