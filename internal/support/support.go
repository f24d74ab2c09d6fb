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
// Package support implements the support-dependency engine (C7):
// supported_by / dependents indices, cascade moves, ground stability and
// accessibility scoring, and the removal cascade of spec.md §4.6/§4.7.
package support

import (
	"sort"
	"sync"

	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/geom"
	"github.com/tumluliu/spacxt/internal/scene"
)

// Index holds the two indices derived from the relation set, per
// spec.md §4.6. It is rebuilt wholesale from a fresh snapshot whenever
// the store notifies of a committed event — a full recompute rather than
// an incremental patch, traded for simplicity at the scale this engine
// targets (hundreds, not millions, of nodes).
type Index struct {
	mu          sync.RWMutex
	supportedBy map[string]string
	dependents  map[string][]string
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{supportedBy: map[string]string{}, dependents: map[string][]string{}}
}

// onTopOfCandidate is one candidate supporter for a node, gathered while
// scanning the relation set.
type onTopOfCandidate struct {
	supporter string
	conf      float64
}

// Rebuild recomputes supported_by and dependents from snap's on_top_of
// relations. Where multiple candidate supporters exist for one node, the
// one with the highest on_top_of confidence wins; ties break by lower
// node id, per spec.md §9 open question (ii).
func (idx *Index) Rebuild(snap scene.Snapshot) {
	candidates := map[string][]onTopOfCandidate{}
	for _, r := range snap.Relations {
		if r.Type != "on_top_of" {
			continue
		}
		candidates[r.A] = append(candidates[r.A], onTopOfCandidate{supporter: r.B, conf: r.Confidence})
	}

	supportedBy := map[string]string{}
	dependents := map[string][]string{}
	for x, cands := range candidates {
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].conf != cands[j].conf {
				return cands[i].conf > cands[j].conf
			}
			return cands[i].supporter < cands[j].supporter
		})
		y := cands[0].supporter
		supportedBy[x] = y
		dependents[y] = append(dependents[y], x)
	}
	for y := range dependents {
		sort.Strings(dependents[y])
	}

	idx.mu.Lock()
	idx.supportedBy = supportedBy
	idx.dependents = dependents
	idx.mu.Unlock()
}

// SupportedBy returns the unique supporter of x, if any.
func (idx *Index) SupportedBy(x string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	y, ok := idx.supportedBy[x]
	return y, ok
}

// Dependents returns the direct dependents of y (nodes resting on it).
func (idx *Index) Dependents(y string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := append([]string(nil), idx.dependents[y]...)
	return out
}

// RecursiveDependents returns every node transitively resting on y,
// closest first, with cycles (which the acyclic invariant forbids but a
// defensive walk still guards against) broken by a visited set.
func (idx *Index) RecursiveDependents(y string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	visited := map[string]bool{y: true}
	var out []string
	queue := append([]string(nil), idx.dependents[y]...)
	for len(queue) > 0 {
		x := queue[0]
		queue = queue[1:]
		if visited[x] {
			continue
		}
		visited[x] = true
		out = append(out, x)
		queue = append(queue, idx.dependents[x]...)
	}
	return out
}

// GroundStable reports whether x is ground-stable: fixed mobility, or
// resting (transitively) on a ground-stable node, per spec.md §4.6.
func (idx *Index) GroundStable(nodesByID map[string]*scene.Node, x string) bool {
	return idx.groundStable(nodesByID, x, map[string]bool{})
}

func (idx *Index) groundStable(nodesByID map[string]*scene.Node, x string, seen map[string]bool) bool {
	if seen[x] {
		return false
	}
	seen[x] = true
	n, ok := nodesByID[x]
	if !ok {
		return false
	}
	if n.LevelOfMobility == "fixed" {
		return true
	}
	y, ok := idx.SupportedBy(x)
	if !ok {
		return false
	}
	return idx.groundStable(nodesByID, y, seen)
}

// ChainDepth returns the number of supported_by links from x up to the
// first node with no supporter (0 if x is unsupported). A fixed node part
// way along the chain does not end the count.
func (idx *Index) ChainDepth(x string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	depth := 0
	cur := x
	seen := map[string]bool{}
	for {
		if seen[cur] {
			return depth
		}
		seen[cur] = true
		y, ok := idx.supportedBy[cur]
		if !ok {
			return depth
		}
		depth++
		cur = y
	}
}

// StabilityRisk classifies a chain depth per spec.md §4.6: > tau_chain
// (3) is "high", 2-3 is "medium", otherwise "low".
func StabilityRisk(depth int) string {
	switch {
	case depth > geom.TauChain:
		return "high"
	case depth >= 2:
		return "medium"
	default:
		return "low"
	}
}

func mobilityFactor(lom string) float64 {
	switch lom {
	case "fixed":
		return 0
	case "low":
		return 0.25
	case "medium":
		return 0.6
	case "high":
		return 1
	default:
		return 0.6
	}
}

// AccessibilityScore computes the §4.6 formula for node x:
// 0.5*mobility_factor + 0.3*(1-blocked_fraction) + 0.2*(1-depth_penalty).
func (idx *Index) AccessibilityScore(snap scene.Snapshot, viewerPose geom.Vec3, x string, rAcc float64) (float64, error) {
	byID := snap.NodeByID()
	node, ok := byID[x]
	if !ok {
		return 0, errkind.Newf(errkind.NotFound, "node %q", x)
	}

	blocked := 0
	total := 0
	for _, n := range snap.Nodes {
		if n.ID == x {
			continue
		}
		if geom.Distance(node.Pos, n.Pos) > rAcc {
			continue
		}
		total++
		if approachBlocked(node, n, viewerPose) {
			blocked++
		}
	}
	blockedFraction := 0.0
	if total > 0 {
		blockedFraction = float64(blocked) / float64(total)
	}

	depth := idx.ChainDepth(x)
	depthPenalty := float64(depth) / 3
	if depthPenalty > 1 {
		depthPenalty = 1
	}

	score := 0.5*mobilityFactor(node.LevelOfMobility) + 0.3*(1-blockedFraction) + 0.2*(1-depthPenalty)
	return score, nil
}

// approachBlocked reports whether obstacle's XY footprint overlaps the XY
// bounding rectangle of the segment from viewerPose to target's position,
// a coarse stand-in for a full raycast appropriate to the axis-aligned
// heuristics the rest of this system uses. Heights are not compared.
func approachBlocked(target *scene.Node, obstacle *scene.Node, viewerPose geom.Vec3) bool {
	segMinX, segMaxX := minmax(viewerPose.X, target.Pos.X)
	segMinY, segMaxY := minmax(viewerPose.Y, target.Pos.Y)
	obMinX, obMaxX := obstacle.Pos.X-obstacle.Size.W/2, obstacle.Pos.X+obstacle.Size.W/2
	obMinY, obMaxY := obstacle.Pos.Y-obstacle.Size.D/2, obstacle.Pos.Y+obstacle.Size.D/2
	return segMinX <= obMaxX && segMaxX >= obMinX && segMinY <= obMaxY && segMaxY >= obMinY
}

func minmax(a, b float64) (float64, float64) {
	if a < b {
		return a, b
	}
	return b, a
}

// AccessibilityCategory classifies a score per spec.md §4.6.
func AccessibilityCategory(score float64) string {
	switch {
	case score >= 0.7:
		return "reachable"
	case score <= 0.3:
		return "blocked"
	default:
		return "limited"
	}
}
