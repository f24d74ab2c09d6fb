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
// Package spatialctx implements the spatial context assembler (C8): it
// reads the store and support indices and produces the single structured
// snapshot consumed by the Q&A dispatcher and external renderers, per
// spec.md §4.8. Assemble is a pure function of its inputs and therefore
// reproducible, as spec.md requires.
package spatialctx

import (
	"fmt"
	"sort"

	"github.com/tumluliu/spacxt/internal/geom"
	"github.com/tumluliu/spacxt/internal/scene"
	"github.com/tumluliu/spacxt/internal/support"
)

// ObjectRecord is a compact per-node record, per spec.md §4.8.
type ObjectRecord struct {
	ID          string
	Name        string
	Class       string
	Pos         geom.Vec3
	Size        geom.Size
	Affordances []string
	LOM         string
	Confidence  float64
}

// RelationshipRecord lists a relation with its properties and confidence.
type RelationshipRecord struct {
	Type       string
	A, B       string
	Props      map[string]float64
	Confidence float64
	TypeSource string
}

// SupportDependencies mirrors the C7 indices plus their transitive
// closure, per spec.md §4.8.
type SupportDependencies struct {
	SupportedBy          map[string]string
	Dependents           map[string][]string
	RecursiveDependents  map[string][]string
}

// Cluster is a connected component under near ∨ on_top_of ∨ beside,
// tagged with a cluster-type heuristic, per spec.md §4.8.
type Cluster struct {
	Members     []string
	ClusterType string
}

// AccessibilityRecord is the per-node accessibility outcome.
type AccessibilityRecord struct {
	Score    float64
	Category string
}

// StabilityRecord is the per-node stability outcome.
type StabilityRecord struct {
	ChainDepth   int
	Risk         string
	GroundStable bool
}

// SceneSummary aggregates scene-wide counts, per spec.md §4.8.
type SceneSummary struct {
	CountsByClass         map[string]int
	RelationTypeHistogram map[string]int
	AABBMin, AABBMax      geom.Vec3
}

// Context is the full spatial-context snapshot C9 and external renderers
// consume.
type Context struct {
	SceneSummary        SceneSummary
	Objects             []ObjectRecord
	Relationships       []RelationshipRecord
	SupportDependencies SupportDependencies
	SpatialClusters     []Cluster
	Accessibility       map[string]AccessibilityRecord
	Stability           map[string]StabilityRecord
	Insights            []string
}

// clusterEdgeTypes are the relation types that link two nodes into the
// same spatial cluster, per spec.md §4.8.
var clusterEdgeTypes = map[string]bool{"near": true, "on_top_of": true, "beside": true}

// Assemble builds the full spatial context from a store snapshot and a
// freshly rebuilt support index.
func Assemble(snap scene.Snapshot, idx *support.Index, classToClusterType map[string]string, viewerPose geom.Vec3, rAcc float64) Context {
	byID := snap.NodeByID()

	objects := make([]ObjectRecord, 0, len(snap.Nodes))
	countsByClass := map[string]int{}
	var aabbMin, aabbMax geom.Vec3
	for i, n := range snap.Nodes {
		objects = append(objects, ObjectRecord{
			ID: n.ID, Name: n.Name, Class: n.Class, Pos: n.Pos, Size: n.Size,
			Affordances: n.Affordances, LOM: n.LevelOfMobility, Confidence: n.Confidence,
		})
		countsByClass[n.Class]++
		lo, hi := nodeAABB(n)
		if i == 0 {
			aabbMin, aabbMax = lo, hi
			continue
		}
		aabbMin = elementwiseMin(aabbMin, lo)
		aabbMax = elementwiseMax(aabbMax, hi)
	}

	relationships := make([]RelationshipRecord, 0, len(snap.Relations))
	relHistogram := map[string]int{}
	for _, r := range snap.Relations {
		relationships = append(relationships, RelationshipRecord{
			Type: r.Type, A: r.A, B: r.B, Props: r.Props, Confidence: r.Confidence, TypeSource: r.TypeSource,
		})
		relHistogram[r.Type]++
	}

	supportedBy := map[string]string{}
	dependents := map[string][]string{}
	recursiveDeps := map[string][]string{}
	for _, n := range snap.Nodes {
		if y, ok := idx.SupportedBy(n.ID); ok {
			supportedBy[n.ID] = y
		}
		if deps := idx.Dependents(n.ID); len(deps) > 0 {
			dependents[n.ID] = deps
		}
		if deps := idx.RecursiveDependents(n.ID); len(deps) > 0 {
			recursiveDeps[n.ID] = deps
		}
	}

	clusters := buildClusters(snap, classToClusterType)

	accessibility := map[string]AccessibilityRecord{}
	stability := map[string]StabilityRecord{}
	for _, n := range snap.Nodes {
		score, err := idx.AccessibilityScore(snap, viewerPose, n.ID, rAcc)
		if err == nil {
			accessibility[n.ID] = AccessibilityRecord{Score: score, Category: support.AccessibilityCategory(score)}
		}
		depth := idx.ChainDepth(n.ID)
		stability[n.ID] = StabilityRecord{
			ChainDepth:   depth,
			Risk:         support.StabilityRisk(depth),
			GroundStable: idx.GroundStable(byID, n.ID),
		}
	}

	summary := SceneSummary{CountsByClass: countsByClass, RelationTypeHistogram: relHistogram, AABBMin: aabbMin, AABBMax: aabbMax}
	insights := buildInsights(summary, clusters, dependents)

	return Context{
		SceneSummary: summary,
		Objects:      objects,
		Relationships: relationships,
		SupportDependencies: SupportDependencies{
			SupportedBy: supportedBy, Dependents: dependents, RecursiveDependents: recursiveDeps,
		},
		SpatialClusters: clusters,
		Accessibility:   accessibility,
		Stability:       stability,
		Insights:        insights,
	}
}

func nodeAABB(n *scene.Node) (geom.Vec3, geom.Vec3) {
	lo := geom.Vec3{X: n.Pos.X - n.Size.W/2, Y: n.Pos.Y - n.Size.D/2, Z: n.Pos.Z - n.Size.H/2}
	hi := geom.Vec3{X: n.Pos.X + n.Size.W/2, Y: n.Pos.Y + n.Size.D/2, Z: n.Pos.Z + n.Size.H/2}
	return lo, hi
}

func elementwiseMin(a, b geom.Vec3) geom.Vec3 {
	return geom.Vec3{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)}
}

func elementwiseMax(a, b geom.Vec3) geom.Vec3 {
	return geom.Vec3{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)}
}

func buildClusters(snap scene.Snapshot, classToClusterType map[string]string) []Cluster {
	adj := map[string][]string{}
	for _, n := range snap.Nodes {
		adj[n.ID] = nil
	}
	for _, r := range snap.Relations {
		if !clusterEdgeTypes[r.Type] {
			continue
		}
		adj[r.A] = append(adj[r.A], r.B)
		adj[r.B] = append(adj[r.B], r.A)
	}

	visited := map[string]bool{}
	var clusters []Cluster
	ids := make([]string, 0, len(adj))
	for id := range adj {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	byID := snap.NodeByID()
	for _, start := range ids {
		if visited[start] {
			continue
		}
		var members []string
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			members = append(members, cur)
			for _, nb := range adj[cur] {
				if !visited[nb] {
					visited[nb] = true
					queue = append(queue, nb)
				}
			}
		}
		if len(members) < 2 {
			continue // singletons are not a cluster worth reporting
		}
		sort.Strings(members)
		clusters = append(clusters, Cluster{Members: members, ClusterType: clusterType(members, byID, classToClusterType)})
	}
	return clusters
}

func clusterType(members []string, byID map[string]*scene.Node, classToClusterType map[string]string) string {
	for _, m := range members {
		n, ok := byID[m]
		if !ok {
			continue
		}
		if t, ok := classToClusterType[n.Class]; ok {
			return t
		}
	}
	return "object_group"
}

func buildInsights(summary SceneSummary, clusters []Cluster, dependents map[string][]string) []string {
	var insights []string
	for class, count := range summary.CountsByClass {
		if count > 1 {
			insights = append(insights, fmt.Sprintf("%d objects of class %s", count, class))
		}
	}
	for y, deps := range dependents {
		if len(deps) > 0 {
			insights = append(insights, fmt.Sprintf("%d objects depend on %s", len(deps), y))
		}
	}
	for _, c := range clusters {
		insights = append(insights, fmt.Sprintf("%s with %d members", c.ClusterType, len(c.Members)))
	}
	sort.Strings(insights)
	return insights
}
