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
// Package router implements the command router (C10): it converts a
// closed set of intents into scene patches, rejecting anything outside
// that set with errkind.BadIntent rather than guessing. Question intents
// are out of scope here — internal/qa answers those directly against an
// already-assembled spatial context, per the System Overview's C9/C10
// split in spec.md.
package router

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/geom"
	"github.com/tumluliu/spacxt/internal/scene"
)

// IntentType is one of the closed commands spec.md §4.10 names.
type IntentType string

const (
	AddObject    IntentType = "add_object"
	MoveObject   IntentType = "move_object"
	RemoveObject IntentType = "remove_object"
	Query        IntentType = "query"
)

// Intent is the router's single input shape; only the fields relevant to
// Type are read.
type Intent struct {
	Type IntentType

	// add_object
	ObjectClass string
	Target      string // existing node id the new object relates to
	Relation    string // reserved relation type, e.g. "on_top_of"
	Quantity    int
	Pose        *geom.Vec3

	// move_object / remove_object
	NodeID string

	// move_object
	NewPos     *geom.Vec3
	RelativeTo string
	Offset     *geom.Vec3

	// query
	Question string
}

// ClassDefaults fills in the physical properties add_object does not
// specify explicitly, keyed by object class.
type ClassDefaults struct {
	Size            geom.Size
	Affordances     []string
	LevelOfMobility string
}

// DefaultClassCatalog covers the object classes spec.md's worked scenarios
// name. A deployment can supply its own catalog via NewRouter.
var DefaultClassCatalog = map[string]ClassDefaults{
	"cup":     {Size: geom.Size{W: 0.08, D: 0.08, H: 0.10}, Affordances: []string{"graspable"}, LevelOfMobility: "medium"},
	"book":    {Size: geom.Size{W: 0.20, D: 0.15, H: 0.03}, Affordances: []string{"graspable"}, LevelOfMobility: "medium"},
	"plate":   {Size: geom.Size{W: 0.25, D: 0.25, H: 0.02}, Affordances: []string{"graspable"}, LevelOfMobility: "medium"},
	"chair":   {Size: geom.Size{W: 0.5, D: 0.5, H: 0.9}, Affordances: []string{"sittable"}, LevelOfMobility: "medium"},
	"table":   {Size: geom.Size{W: 1.2, D: 0.8, H: 0.75}, Affordances: []string{"supporting_surface"}, LevelOfMobility: "low"},
	"box":     {Size: geom.Size{W: 0.3, D: 0.3, H: 0.3}, Affordances: []string{"supporting_surface"}, LevelOfMobility: "medium"},
}

// Router converts validated intents into scene patches.
type Router struct {
	catalog map[string]ClassDefaults
	th      geom.Thresholds
}

// NewRouter builds a Router over the given class catalog and topology
// thresholds. Placement of new objects relative to a target uses the
// catalog sizes only; the thresholds are stored but not read.
func NewRouter(catalog map[string]ClassDefaults, th geom.Thresholds) *Router {
	if catalog == nil {
		catalog = DefaultClassCatalog
	}
	return &Router{catalog: catalog, th: th}
}

// Route converts intent into a patch to apply against store, or rejects
// it with errkind.BadIntent. Query intents are rejected: ask internal/qa
// directly with an assembled spatialctx.Context instead.
func (rt *Router) Route(intent Intent, snap scene.Snapshot, timestamp int64, origin string) (*scene.Patch, error) {
	switch intent.Type {
	case AddObject:
		return rt.routeAddObject(intent, snap, timestamp, origin)
	case MoveObject:
		return rt.routeMoveObject(intent, snap, timestamp, origin)
	case RemoveObject:
		return rt.routeRemoveObject(intent, timestamp, origin)
	case Query:
		return nil, errkind.New(errkind.BadIntent, "query intents are answered by internal/qa, not routed to a patch")
	default:
		return nil, errkind.Newf(errkind.BadIntent, "unknown intent type %q", intent.Type)
	}
}

func (rt *Router) routeAddObject(intent Intent, snap scene.Snapshot, timestamp int64, origin string) (*scene.Patch, error) {
	if intent.ObjectClass == "" {
		return nil, errkind.New(errkind.BadIntent, "add_object requires an object class")
	}
	defaults, ok := rt.catalog[intent.ObjectClass]
	if !ok {
		return nil, errkind.Newf(errkind.BadIntent, "add_object: unknown object class %q", intent.ObjectClass)
	}
	if intent.Relation != "" && !scene.ReservedRelationTypes[intent.Relation] {
		return nil, errkind.Newf(errkind.BadIntent, "add_object: relation %q is not a reserved relation type", intent.Relation)
	}

	quantity := intent.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	byID := snap.NodeByID()
	var target *scene.Node
	if intent.Target != "" {
		target, ok = byID[intent.Target]
		if !ok {
			return nil, errkind.Newf(errkind.DanglingRef, "add_object: target %q does not exist", intent.Target)
		}
	}
	if intent.Relation != "" && target == nil {
		return nil, errkind.New(errkind.BadIntent, "add_object: relation given without a target")
	}

	patch := scene.NewPatch(timestamp, origin)
	for i := 0; i < quantity; i++ {
		id := fmt.Sprintf("%s_%s", intent.ObjectClass, uuid.NewString()[:8])
		pos := placementFor(intent, defaults, target, i)
		node := &scene.Node{
			ID: id, Class: intent.ObjectClass, Pos: pos, Size: defaults.Size,
			Affordances: append([]string(nil), defaults.Affordances...),
			LevelOfMobility: defaults.LevelOfMobility, Confidence: 1,
		}
		patch.AddNodes = append(patch.AddNodes, node)

		if target != nil {
			patch.AddRelations = append(patch.AddRelations, &scene.Relation{
				Type: intent.Relation, A: id, B: target.ID, Confidence: 1,
			})
			if inverse, ok := inverseRelation(intent.Relation); ok {
				patch.AddRelations = append(patch.AddRelations, &scene.Relation{
					Type: inverse, A: target.ID, B: id, Confidence: 1,
				})
			}
		}
	}
	return patch, nil
}

// placementFor derives a pose for the i-th unit being added: an explicit
// Pose wins outright, otherwise a relation-aware placement relative to
// target, staggering multiple units along X so they do not fully overlap.
func placementFor(intent Intent, defaults ClassDefaults, target *scene.Node, i int) geom.Vec3 {
	if intent.Pose != nil {
		p := *intent.Pose
		p.X += float64(i) * (defaults.Size.W + 0.05)
		return p
	}
	if target == nil {
		return geom.Vec3{X: float64(i) * (defaults.Size.W + 0.05)}
	}
	switch intent.Relation {
	case "on_top_of":
		return geom.Vec3{
			X: target.Pos.X + float64(i)*(defaults.Size.W+0.02),
			Y: target.Pos.Y,
			Z: target.Pos.Z + target.Size.H/2 + defaults.Size.H/2,
		}
	case "beside", "near":
		return geom.Vec3{
			X: target.Pos.X + target.Size.W/2 + defaults.Size.W/2 + 0.1 + float64(i)*(defaults.Size.W+0.05),
			Y: target.Pos.Y,
			Z: target.Pos.Z,
		}
	default:
		return target.Pos
	}
}

// inverseRelation names the directed counterpart relation that completes
// a pair, per spec.md §4.1 ("supports" is on_top_of's inverse).
func inverseRelation(relation string) (string, bool) {
	if relation == "on_top_of" {
		return "supports", true
	}
	return "", false
}

func (rt *Router) routeMoveObject(intent Intent, snap scene.Snapshot, timestamp int64, origin string) (*scene.Patch, error) {
	if intent.NodeID == "" {
		return nil, errkind.New(errkind.BadIntent, "move_object requires a node id")
	}
	byID := snap.NodeByID()
	node, ok := byID[intent.NodeID]
	if !ok {
		return nil, errkind.Newf(errkind.DanglingRef, "move_object: node %q does not exist", intent.NodeID)
	}

	var newPos geom.Vec3
	switch {
	case intent.NewPos != nil:
		newPos = *intent.NewPos
	case intent.RelativeTo != "" && intent.Offset != nil:
		ref, ok := byID[intent.RelativeTo]
		if !ok {
			return nil, errkind.Newf(errkind.DanglingRef, "move_object: relative_to %q does not exist", intent.RelativeTo)
		}
		newPos = ref.Pos.Add(*intent.Offset)
	case intent.Offset != nil:
		newPos = node.Pos.Add(*intent.Offset)
	default:
		return nil, errkind.New(errkind.BadIntent, "move_object requires new_pos, or relative_to with an offset, or a bare offset")
	}

	patch := scene.NewPatch(timestamp, origin)
	patch.UpdateNodes = append(patch.UpdateNodes, scene.NodeUpdate{
		NodeID: intent.NodeID,
		Fields: scene.NodeFields{Pos: &newPos},
	})
	return patch, nil
}

func (rt *Router) routeRemoveObject(intent Intent, timestamp int64, origin string) (*scene.Patch, error) {
	if intent.NodeID == "" {
		return nil, errkind.New(errkind.BadIntent, "remove_object requires a node id")
	}
	patch := scene.NewPatch(timestamp, origin)
	patch.RemoveNodes = []string{intent.NodeID}
	return patch, nil
}
