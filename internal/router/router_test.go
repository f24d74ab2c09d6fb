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
package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/geom"
	"github.com/tumluliu/spacxt/internal/scene"
)

func tableScene(t *testing.T) *scene.Store {
	t.Helper()
	s := scene.New()
	nodes := []*scene.Node{
		{ID: "table_1", Class: "table", Pos: geom.Vec3{X: 1.5, Y: 1.5, Z: 0.75}, Size: geom.Size{W: 1.2, D: 0.8, H: 0.75}, LevelOfMobility: "low", Confidence: 1},
	}
	_, err := s.LoadBootstrap(nodes, nil, scene.Stamp{Origin: "bootstrap"})
	require.NoError(t, err)
	return s
}

func TestRouteAddObjectOnTopOf(t *testing.T) {
	store := tableScene(t)
	rt := NewRouter(nil, geom.DefaultThresholds())

	patch, err := rt.Route(Intent{Type: AddObject, ObjectClass: "cup", Target: "table_1", Relation: "on_top_of"}, store.Snapshot(), 10, "router")
	require.NoError(t, err)
	require.Len(t, patch.AddNodes, 1)
	require.Len(t, patch.AddRelations, 2)

	_, err = store.ApplyPatch(patch)
	require.NoError(t, err)

	cup := patch.AddNodes[0]
	snap := store.Snapshot()
	got, err := store.GetNode(cup.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.75+0.75/2+0.10/2, got.Pos.Z, 1e-9)

	var sawOnTop, sawSupports bool
	for _, r := range snap.Relations {
		if r.Type == "on_top_of" && r.A == cup.ID && r.B == "table_1" {
			sawOnTop = true
		}
		if r.Type == "supports" && r.A == "table_1" && r.B == cup.ID {
			sawSupports = true
		}
	}
	assert.True(t, sawOnTop)
	assert.True(t, sawSupports)
}

func TestRouteAddObjectUnknownClass(t *testing.T) {
	store := tableScene(t)
	rt := NewRouter(nil, geom.DefaultThresholds())
	_, err := rt.Route(Intent{Type: AddObject, ObjectClass: "spaceship"}, store.Snapshot(), 1, "router")
	require.Error(t, err)
	assert.Equal(t, errkind.BadIntent, errkind.Of(err))
}

func TestRouteAddObjectBadRelation(t *testing.T) {
	store := tableScene(t)
	rt := NewRouter(nil, geom.DefaultThresholds())
	_, err := rt.Route(Intent{Type: AddObject, ObjectClass: "cup", Target: "table_1", Relation: "levitating"}, store.Snapshot(), 1, "router")
	require.Error(t, err)
	assert.Equal(t, errkind.BadIntent, errkind.Of(err))
}

func TestRouteMoveObjectRelative(t *testing.T) {
	store := tableScene(t)
	rt := NewRouter(nil, geom.DefaultThresholds())

	offset := geom.Vec3{X: 0.1}
	patch, err := rt.Route(Intent{Type: MoveObject, NodeID: "table_1", RelativeTo: "table_1", Offset: &offset}, store.Snapshot(), 2, "router")
	require.NoError(t, err)
	_, err = store.ApplyPatch(patch)
	require.NoError(t, err)

	got, err := store.GetNode("table_1")
	require.NoError(t, err)
	assert.InDelta(t, 1.6, got.Pos.X, 1e-9)
}

func TestRouteMoveObjectMissingTarget(t *testing.T) {
	store := tableScene(t)
	rt := NewRouter(nil, geom.DefaultThresholds())
	_, err := rt.Route(Intent{Type: MoveObject, NodeID: "ghost"}, store.Snapshot(), 1, "router")
	require.Error(t, err)
	assert.Equal(t, errkind.DanglingRef, errkind.Of(err))
}

func TestRouteRemoveObject(t *testing.T) {
	store := tableScene(t)
	rt := NewRouter(nil, geom.DefaultThresholds())
	patch, err := rt.Route(Intent{Type: RemoveObject, NodeID: "table_1"}, store.Snapshot(), 5, "router")
	require.NoError(t, err)
	_, err = store.ApplyPatch(patch)
	require.NoError(t, err)
	_, err = store.GetNode("table_1")
	require.Error(t, err)
}

func TestRouteQueryRejected(t *testing.T) {
	store := tableScene(t)
	rt := NewRouter(nil, geom.DefaultThresholds())
	_, err := rt.Route(Intent{Type: Query, Question: "where is the cup"}, store.Snapshot(), 1, "router")
	require.Error(t, err)
	assert.Equal(t, errkind.BadIntent, errkind.Of(err))
}

func TestRouteUnknownIntentType(t *testing.T) {
	store := tableScene(t)
	rt := NewRouter(nil, geom.DefaultThresholds())
	_, err := rt.Route(Intent{Type: "teleport"}, store.Snapshot(), 1, "router")
	require.Error(t, err)
	assert.Equal(t, errkind.BadIntent, errkind.Of(err))
}
