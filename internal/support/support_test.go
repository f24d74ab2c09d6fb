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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tumluliu/spacxt/internal/geom"
	"github.com/tumluliu/spacxt/internal/scene"
)

func tableWithCupAndBook(t *testing.T) *scene.Store {
	t.Helper()
	s := scene.New()
	nodes := []*scene.Node{
		{ID: "kitchen", Class: "room", Pos: geom.Vec3{X: 2, Y: 2, Z: 1.2}, Size: geom.Size{W: 6, D: 6, H: 2.4}, IsRoomOrContainer: true, Confidence: 1},
		{ID: "table_1", Class: "table", Pos: geom.Vec3{X: 1.5, Y: 1.5, Z: 0.75}, Size: geom.Size{W: 1.2, D: 0.8, H: 0.75}, LevelOfMobility: "low", Confidence: 1},
		{ID: "cup_1", Class: "cup", Pos: geom.Vec3{X: 1.5, Y: 1.5, Z: 1.20}, Size: geom.Size{W: 0.08, D: 0.08, H: 0.10}, LevelOfMobility: "medium", Confidence: 1},
		{ID: "book_1", Class: "book", Pos: geom.Vec3{X: 1.7, Y: 1.5, Z: 1.20}, Size: geom.Size{W: 0.2, D: 0.15, H: 0.03}, LevelOfMobility: "medium", Confidence: 1},
	}
	rels := []*scene.Relation{
		{Type: "on_top_of", A: "cup_1", B: "table_1", Confidence: 0.95},
		{Type: "supports", A: "table_1", B: "cup_1", Confidence: 0.95},
		{Type: "on_top_of", A: "book_1", B: "table_1", Confidence: 0.92},
		{Type: "supports", A: "table_1", B: "book_1", Confidence: 0.92},
	}
	_, err := s.LoadBootstrap(nodes, rels, scene.Stamp{Origin: "bootstrap"})
	require.NoError(t, err)
	return s
}

func TestSupportIndexTieBreak(t *testing.T) {
	idx := NewIndex()
	snap := scene.Snapshot{
		Relations: []*scene.Relation{
			{Type: "on_top_of", A: "cup_1", B: "table_1", Confidence: 0.9},
			{Type: "on_top_of", A: "cup_1", B: "table_2", Confidence: 0.9},
		},
	}
	idx.Rebuild(snap)
	y, ok := idx.SupportedBy("cup_1")
	require.True(t, ok)
	assert.Equal(t, "table_1", y, "equal confidence must tie-break to the lower node id")
}

func TestCascadeMoveS3(t *testing.T) {
	store := tableWithCupAndBook(t)
	idx := NewIndex()
	idx.Rebuild(store.Snapshot())

	deps := idx.RecursiveDependents("table_1")
	assert.ElementsMatch(t, []string{"cup_1", "book_1"}, deps)

	delta := geom.Vec3{X: 1.0, Y: 0, Z: 0}
	cascade := idx.CascadeMove(store.Snapshot(), "table_1", delta, scene.Stamp{Timestamp: 10, Origin: "mover"})
	require.NotNil(t, cascade)
	_, err := store.ApplyPatch(cascade)
	require.NoError(t, err)

	cup, err := store.GetNode("cup_1")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, cup.Pos.X, 1e-9)
}

func TestRemovalCascadeS4(t *testing.T) {
	store := tableWithCupAndBook(t)
	idx := NewIndex()
	idx.Rebuild(store.Snapshot())

	snap := store.Snapshot()
	patch := idx.RemovalCascade(snap, "table_1", scene.Stamp{Timestamp: 5, Origin: "router"}, geom.DefaultThresholds())
	assert.Empty(t, patch.Warnings, "cup_1 and book_1 are not fixed, so no LostSupport warning is expected")

	_, err := store.ApplyPatch(patch)
	require.NoError(t, err)

	_, err = store.GetNode("table_1")
	require.Error(t, err)

	cup, err := store.GetNode("cup_1")
	require.NoError(t, err)
	assert.InDelta(t, 0, cup.Pos.Z-cup.Size.H/2, 1e-6, "cup should fall to the floor")

	finalSnap := store.Snapshot()
	for _, r := range finalSnap.Relations {
		assert.NotEqual(t, "table_1", r.A)
		assert.NotEqual(t, "table_1", r.B)
	}
}

func TestAccessibilityS5(t *testing.T) {
	store := tableWithCupAndBook(t)
	idx := NewIndex()
	idx.Rebuild(store.Snapshot())
	snap := store.Snapshot()

	score, err := idx.AccessibilityScore(snap, geom.Vec3{X: 0, Y: 0, Z: 1.5}, "cup_1", 0.6)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestStabilityRiskThresholds(t *testing.T) {
	assert.Equal(t, "low", StabilityRisk(0))
	assert.Equal(t, "low", StabilityRisk(1))
	assert.Equal(t, "medium", StabilityRisk(2))
	assert.Equal(t, "medium", StabilityRisk(3))
	assert.Equal(t, "high", StabilityRisk(4))
}
