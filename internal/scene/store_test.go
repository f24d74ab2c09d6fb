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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/geom"
)

func mustBootstrap(t *testing.T) *Store {
	t.Helper()
	s := New()
	nodes := []*Node{
		{ID: "kitchen", Class: "room", Pos: geom.Vec3{X: 2, Y: 2, Z: 1}, Size: geom.Size{W: 6, D: 6, H: 2.4}, IsRoomOrContainer: true, Confidence: 1},
		{ID: "table_1", Class: "table", Pos: geom.Vec3{X: 1.5, Y: 1.5, Z: 0.75}, Size: geom.Size{W: 1.2, D: 0.8, H: 0.75}, LevelOfMobility: "low", Confidence: 1},
		{ID: "chair_12", Class: "chair", Pos: geom.Vec3{X: 0.9, Y: 1.6, Z: 0.45}, Size: geom.Size{W: 0.5, D: 0.5, H: 0.9}, LevelOfMobility: "medium", Confidence: 1},
	}
	rels := []*Relation{
		{Type: "in", A: "table_1", B: "kitchen", Confidence: 1},
		{Type: "in", A: "chair_12", B: "kitchen", Confidence: 1},
	}
	_, err := s.LoadBootstrap(nodes, rels, Stamp{Timestamp: 0, Origin: "bootstrap"})
	require.NoError(t, err)
	return s
}

func TestLoadBootstrapRejectsDuplicateID(t *testing.T) {
	s := New()
	nodes := []*Node{
		{ID: "a", Size: geom.Size{W: 1, D: 1, H: 1}},
		{ID: "a", Size: geom.Size{W: 1, D: 1, H: 1}},
	}
	_, err := s.LoadBootstrap(nodes, nil, Stamp{})
	require.Error(t, err)
	assert.Equal(t, errkind.BadBootstrap, errkind.Of(err))
}

func TestApplyPatchDanglingRef(t *testing.T) {
	s := mustBootstrap(t)
	p := NewPatch(1, "test")
	p.AddRelations = []*Relation{{Type: "near", A: "table_1", B: "nonexistent"}}
	_, err := s.ApplyPatch(p)
	require.Error(t, err)
	assert.Equal(t, errkind.DanglingRef, errkind.Of(err))

	// store unchanged
	snap := s.Snapshot()
	assert.Len(t, snap.Relations, 2)
}

func TestLWWPerField(t *testing.T) {
	s := mustBootstrap(t)

	newPos := geom.Vec3{X: 9, Y: 9, Z: 9}
	p1 := NewPatch(5, "writer-a")
	p1.UpdateNodes = []NodeUpdate{{NodeID: "table_1", Fields: NodeFields{Pos: &newPos}}}
	_, err := s.ApplyPatch(p1)
	require.NoError(t, err)

	stalePos := geom.Vec3{X: 0, Y: 0, Z: 0}
	p2 := NewPatch(3, "writer-b") // earlier timestamp, must lose
	p2.UpdateNodes = []NodeUpdate{{NodeID: "table_1", Fields: NodeFields{Pos: &stalePos}}}
	_, err = s.ApplyPatch(p2)
	require.NoError(t, err)

	n, err := s.GetNode("table_1")
	require.NoError(t, err)
	assert.Equal(t, newPos, n.Pos, "older-timestamped update must not win")
}

func TestRelationAddIdempotentNewerWins(t *testing.T) {
	s := mustBootstrap(t)

	p1 := NewPatch(10, "a")
	p1.AddRelations = []*Relation{{Type: "near", A: "table_1", B: "chair_12", Confidence: 0.5}}
	_, err := s.ApplyPatch(p1)
	require.NoError(t, err)

	p2 := NewPatch(20, "b")
	p2.AddRelations = []*Relation{{Type: "near", A: "table_1", B: "chair_12", Confidence: 0.9}}
	_, err = s.ApplyPatch(p2)
	require.NoError(t, err)

	snap := s.Snapshot()
	found := false
	for _, r := range snap.Relations {
		if r.Key() == (RelationKey{"near", "table_1", "chair_12"}) {
			found = true
			assert.Equal(t, 0.9, r.Confidence)
		}
	}
	assert.True(t, found)
}

func TestNeighborsExcludesSelf(t *testing.T) {
	s := mustBootstrap(t)
	ns, err := s.Neighbors("table_1", 1.5)
	require.NoError(t, err)
	for _, n := range ns {
		assert.NotEqual(t, "table_1", n.ID)
	}
}

func TestCascadeSupportS3(t *testing.T) {
	s := mustBootstrap(t)

	cup := &Node{ID: "cup_1", Class: "cup", Pos: geom.Vec3{X: 1.5, Y: 1.5, Z: 1.20}, Size: geom.Size{W: 0.08, D: 0.08, H: 0.10}, Confidence: 1}
	p := NewPatch(1, "agent")
	p.AddNodes = []*Node{cup}
	_, err := s.ApplyPatch(p)
	require.NoError(t, err)

	tableBody, _ := s.GetNode("table_1")
	cupBody, _ := s.GetNode("cup_1")
	onTop, supports, ok := geom.OnTopOf(cupBody.Body(), tableBody.Body(), geom.DefaultTauContact, geom.DefaultEpsilon)
	require.True(t, ok)
	assert.True(t, onTop.Conf >= 0.9)
	assert.Equal(t, "supports", supports.Type)

	p2 := NewPatch(2, "agent")
	p2.AddRelations = []*Relation{
		{Type: onTop.Type, A: onTop.A, B: onTop.B, Confidence: onTop.Conf},
		{Type: supports.Type, A: supports.A, B: supports.B, Confidence: supports.Conf},
	}
	_, err = s.ApplyPatch(p2)
	require.NoError(t, err)

	newPos := geom.Vec3{X: 2.5, Y: 1.5, Z: 0.75}
	p3 := NewPatch(3, "mover")
	p3.UpdateNodes = []NodeUpdate{{NodeID: "table_1", Fields: NodeFields{Pos: &newPos}}}
	cascadePos := geom.Vec3{X: 2.5, Y: 1.5, Z: 1.20}
	p3.UpdateNodes = append(p3.UpdateNodes, NodeUpdate{NodeID: "cup_1", Fields: NodeFields{Pos: &cascadePos}})
	_, err = s.ApplyPatch(p3)
	require.NoError(t, err)

	cup2, err := s.GetNode("cup_1")
	require.NoError(t, err)
	assert.Equal(t, cascadePos, cup2.Pos)
}
