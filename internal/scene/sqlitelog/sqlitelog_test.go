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
package sqlitelog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tumluliu/spacxt/internal/geom"
	"github.com/tumluliu/spacxt/internal/scene"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spacxt.db")
	l, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestResumeEmptyLogFails(t *testing.T) {
	l := openTestLog(t)
	_, _, _, err := l.Resume()
	require.Error(t, err)
}

func TestSinkCheckpointsAndResumes(t *testing.T) {
	l := openTestLog(t)

	store := scene.New()
	store.Subscribe(l.Sink())

	table := &scene.Node{
		ID: "table_1", Class: "table",
		Pos:             geom.Vec3{X: 1, Y: 1, Z: 0.75},
		Size:            geom.Size{W: 1.2, D: 0.8, H: 0.75},
		Confidence:      1,
		LevelOfMobility: "low",
	}
	_, err := store.LoadBootstrap([]*scene.Node{table}, nil, scene.Stamp{Origin: "bootstrap"})
	require.NoError(t, err)

	seq, ok, err := l.LatestCheckpoint()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, seq)

	nodes, _, lastSeq, err := l.Resume()
	require.NoError(t, err)
	assert.Equal(t, 0, lastSeq)
	require.Len(t, nodes, 1)
	assert.Equal(t, "table_1", nodes[0].ID)
}

func TestSinkTracksLatestSeqAcrossPatches(t *testing.T) {
	l := openTestLog(t)

	store := scene.New()
	store.Subscribe(l.Sink())

	table := &scene.Node{
		ID: "table_1", Class: "table",
		Pos: geom.Vec3{X: 1, Y: 1, Z: 0.75}, Size: geom.Size{W: 1.2, D: 0.8, H: 0.75}, Confidence: 1,
	}
	_, err := store.LoadBootstrap([]*scene.Node{table}, nil, scene.Stamp{Origin: "bootstrap"})
	require.NoError(t, err)

	patch := scene.NewPatch(1000, "test")
	patch.AddNodes = append(patch.AddNodes, &scene.Node{
		ID: "cup_1", Class: "cup",
		Pos: geom.Vec3{X: 1, Y: 1, Z: 1.2}, Size: geom.Size{W: 0.08, D: 0.08, H: 0.1}, Confidence: 1,
	})
	_, err = store.ApplyPatch(patch)
	require.NoError(t, err)

	seq, ok, err := l.LatestCheckpoint()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, seq)

	nodes, _, _, err := l.Resume()
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}
