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
package bootstrap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tumluliu/spacxt/internal/geom"
	"github.com/tumluliu/spacxt/internal/spatialctx"
)

const validDoc = `{
  "scene": {
    "id": "kitchen-scene-1",
    "frame": "world",
    "rooms": [
      {"id": "kitchen", "cls": "room", "pos": [2,2,1.2], "bbox": {"type":"OBB","xyz":[6,6,2.4]}}
    ],
    "objects": [
      {"id": "table_1", "cls": "table", "pos": [1.5,1.5,0.75], "bbox": {"type":"OBB","xyz":[1.2,0.8,0.75]}, "lom": "low"},
      {"id": "cup_1", "cls": "cup", "pos": [1.5,1.5,1.2], "bbox": {"type":"OBB","xyz":[0.08,0.08,0.1]}}
    ],
    "relations": [
      {"r": "on_top_of", "a": "cup_1", "b": "table_1", "conf": 0.95}
    ]
  }
}`

func TestLoadValidBootstrap(t *testing.T) {
	nodes, rels, err := Load([]byte(validDoc))
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	require.Len(t, rels, 1)

	var found bool
	for _, n := range nodes {
		if n.ID == "table_1" {
			found = true
			assert.Equal(t, "low", n.LevelOfMobility)
			assert.Equal(t, 1.0, n.Confidence)
		}
		if n.ID == "kitchen" {
			assert.True(t, n.IsRoomOrContainer)
		}
		if n.ID == "cup_1" {
			assert.Equal(t, "medium", n.LevelOfMobility, "missing lom defaults to medium")
			assert.NotNil(t, n.Affordances)
		}
	}
	assert.True(t, found)
	assert.InDelta(t, 0.95, rels[0].Confidence, 1e-9)
}

func TestLoadRejectsMissingRequiredField(t *testing.T) {
	_, _, err := Load([]byte(`{"scene": {"id": "x", "objects": [{"cls": "table"}]}}`))
	require.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	_, _, err := Load([]byte(`not json at all`))
	require.Error(t, err)
}

func TestExportRoundTripSmall(t *testing.T) {
	ctx := spatialctx.Context{SceneSummary: spatialctx.SceneSummary{CountsByClass: map[string]int{"table": 1}}}
	data, compressed, err := Export(ctx)
	require.NoError(t, err)
	assert.False(t, compressed)
	assert.Contains(t, string(data), "table")
}

func TestExportCompressesLargePayload(t *testing.T) {
	objects := make([]spatialctx.ObjectRecord, 0, 200)
	for i := 0; i < 200; i++ {
		objects = append(objects, spatialctx.ObjectRecord{
			ID: "obj_" + strings.Repeat("x", 20), Class: "filler", Pos: geom.Vec3{X: float64(i)},
		})
	}
	ctx := spatialctx.Context{Objects: objects}
	data, compressed, err := Export(ctx)
	require.NoError(t, err)
	require.True(t, compressed)

	decompressed, err := Decompress(data)
	require.NoError(t, err)
	assert.Contains(t, string(decompressed), "filler")
}
