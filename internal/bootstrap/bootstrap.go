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
// Package bootstrap loads the initial scene graph from the §6.1 JSON
// format and exports spatial-context snapshots in the §6.2 format,
// compressing large exports the way the teacher's shared-memory store
// compresses large values above a size threshold.
package bootstrap

import (
	"encoding/json"

	"github.com/klauspost/compress/zstd"
	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/geom"
	"github.com/tumluliu/spacxt/internal/scene"
	"github.com/tumluliu/spacxt/internal/spatialctx"
	"github.com/xeipuuv/gojsonschema"
)

// schema is the JSON Schema every bootstrap document must satisfy before
// it is even unmarshaled into typed structs, per spec.md §6.1.
const schema = `{
  "type": "object",
  "required": ["scene"],
  "properties": {
    "scene": {
      "type": "object",
      "required": ["id", "objects"],
      "properties": {
        "id": {"type": "string"},
        "frame": {"type": "string"},
        "rooms": {"type": "array"},
        "objects": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "cls", "pos", "bbox"],
            "properties": {
              "id": {"type": "string"},
              "cls": {"type": "string"},
              "pos": {"type": "array", "minItems": 3, "maxItems": 3},
              "bbox": {
                "type": "object",
                "required": ["xyz"],
                "properties": {"xyz": {"type": "array", "minItems": 3, "maxItems": 3}}
              }
            }
          }
        },
        "relations": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["r", "a", "b"],
            "properties": {"r": {"type": "string"}, "a": {"type": "string"}, "b": {"type": "string"}}
          }
        }
      }
    }
  }
}`

// document mirrors the §6.1 wire shape exactly before defaulting.
type document struct {
	Scene struct {
		ID        string          `json:"id"`
		Frame     string          `json:"frame"`
		Rooms     []rawObject     `json:"rooms"`
		Objects   []rawObject     `json:"objects"`
		Relations []rawRelation   `json:"relations"`
	} `json:"scene"`
}

type rawObject struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Cls  string  `json:"cls"`
	Pos  [3]float64 `json:"pos"`
	Ori  *[4]float64 `json:"ori"`
	BBox struct {
		Type string     `json:"type"`
		XYZ  [3]float64 `json:"xyz"`
	} `json:"bbox"`
	Aff   []string               `json:"aff"`
	LOM   string                 `json:"lom"`
	Conf  *float64               `json:"conf"`
	State map[string]interface{} `json:"state"`
	Meta  map[string]interface{} `json:"meta"`
}

type rawRelation struct {
	R     string             `json:"r"`
	A     string             `json:"a"`
	B     string             `json:"b"`
	Conf  *float64           `json:"conf"`
	Props map[string]float64 `json:"props"`
}

// Load validates raw against the §6.1 schema, fills in defaults, and
// converts it to the node/relation slices scene.Store.LoadBootstrap
// expects. Rooms and objects both become Nodes; only rooms are flagged
// IsRoomOrContainer.
func Load(raw []byte) ([]*scene.Node, []*scene.Relation, error) {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	docLoader := gojsonschema.NewBytesLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, nil, errkind.Wrap(errkind.BadBootstrap, "schema validation failed", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, nil, errkind.Newf(errkind.BadBootstrap, "bootstrap document invalid: %v", msgs)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, errkind.Wrap(errkind.BadBootstrap, "malformed bootstrap JSON", err)
	}

	nodes := make([]*scene.Node, 0, len(doc.Scene.Rooms)+len(doc.Scene.Objects))
	for _, r := range doc.Scene.Rooms {
		nodes = append(nodes, toNode(r, true))
	}
	for _, o := range doc.Scene.Objects {
		nodes = append(nodes, toNode(o, false))
	}

	rels := make([]*scene.Relation, 0, len(doc.Scene.Relations))
	for _, r := range doc.Scene.Relations {
		conf := 1.0
		if r.Conf != nil {
			conf = *r.Conf
		}
		rels = append(rels, &scene.Relation{Type: r.R, A: r.A, B: r.B, Confidence: conf, Props: r.Props})
	}
	return nodes, rels, nil
}

func toNode(o rawObject, isRoom bool) *scene.Node {
	lom := o.LOM
	if lom == "" {
		lom = "medium"
	}
	conf := 1.0
	if o.Conf != nil {
		conf = *o.Conf
	}
	aff := o.Aff
	if aff == nil {
		aff = []string{}
	}
	ori := scene.Quaternion{W: 1}
	if o.Ori != nil {
		ori = scene.Quaternion{X: o.Ori[0], Y: o.Ori[1], Z: o.Ori[2], W: o.Ori[3]}
	}
	return &scene.Node{
		ID: o.ID, Name: o.Name, Class: o.Cls,
		Pos:               geom.Vec3{X: o.Pos[0], Y: o.Pos[1], Z: o.Pos[2]},
		Orientation:       ori,
		Size:              geom.Size{W: o.BBox.XYZ[0], D: o.BBox.XYZ[1], H: o.BBox.XYZ[2]},
		Affordances:       aff,
		LevelOfMobility:   lom,
		Confidence:        conf,
		State:             nonNilMap(o.State),
		Meta:              nonNilMap(o.Meta),
		IsRoomOrContainer: isRoom,
	}
}

func nonNilMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

// CompressionThresholdBytes is the minimum export size in bytes that
// triggers zstd compression, mirroring the teacher's shared-memory
// compression threshold.
const CompressionThresholdBytes = 1024

// Export marshals ctx as the §6.2 snapshot JSON. Exports at or above
// CompressionThresholdBytes are zstd-compressed; the compressed bool
// return tells the caller which it got.
func Export(ctx spatialctx.Context) (data []byte, compressed bool, err error) {
	raw, err := json.Marshal(ctx)
	if err != nil {
		return nil, false, errkind.Wrap(errkind.BadBootstrap, "failed to marshal snapshot", err)
	}
	if len(raw) < CompressionThresholdBytes {
		return raw, false, nil
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, false, errkind.Wrap(errkind.BadBootstrap, "failed to create zstd encoder", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(raw, make([]byte, 0, len(raw))), true, nil
}

// Decompress reverses Export's zstd compression.
func Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errkind.Wrap(errkind.BadBootstrap, "failed to create zstd decoder", err)
	}
	defer decoder.Close()
	return decoder.DecodeAll(data, nil)
}
