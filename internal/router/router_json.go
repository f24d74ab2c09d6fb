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
	"github.com/tidwall/gjson"
	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/geom"
)

// ParseIntentJSON decodes one command intent from the NL layer's wire
// format, per spec.md §6.3: `{"type": "...", ...fields}`. It never
// rejects on extra fields, only on a missing or unrecognized "type" —
// the Route call itself validates the rest.
func ParseIntentJSON(raw []byte) (Intent, error) {
	if !gjson.ValidBytes(raw) {
		return Intent{}, errkind.New(errkind.BadIntent, "malformed intent JSON")
	}
	root := gjson.ParseBytes(raw)
	typ := root.Get("type").String()
	if typ == "" {
		return Intent{}, errkind.New(errkind.BadIntent, "intent missing \"type\"")
	}

	intent := Intent{Type: IntentType(typ)}
	switch intent.Type {
	case AddObject:
		intent.ObjectClass = root.Get("object_class").String()
		intent.Target = root.Get("target").String()
		intent.Relation = root.Get("relation").String()
		intent.Quantity = int(root.Get("quantity").Int())
		if p := root.Get("pose"); p.Exists() {
			v := vec3FromArray(p)
			intent.Pose = &v
		}
	case MoveObject:
		intent.NodeID = root.Get("id").String()
		if p := root.Get("new_pos"); p.Exists() {
			v := vec3FromArray(p)
			intent.NewPos = &v
		}
		intent.RelativeTo = root.Get("relative_to").String()
		if o := root.Get("offset"); o.Exists() {
			v := vec3FromArray(o)
			intent.Offset = &v
		}
	case RemoveObject:
		intent.NodeID = root.Get("id").String()
	case Query:
		intent.Question = root.Get("question").String()
	default:
		return Intent{}, errkind.Newf(errkind.BadIntent, "unknown intent type %q", typ)
	}
	return intent, nil
}

func vec3FromArray(r gjson.Result) geom.Vec3 {
	arr := r.Array()
	v := geom.Vec3{}
	if len(arr) > 0 {
		v.X = arr[0].Float()
	}
	if len(arr) > 1 {
		v.Y = arr[1].Float()
	}
	if len(arr) > 2 {
		v.Z = arr[2].Float()
	}
	return v
}
