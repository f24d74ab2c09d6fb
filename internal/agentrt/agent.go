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
// Package agentrt implements the agent runtime (C5): the per-node
// perceive -> propose -> acknowledge loop and its acceptance policy. A
// single Agent value carries its node id and class tag; per-class
// variation (the perception radius; every class evaluates the same
// predicates) lives in a configuration table keyed by class, not in a
// type hierarchy, per
// spec.md §9 "Agent dispatch".
package agentrt

import (
	"github.com/tumluliu/spacxt/internal/bus"
	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/geom"
	"github.com/tumluliu/spacxt/internal/scene"
)

// Agent is a capability record, not an object with methods bound to
// hidden state: its behavior is the pure functions in this package,
// parameterized by id, class, and the shared store/bus.
type Agent struct {
	ID    string
	Class string
}

// ClassConfig holds per-class overrides for the negotiation loop. A zero
// value falls back to spec.md §4.4's defaults.
type ClassConfig struct {
	PerceptionRadius float64
}

// Registry maps a class tag to its ClassConfig. Adding class-specific
// behavior means adding a table entry, not a subtype.
type Registry map[string]ClassConfig

func (r Registry) perceptionRadius(class string, fallback float64) float64 {
	if cfg, ok := r[class]; ok && cfg.PerceptionRadius > 0 {
		return cfg.PerceptionRadius
	}
	return fallback
}

// DefaultPerceptionRadius is r_perc from spec.md §4.4.
const DefaultPerceptionRadius = 1.5

var basisNames = map[string]string{
	"on_top_of": "OnTopOf",
	"supports":  "OnTopOf",
	"beside":    "Beside",
	"near":      "Near",
	"far":       "Near",
	"above":     "AboveBelow",
	"below":     "AboveBelow",
	"in":        "In",
}

// Perception is Phase A's output for one agent: the top-priority
// candidate relation evaluated against each neighbor this tick, keyed by
// neighbor id. Phase B consumes it to detect superseded relations without
// re-querying the store mid-tick.
type Perception struct {
	AgentID    string
	Candidates map[string]geom.Candidate
}

// PerceiveAndPropose is Phase A of spec.md §4.4: read the agent's own
// node, query its neighborhood, evaluate the topology kit against each
// neighbor, and send a RELATION_PROPOSE for any top candidate whose
// confidence clears tau_propose. It never touches the store.
func PerceiveAndPropose(a Agent, store *scene.Store, b *bus.Bus, registry Registry, th geom.Thresholds, tauPropose float64, timestamp int64) (Perception, error) {
	node, err := store.GetNode(a.ID)
	if err != nil {
		if errkind.Of(err) == errkind.NotFound {
			return Perception{AgentID: a.ID, Candidates: map[string]geom.Candidate{}}, nil
		}
		return Perception{}, err
	}

	r := registry.perceptionRadius(a.Class, DefaultPerceptionRadius)
	neighbors, err := store.Neighbors(a.ID, r)
	if err != nil {
		return Perception{}, err
	}

	perception := Perception{AgentID: a.ID, Candidates: make(map[string]geom.Candidate, len(neighbors))}
	for _, nb := range neighbors {
		candidate, _, ok := geom.Evaluate(node.Body(), nb.Body(), th)
		if !ok {
			continue
		}
		perception.Candidates[nb.ID] = candidate
		if candidate.Conf >= tauPropose {
			b.Send(bus.Message{
				Type:      bus.RelationPropose,
				Sender:    a.ID,
				Receiver:  nb.ID,
				Timestamp: timestamp,
				Payload: bus.ProposePayload{
					Type:  candidate.Type,
					A:     candidate.A,
					B:     candidate.B,
					Conf:  candidate.Conf,
					Props: candidate.Props,
					Basis: basisNames[candidate.Type],
				},
			})
		}
	}
	return perception, nil
}

// directedReservedTypes are the reserved relation types that carry an
// explicit direction from this agent's perspective (near/far are
// symmetric in meaning but still stored as a directed pair both ways by
// convention elsewhere in the system; agents only ever reason about the
// (agent -> neighbor) direction here).
var directedReservedTypes = []string{"on_top_of", "beside", "near", "above", "below"}

// HandleInboxAndCommit is Phase B of spec.md §4.4: drain the agent's
// inbox, decide accept/reject for proposals, acknowledge them, and build
// one patch. It returns the patch (never mutating the store directly);
// the ack messages are sent on b directly rather than returned.
func HandleInboxAndCommit(a Agent, store *scene.Store, b *bus.Bus, perception Perception, tauAccept, tauSupersede float64, timestamp int64) (*scene.Patch, error) {
	patch := scene.NewPatch(timestamp, a.ID)
	msgs := b.Drain(a.ID)

	for _, m := range msgs {
		switch m.Type {
		case bus.RelationPropose:
			payload, ok := m.Payload.(bus.ProposePayload)
			if !ok {
				continue
			}
			accept := payload.Conf >= tauAccept
			b.Send(bus.Message{
				Type:      bus.RelationAck,
				Sender:    a.ID,
				Receiver:  m.Sender,
				Timestamp: timestamp,
				Payload: bus.AckPayload{
					Type: payload.Type, A: payload.A, B: payload.B,
					Conf: payload.Conf, Props: payload.Props, Accepted: accept,
				},
			})
			if accept {
				patch.AddRelations = append(patch.AddRelations, &scene.Relation{
					Type: payload.Type, A: payload.A, B: payload.B,
					Confidence: payload.Conf, Props: payload.Props,
				})
			}
		case bus.RelationAck:
			payload, ok := m.Payload.(bus.AckPayload)
			if !ok || !payload.Accepted {
				continue
			}
			patch.AddRelations = append(patch.AddRelations, &scene.Relation{
				Type: payload.Type, A: payload.A, B: payload.B,
				Confidence: payload.Conf, Props: payload.Props,
			})
		}
	}

	existing := make(map[scene.RelationKey]bool)
	for _, r := range store.Snapshot().Relations {
		existing[r.Key()] = true
	}

	for neighborID, candidate := range perception.Candidates {
		if candidate.Conf < tauSupersede {
			continue
		}
		for _, t := range directedReservedTypes {
			if t == candidate.Type {
				continue
			}
			key := scene.RelationKey{Type: t, A: a.ID, B: neighborID}
			if existing[key] {
				patch.RemoveRelations = append(patch.RemoveRelations, key)
			}
		}
	}

	return patch, nil
}
