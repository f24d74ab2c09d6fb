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
// Package bus implements the message bus (C4): a mapping from receiver id
// to a FIFO inbox, with deterministic drain. It is the in-process
// reference transport named in spec.md §1; an external bus is a drop-in
// replacement at the same Send/Drain boundary (§4.3).
package bus

import (
	"sync"

	"github.com/tumluliu/spacxt/internal/csync"
)

// MessageType is one of the two A2A message types, per spec.md §3.1.
type MessageType string

const (
	RelationPropose MessageType = "RELATION_PROPOSE"
	RelationAck     MessageType = "RELATION_ACK"
)

// Message is an agent-to-agent message. Messages are not persisted beyond
// the tick in which they are drained, per spec.md §3.1.
type Message struct {
	Type      MessageType
	Sender    string
	Receiver  string
	Timestamp int64
	Payload   any
}

// ProposePayload is the payload of a RELATION_PROPOSE message: a
// candidate relation plus the name of the predicate that produced it.
type ProposePayload struct {
	Type  string
	A, B  string
	Conf  float64
	Props map[string]float64
	Basis string
}

// AckPayload is the payload of a RELATION_ACK message.
type AckPayload struct {
	Type     string
	A, B     string
	Conf     float64
	Props    map[string]float64
	Accepted bool
}

// Bus holds a per-receiver FIFO inbox. Send is append-only per receiver,
// so within one sender-receiver pair messages are delivered in send
// order, per spec.md §4.3. Across senders, messages land in the order
// their Send calls happen; the orchestrator runs Phase A agents
// concurrently, so that interleaving is not fixed from one tick to the
// next.
type Bus struct {
	inboxes *csync.Map[string, *csync.Slice[Message]]
	mu      sync.Mutex // guards inbox creation, not delivery
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{inboxes: csync.NewMap[string, *csync.Slice[Message]]()}
}

func (b *Bus) inboxFor(receiver string) *csync.Slice[Message] {
	if inbox, ok := b.inboxes.Get(receiver); ok {
		return inbox
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if inbox, ok := b.inboxes.Get(receiver); ok {
		return inbox
	}
	inbox := csync.NewSlice[Message]()
	b.inboxes.Set(receiver, inbox)
	return inbox
}

// Send enqueues msg onto its receiver's inbox.
func (b *Bus) Send(msg Message) {
	b.inboxFor(msg.Receiver).Append(msg)
}

// Drain returns and clears the given receiver's inbox.
func (b *Bus) Drain(receiver string) []Message {
	inbox := b.inboxFor(receiver)
	msgs := inbox.Items()
	inbox.Clear()
	return msgs
}

// Reset clears every inbox. Used between ticks in tests and for the
// what-if simulation path, which never wants stray messages to leak.
func (b *Bus) Reset() {
	b.inboxes.Clear()
}
