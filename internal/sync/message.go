// Package sync implements replication: the visibility system, synchronizer,
// change validator, remote-init system, partial synchronization and the
// core engine-reserved message catalogue.
package sync

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/google/uuid"

	"github.com/cuemby/voxelcore/internal/ecs/entity"
)

// Remote identifies a peer instance. Aliased to uuid.UUID so it lines up
// with instance.ID: a remote IS another instance's identity.
type Remote = uuid.UUID

// Kind enumerates the engine-reserved message catalogue.
type Kind uint8

const (
	KindIdentity Kind = iota
	KindAddEntity
	KindDelEntity
	KindSetComponent
	KindUndoComponent
	KindPartialSync
	KindCompound
	KindIgnore
)

// ComponentValue carries one component's replicated bytes, tagged with its
// registered type name so the receiving catalogue can look up its codec.
type ComponentValue struct {
	ComponentType string
	Bytes         []byte
}

// Message is a flattened representation of every catalogue message: only
// the fields relevant to Kind are populated, the rest left zero. A single
// concrete struct (rather than an interface union) keeps gob encoding
// simple and avoids type registration at every call site.
type Message struct {
	Kind Kind

	InstanceID string // identity, ignore

	Entities []entity.ID // add_entity, del_entity

	Entity    entity.ID      // set_component, undo_component, partial_sync
	Component ComponentValue // set_component, undo_component

	MessageType string // partial_sync
	Payload     []byte // partial_sync, ignore

	Inner []Message // compound
}

// Encode serializes a Message for the wire. Paired with session.Write,
// whose frame codec handles compression and length-prefixing.
func Encode(m Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("sync: encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a Message from bytes produced by Encode.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return Message{}, fmt.Errorf("sync: decode message: %w", err)
	}
	return m, nil
}

// Transport is how the visibility system and synchronizer deliver an
// outbound message to a specific remote. internal/instance's connections
// implement this.
type Transport interface {
	Send(remote Remote, msg Message)
}
