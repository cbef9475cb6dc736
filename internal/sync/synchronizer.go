package sync

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/voxelcore/internal/ecs/entity"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
)

type syncKey struct {
	remote    Remote
	entity    entity.ID
	component string
}

// Synchronizer drives replication for one set of component types:
// visibility add/del batching, per-type rate-limited set_component
// diffing, and inbound message application through the change validator.
type Synchronizer struct {
	catalogue      *Catalogue
	validator      *ChangeValidator
	visibility     *VisibilitySystem
	componentTypes []string

	mu            sync.Mutex
	syncRate      map[string]time.Duration
	lastSentBytes map[syncKey][]byte
	lastSentAt    map[syncKey]time.Time
}

// NewSynchronizer constructs a Synchronizer over componentTypes (each
// already passed to RegisterComponent against cat). Entities participate
// only if visible per vis's predicate — a tag-set restriction, where
// wanted, is folded into that predicate by the caller.
func NewSynchronizer(cat *Catalogue, val *ChangeValidator, vis *VisibilitySystem, componentTypes []string) *Synchronizer {
	return &Synchronizer{
		catalogue:      cat,
		validator:      val,
		visibility:     vis,
		componentTypes: componentTypes,
		syncRate:       make(map[string]time.Duration),
		lastSentBytes:  make(map[syncKey][]byte),
		lastSentAt:     make(map[syncKey]time.Time),
	}
}

// Forget drops all per-remote state (visibility and last-sent tracking),
// e.g. when a connection disconnects.
func (s *Synchronizer) Forget(remote Remote) {
	s.visibility.Forget(remote)

	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.lastSentBytes {
		if key.remote == remote {
			delete(s.lastSentBytes, key)
			delete(s.lastSentAt, key)
		}
	}
}

// SetSyncRate bounds how often componentType's set_component is resent to
// any one remote for the same entity, even if the value keeps changing.
// Zero (the default) means unthrottled: send on every change.
func (s *Synchronizer) SetSyncRate(componentType string, rate time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncRate[componentType] = rate
}

// Tick performs one replication step for every remote in remotes:
// 1. visibility add_entity/del_entity batches;
// 2. rate-limited, change-detected set_component for each visible entity's
// synchronized component types.
func (s *Synchronizer) Tick(r *registry.Registry, now time.Time, remotes []Remote, transport Transport) {
	deltas := s.visibility.Tick(r, remotes)

	s.mu.Lock()
	for remote, delta := range deltas {
		if len(delta.Added) > 0 {
			transport.Send(remote, Message{Kind: KindAddEntity, Entities: delta.Added})
		}
		if len(delta.Removed) > 0 {
			transport.Send(remote, Message{Kind: KindDelEntity, Entities: delta.Removed})
			for _, e := range delta.Removed {
				for _, ct := range s.componentTypes {
					key := syncKey{remote, e, ct}
					delete(s.lastSentBytes, key)
					delete(s.lastSentAt, key)
				}
			}
		}
	}
	s.mu.Unlock()

	for _, remote := range remotes {
		for _, e := range s.visibility.Visible(remote) {
			s.syncComponent(r, now, remote, e, transport)
		}
	}
}

func (s *Synchronizer) syncComponent(r *registry.Registry, now time.Time, remote Remote, e entity.ID, transport Transport) {
	for _, ct := range s.componentTypes {
		key := syncKey{remote, e, ct}

		s.mu.Lock()
		rate := s.syncRate[ct]
		last, haveLast := s.lastSentAt[key]
		s.mu.Unlock()
		if rate > 0 && haveLast && now.Sub(last) < rate {
			continue
		}

		data, ok := s.catalogue.marshalComponent(r, ct, e)
		if !ok {
			continue
		}

		s.mu.Lock()
		prev, havePrev := s.lastSentBytes[key]
		unchanged := havePrev && bytes.Equal(prev, data)
		if !unchanged {
			s.lastSentBytes[key] = data
			s.lastSentAt[key] = now
		}
		s.mu.Unlock()
		if unchanged {
			continue
		}

		transport.Send(remote, Message{
			Kind:      KindSetComponent,
			Entity:    e,
			Component: ComponentValue{ComponentType: ct, Bytes: data},
		})
	}
}

// ApplyInbound processes one message received from peer. It recurses for
// compound messages and is otherwise a closed switch over the message
// catalogue.
func (s *Synchronizer) ApplyInbound(r *registry.Registry, peer Remote, msg Message, transport Transport) error {
	switch msg.Kind {
	case KindAddEntity:
		for _, e := range msg.Entities {
			r.CreateEntityWithID(e)
			for _, ct := range s.componentTypes {
				s.catalogue.runRemoteInit(r, ct, e)
			}
		}
	case KindDelEntity:
		for _, e := range msg.Entities {
			r.DestroyEntity(e)
		}
	case KindSetComponent:
		return s.applySetComponent(r, peer, msg, transport)
	case KindUndoComponent:
		return s.catalogue.applyComponent(r, msg.Component.ComponentType, msg.Entity, msg.Component.Bytes)
	case KindPartialSync:
		dispatchPartial(r, peer, msg.Component.ComponentType, msg.MessageType, msg.Entity, msg.Payload)
	case KindCompound:
		for _, inner := range msg.Inner {
			if err := s.ApplyInbound(r, peer, inner, transport); err != nil {
				return err
			}
		}
	case KindIgnore, KindIdentity:
		// no-op carriers; identity is consumed during handshake, not here.
	default:
		return fmt.Errorf("sync: unknown message kind %d", msg.Kind)
	}
	return nil
}

func (s *Synchronizer) applySetComponent(r *registry.Registry, peer Remote, msg Message, transport Transport) error {
	switch s.validator.Verdict(msg.Component.ComponentType, peer) {
	case Allowed:
		return s.catalogue.applyComponent(r, msg.Component.ComponentType, msg.Entity, msg.Component.Bytes)
	case Forbidden:
		authoritative, ok := s.catalogue.marshalComponent(r, msg.Component.ComponentType, msg.Entity)
		if !ok {
			return nil
		}
		transport.Send(peer, Message{
			Kind:      KindUndoComponent,
			Entity:    msg.Entity,
			Component: ComponentValue{ComponentType: msg.Component.ComponentType, Bytes: authoritative},
		})
	case Ignored:
		// apply nothing, respond nothing — avoids leaking authoritative state.
	}
	return nil
}
