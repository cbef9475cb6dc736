package sync

import (
	"sync"

	"github.com/cuemby/voxelcore/internal/ecs/entity"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
)

// PartialHandler processes one partial_sync envelope addressed to a
// (component_type, message_type) pair.
type PartialHandler func(r *registry.Registry, peer Remote, e entity.ID, payload []byte)

type partialKey struct{ componentType, messageType string }

// partialHandlers is process-wide by design rather than per-Catalogue,
// since partial handlers are registered once at program startup alongside
// a component type's other registration, not per-instance.
var (
	partialMu       sync.RWMutex
	partialHandlers = make(map[partialKey]PartialHandler)
)

// RegisterPartialHandler installs the handler invoked when a partial_sync
// message for (componentType, messageType) is received by on_message_received.
func RegisterPartialHandler(componentType, messageType string, fn PartialHandler) {
	partialMu.Lock()
	defer partialMu.Unlock()
	partialHandlers[partialKey{componentType, messageType}] = fn
}

func dispatchPartial(r *registry.Registry, peer Remote, componentType, messageType string, e entity.ID, payload []byte) bool {
	partialMu.RLock()
	fn, ok := partialHandlers[partialKey{componentType, messageType}]
	partialMu.RUnlock()
	if !ok {
		return false
	}
	fn(r, peer, e, payload)
	return true
}

// SendPartial builds and delivers a partial_sync envelope to one remote —
// a component's send_message(peer, msg) operation.
func SendPartial(transport Transport, remote Remote, componentType, messageType string, e entity.ID, payload []byte) {
	transport.Send(remote, Message{
		Kind:        KindPartialSync,
		Entity:      e,
		Component:   ComponentValue{ComponentType: componentType},
		MessageType: messageType,
		Payload:     payload,
	})
}

// BroadcastPartial delivers a partial_sync envelope to every remote on
// which e is visible — a component's broadcast_message(msg) operation.
func BroadcastPartial(transport Transport, vis *VisibilitySystem, remotes []Remote, componentType, messageType string, e entity.ID, payload []byte) {
	for _, remote := range remotes {
		for _, visible := range vis.Visible(remote) {
			if visible == e {
				SendPartial(transport, remote, componentType, messageType, e, payload)
				break
			}
		}
	}
}
