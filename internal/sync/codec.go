package sync

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/cuemby/voxelcore/internal/ecs/component"
	"github.com/cuemby/voxelcore/internal/ecs/entity"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
)

type componentCodec struct {
	marshal    func(r *registry.Registry, e entity.ID) ([]byte, bool)
	unmarshal  func(r *registry.Registry, e entity.ID, data []byte) error
	remoteInit func(r *registry.Registry, e entity.ID)
}

// Catalogue is the process-wide table of replicable component types: how to
// marshal/unmarshal a value for the wire and (optionally) how to
// remote-initialize a mirrored entity before its first set_component.
// Components don't know about the network; the embedding game registers
// each replicated type once, up front.
type Catalogue struct {
	mu     sync.RWMutex
	codecs map[string]componentCodec
}

// NewCatalogue constructs an empty Catalogue.
func NewCatalogue() *Catalogue { return &Catalogue{codecs: make(map[string]componentCodec)} }

// RegisterComponent makes C replicable. remoteInit, if non-nil, runs on the
// receiving side once per mirrored entity, after add_entity and before the
// first set_component for that entity is applied — it receives a freshly
// emplaced zero value to initialize in place.
//
// Component values are serialized with encoding/gob: the replicated types
// are arbitrary structs the embedding game registers at runtime, not a
// fixed schema a code-generated or schema-bound format (protobuf, the kind
// the rest of the retrieval pack reaches for) could serve without a build
// step per game-defined component.
func RegisterComponent[C any](cat *Catalogue, remoteInit func(r *registry.Registry, e entity.ID, value *C)) {
	name := component.TypeNameOf[C]()
	cat.mu.Lock()
	defer cat.mu.Unlock()
	cat.codecs[name] = componentCodec{
		marshal: func(r *registry.Registry, e entity.ID) ([]byte, bool) {
			v, ok := registry.Get[C](r, e)
			if !ok {
				return nil, false
			}
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(*v); err != nil {
				return nil, false
			}
			return buf.Bytes(), true
		},
		unmarshal: func(r *registry.Registry, e entity.ID, data []byte) error {
			var v C
			if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
				return fmt.Errorf("sync: decode component %q: %w", name, err)
			}
			if ptr, ok := registry.Get[C](r, e); ok {
				*ptr = v
			} else {
				registry.Emplace(r, e, v)
			}
			return nil
		},
		remoteInit: func(r *registry.Registry, e entity.ID) {
			if remoteInit == nil {
				return
			}
			var zero C
			ptr, _ := registry.Emplace(r, e, zero)
			remoteInit(r, e, ptr)
		},
	}
}

func (c *Catalogue) marshalComponent(r *registry.Registry, typeName string, e entity.ID) ([]byte, bool) {
	c.mu.RLock()
	codec, ok := c.codecs[typeName]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return codec.marshal(r, e)
}

func (c *Catalogue) applyComponent(r *registry.Registry, typeName string, e entity.ID, data []byte) error {
	c.mu.RLock()
	codec, ok := c.codecs[typeName]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("sync: unregistered component type %q", typeName)
	}
	return codec.unmarshal(r, e, data)
}

func (c *Catalogue) runRemoteInit(r *registry.Registry, typeName string, e entity.ID) {
	c.mu.RLock()
	codec, ok := c.codecs[typeName]
	c.mu.RUnlock()
	if ok {
		codec.remoteInit(r, e)
	}
}
