package sync

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/voxelcore/internal/ecs/entity"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
)

// TestSendPartialDispatchesToRegisteredHandler drives a full round trip:
// SendPartial builds the envelope, the receiving side decodes it back to a
// Message and hands it to dispatchPartial, which must find the handler
// registered for the (component, message) pair and deliver the payload.
func TestSendPartialDispatchesToRegisteredHandler(t *testing.T) {
	r := newTestRegistry()
	e := r.CreateEntity()
	remote := uuid.New()

	var gotPeer Remote
	var gotEntity entity.ID
	var gotPayload []byte
	RegisterPartialHandler("sync.Position", "ping", func(rr *registry.Registry, peer Remote, ee entity.ID, payload []byte) {
		gotPeer = peer
		gotEntity = ee
		gotPayload = payload
	})

	transport := &recordingTransport{}
	SendPartial(transport, remote, "sync.Position", "ping", e, []byte("hello"))

	require.Len(t, transport.sent, 1)
	data, err := Encode(transport.sent[0].msg)
	require.NoError(t, err)
	sent, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, KindPartialSync, sent.Kind)
	assert.Equal(t, "ping", sent.MessageType)
	assert.Equal(t, "sync.Position", sent.Component.ComponentType)

	delivered := dispatchPartial(r, remote, sent.Component.ComponentType, sent.MessageType, sent.Entity, sent.Payload)
	assert.True(t, delivered, "dispatchPartial should find the registered handler")
	assert.Equal(t, remote, gotPeer)
	assert.Equal(t, e, gotEntity)
	assert.Equal(t, []byte("hello"), gotPayload)
}

// TestDispatchPartialReportsUnknownPairAsUndelivered checks dispatchPartial
// returns false, rather than panicking, when no handler is registered for
// the envelope's (component, message) pair.
func TestDispatchPartialReportsUnknownPairAsUndelivered(t *testing.T) {
	r := newTestRegistry()
	delivered := dispatchPartial(r, uuid.New(), "sync.NoSuchComponent", "nonexistent", entity.ID(0), nil)
	assert.False(t, delivered)
}

// TestBroadcastPartialOnlyReachesVisibleRemotes checks BroadcastPartial
// sends only to remotes for which the entity is currently visible,
// skipping remotes with no visibility entry or a different visible set.
func TestBroadcastPartialOnlyReachesVisibleRemotes(t *testing.T) {
	r := newTestRegistry()
	e := r.CreateEntity()
	other := r.CreateEntity()

	visible := uuid.New()
	invisible := uuid.New()

	vis := NewVisibilitySystem(func(r *registry.Registry, candidate entity.ID, remote Remote) bool {
		return remote == visible && candidate == e
	})
	vis.Tick(r, []Remote{visible, invisible})

	transport := &recordingTransport{}
	BroadcastPartial(transport, vis, []Remote{visible, invisible}, "sync.Position", "ping", e, []byte("x"))

	require.Len(t, transport.sent, 1)
	assert.Equal(t, visible, transport.sent[0].remote)

	transport.sent = nil
	BroadcastPartial(transport, vis, []Remote{visible, invisible}, "sync.Position", "ping", other, []byte("x"))
	assert.Empty(t, transport.sent, "broadcasting for an invisible entity should reach nobody")
}
