package sync

import (
	"bytes"
	"encoding/gob"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/voxelcore/internal/ecs/entity"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
)

type Position struct{ X, Y float64 }

type recordingTransport struct {
	sent []struct {
		remote Remote
		msg    Message
	}
}

func (t *recordingTransport) Send(remote Remote, msg Message) {
	t.sent = append(t.sent, struct {
		remote Remote
		msg    Message
	}{remote, msg})
}

func newTestRegistry() *registry.Registry {
	return registry.New(entity.DefaultTraits)
}

func TestVisibilityAddedBecomesAddEntityThenSetComponent(t *testing.T) {
	r := newTestRegistry()
	e := r.CreateEntity()
	registry.Emplace(r, e, Position{1, 2})

	remote := uuid.New()
	cat := NewCatalogue()
	RegisterComponent[Position](cat, nil)
	val := NewChangeValidator()
	vis := NewVisibilitySystem(func(r *registry.Registry, e entity.ID, remote Remote) bool { return true })
	s := NewSynchronizer(cat, val, vis, []string{"sync.Position"})

	transport := &recordingTransport{}
	s.Tick(r, time.Now(), []Remote{remote}, transport)

	require.Len(t, transport.sent, 2)
	assert.Equal(t, KindAddEntity, transport.sent[0].msg.Kind)
	assert.Equal(t, []entity.ID{e}, transport.sent[0].msg.Entities)
	assert.Equal(t, KindSetComponent, transport.sent[1].msg.Kind)
}

func TestUnchangedComponentIsNotResent(t *testing.T) {
	r := newTestRegistry()
	e := r.CreateEntity()
	registry.Emplace(r, e, Position{1, 2})

	remote := uuid.New()
	cat := NewCatalogue()
	RegisterComponent[Position](cat, nil)
	vis := NewVisibilitySystem(func(r *registry.Registry, e entity.ID, remote Remote) bool { return true })
	s := NewSynchronizer(cat, NewChangeValidator(), vis, []string{"sync.Position"})

	transport := &recordingTransport{}
	s.Tick(r, time.Now(), []Remote{remote}, transport)
	firstCount := len(transport.sent)

	s.Tick(r, time.Now(), []Remote{remote}, transport)
	assert.Len(t, transport.sent, firstCount, "no new messages when nothing changed")
}

func TestForbiddenEditIsRejectedAndUndone(t *testing.T) {
	r := newTestRegistry()
	e := r.CreateEntity()
	registry.Emplace(r, e, Position{1, 2})

	remote := uuid.New()
	cat := NewCatalogue()
	RegisterComponent[Position](cat, nil)
	val := NewChangeValidator()
	val.SetPolicy("sync.Position", remote, Forbidden)
	vis := NewVisibilitySystem(nil)
	s := NewSynchronizer(cat, val, vis, []string{"sync.Position"})

	transport := &recordingTransport{}
	inbound := Message{Kind: KindSetComponent, Entity: e, Component: ComponentValue{ComponentType: "sync.Position"}}

	require.NoError(t, s.ApplyInbound(r, remote, inbound, transport))
	require.Len(t, transport.sent, 1)
	assert.Equal(t, KindUndoComponent, transport.sent[0].msg.Kind)

	pos, _ := registry.Get[Position](r, e)
	assert.Equal(t, Position{1, 2}, *pos, "forbidden edit must not apply")
}

func TestAllowedEditApplies(t *testing.T) {
	r := newTestRegistry()
	e := r.CreateEntity()
	registry.Emplace(r, e, Position{1, 2})

	remote := uuid.New()
	cat := NewCatalogue()
	RegisterComponent[Position](cat, nil)
	val := NewChangeValidator()
	val.SetPolicy("sync.Position", remote, Allowed)
	s := NewSynchronizer(cat, val, NewVisibilitySystem(nil), []string{"sync.Position"})

	newVal := Position{9, 9}
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(newVal))

	msg := Message{Kind: KindSetComponent, Entity: e, Component: ComponentValue{ComponentType: "sync.Position", Bytes: buf.Bytes()}}
	require.NoError(t, s.ApplyInbound(r, remote, msg, &recordingTransport{}))

	pos, _ := registry.Get[Position](r, e)
	assert.Equal(t, newVal, *pos)
}

func TestRemoteInitRunsBeforeFirstSetComponent(t *testing.T) {
	r := newTestRegistry()
	remote := uuid.New()
	cat := NewCatalogue()
	var initialized []entity.ID
	RegisterComponent[Position](cat, func(r *registry.Registry, e entity.ID, value *Position) {
		initialized = append(initialized, e)
		value.X = -1
	})
	s := NewSynchronizer(cat, NewChangeValidator(), NewVisibilitySystem(nil), []string{"sync.Position"})

	e := entity.ID(42)
	msg := Message{Kind: KindAddEntity, Entities: []entity.ID{e}}
	require.NoError(t, s.ApplyInbound(r, remote, msg, &recordingTransport{}))

	assert.Equal(t, []entity.ID{e}, initialized)
	pos, ok := registry.Get[Position](r, e)
	require.True(t, ok)
	assert.Equal(t, -1.0, pos.X)
}
