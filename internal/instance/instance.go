// Package instance implements the client/server/unified instance: a
// registry, scheduler, event dispatcher and a set of connections (local
// in-process or session-backed remote), plus the identity handshake that
// precedes normal message handling on a remote connection.
package instance

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/voxelcore/internal/corelog"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
	"github.com/cuemby/voxelcore/internal/event"
	"github.com/cuemby/voxelcore/internal/scheduler"
	"github.com/cuemby/voxelcore/internal/session"
	syncpkg "github.com/cuemby/voxelcore/internal/sync"
)

// ID identifies an instance for the lifetime of a connection. Aliased to
// uuid.UUID, the same identifier space syncpkg.Remote uses.
type ID = syncpkg.Remote

// Role selects which side of the client/server split an instance runs.
type Role string

const (
	RoleClient  Role = "client"
	RoleServer  Role = "server"
	RoleUnified Role = "unified"
)

// Instance owns one side of the engine: its entity registry, task
// scheduler, event dispatcher, replication catalogue/validator, and the
// live set of connections to other instances.
type Instance struct {
	ID         ID
	Role       Role
	Registry   *registry.Registry
	Scheduler  *scheduler.Scheduler
	Dispatcher *event.Dispatcher
	Catalogue  *syncpkg.Catalogue
	Validator  *syncpkg.ChangeValidator

	messageSizeLimit int

	mu              sync.Mutex
	connections     map[ID]Connection
	pendingSessions map[session.ID]*session.Session
	sessionToRemote map[session.ID]ID
	synchronizers   []*syncpkg.Synchronizer

	logger zerolog.Logger
}

// New constructs an Instance around the given registry and scheduler
// (either may be nil for tests that don't exercise that subsystem) with a
// fresh event dispatcher and replication catalogue.
func New(role Role, reg *registry.Registry, sched *scheduler.Scheduler, messageSizeLimit int) *Instance {
	id := uuid.New()
	inst := &Instance{
		ID:               id,
		Role:             role,
		Registry:         reg,
		Scheduler:        sched,
		Dispatcher:       event.New(),
		Catalogue:        syncpkg.NewCatalogue(),
		Validator:        syncpkg.NewChangeValidator(),
		messageSizeLimit: messageSizeLimit,
		connections:      make(map[ID]Connection),
		pendingSessions:  make(map[session.ID]*session.Session),
		sessionToRemote:  make(map[session.ID]ID),
		logger:           corelog.WithInstance(id.String()),
	}
	event.AddHandler(inst.Dispatcher, event.Normal, inst.onSessionMessage)
	event.AddHandler(inst.Dispatcher, event.Normal, inst.onSessionEnded)
	event.AddHandler(inst.Dispatcher, event.Normal, inst.onSessionError)
	return inst
}

// AddSynchronizer registers s to run on every Update tick.
func (inst *Instance) AddSynchronizer(s *syncpkg.Synchronizer) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.synchronizers = append(inst.synchronizers, s)
}

// Connect wires a and b together over a local in-process connection pair,
// skipping the identity handshake remote connections require: both sides
// already know each other's ID from the function arguments.
func Connect(a, b *Instance) {
	ca, cb := NewLocalPair(a.ID, b.ID)
	a.registerConnection(ca)
	b.registerConnection(cb)
	ca.Install(func(msg syncpkg.Message) { a.handleMessage(b.ID, msg) })
	cb.Install(func(msg syncpkg.Message) { b.handleMessage(a.ID, msg) })
}

// Dial opens a remote connection to addr and begins the identity handshake.
func (inst *Instance) Dial(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("instance: dial %s: %w", addr, err)
	}
	inst.AttachSession(session.New(session.NewID(), conn, inst.messageSizeLimit, inst.Dispatcher))
	return nil
}

// Serve accepts connections on ln until it returns an error (typically from
// Close), attaching a session and beginning the identity handshake for each.
func (inst *Instance) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		inst.AttachSession(session.New(session.NewID(), conn, inst.messageSizeLimit, inst.Dispatcher))
	}
}

// AttachSession begins a remote connection's lifecycle: start the session
// and immediately send our identity as an ignored frame. The connection
// isn't registered until the peer's matching identity frame arrives.
func (inst *Instance) AttachSession(sess *session.Session) {
	inst.mu.Lock()
	inst.pendingSessions[sess.ID()] = sess
	inst.mu.Unlock()

	sess.Start()
	idMsg := syncpkg.Message{Kind: syncpkg.KindIgnore, InstanceID: inst.ID.String()}
	if data, err := syncpkg.Encode(idMsg); err == nil {
		sess.Write(data)
	}
}

func (inst *Instance) completeHandshake(sess *session.Session, msg syncpkg.Message) {
	if msg.Kind != syncpkg.KindIgnore || msg.InstanceID == "" {
		return
	}
	remoteID, err := uuid.Parse(msg.InstanceID)
	if err != nil {
		inst.logger.Error().Err(err).Msg("malformed identity frame")
		return
	}

	conn := NewRemoteConnection(remoteID, sess)
	inst.mu.Lock()
	delete(inst.pendingSessions, sess.ID())
	inst.connections[remoteID] = conn
	inst.sessionToRemote[sess.ID()] = remoteID
	inst.mu.Unlock()
}

func (inst *Instance) registerConnection(c Connection) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.connections[c.RemoteID()] = c
}

func (inst *Instance) handleMessage(from ID, msg syncpkg.Message) {
	inst.mu.Lock()
	synchronizers := inst.synchronizers
	inst.mu.Unlock()

	for _, s := range synchronizers {
		if err := s.ApplyInbound(inst.Registry, from, msg, inst); err != nil {
			inst.logger.Error().Err(err).Str("from", from.String()).Msg("apply inbound message failed")
		}
	}
}

func (inst *Instance) onSessionMessage(e session.MessageReceivedEvent) bool {
	msg, err := syncpkg.Decode(e.Data)
	if err != nil {
		inst.logger.Error().Err(err).Msg("malformed replication frame")
		return false
	}

	inst.mu.Lock()
	sess, pending := inst.pendingSessions[e.SessionID]
	remoteID, established := inst.sessionToRemote[e.SessionID]
	inst.mu.Unlock()

	switch {
	case pending:
		inst.completeHandshake(sess, msg)
	case established:
		inst.handleMessage(remoteID, msg)
	}
	return false
}

func (inst *Instance) onSessionEnded(e session.EndedEvent) bool {
	inst.mu.Lock()
	remoteID, ok := inst.sessionToRemote[e.SessionID]
	delete(inst.sessionToRemote, e.SessionID)
	delete(inst.pendingSessions, e.SessionID)
	if ok {
		delete(inst.connections, remoteID)
	}
	synchronizers := inst.synchronizers
	inst.mu.Unlock()

	if ok {
		for _, s := range synchronizers {
			s.Forget(remoteID)
		}
	}
	return false
}

func (inst *Instance) onSessionError(e session.ErrorEvent) bool {
	inst.logger.Warn().Str("cause", e.Cause).Err(e.Err).Msg("session error")
	return false
}

// Send implements sync.Transport, routing an outbound message to the
// connection registered for remote, if any (e.g. after it has disconnected,
// this is silently dropped).
func (inst *Instance) Send(remote syncpkg.Remote, msg syncpkg.Message) {
	inst.mu.Lock()
	conn, ok := inst.connections[remote]
	inst.mu.Unlock()
	if !ok {
		return
	}
	conn.Send(msg)
}

// Remotes returns the instance IDs of every currently-established connection.
func (inst *Instance) Remotes() []ID {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	out := make([]ID, 0, len(inst.connections))
	for id := range inst.connections {
		out = append(out, id)
	}
	return out
}

// Update runs one tick: the scheduler, then every session's event drain,
// then every synchronizer's replication pass, then any delayed events
// buffered during the tick.
func (inst *Instance) Update(dt time.Duration) error {
	if inst.Scheduler != nil {
		if err := inst.Scheduler.Invoke(dt, inst.Registry); err != nil {
			return err
		}
	}

	inst.mu.Lock()
	sessions := make([]*session.Session, 0, len(inst.pendingSessions)+len(inst.connections))
	for _, s := range inst.pendingSessions {
		sessions = append(sessions, s)
	}
	for _, c := range inst.connections {
		if rc, ok := c.(*RemoteConnection); ok {
			sessions = append(sessions, rc.sess)
		}
	}
	synchronizers := inst.synchronizers
	inst.mu.Unlock()

	for _, s := range sessions {
		s.Update()
	}

	now := time.Now()
	remotes := inst.Remotes()
	for _, s := range synchronizers {
		s.Tick(inst.Registry, now, remotes, inst)
	}

	inst.Dispatcher.DispatchPending()
	return nil
}

// Close tears down every connection.
func (inst *Instance) Close() {
	inst.mu.Lock()
	conns := make([]Connection, 0, len(inst.connections))
	for _, c := range inst.connections {
		conns = append(conns, c)
	}
	inst.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
