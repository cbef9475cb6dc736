package instance

import (
	"sync"

	"github.com/cuemby/voxelcore/internal/session"
	syncpkg "github.com/cuemby/voxelcore/internal/sync"
)

// Connection is one message handler: a local in-process peer or a
// session-backed remote peer. Both implement syncpkg.Transport indirectly
// through Instance, which routes by remote ID.
type Connection interface {
	RemoteID() syncpkg.Remote
	Send(msg syncpkg.Message)
	Close()
}

// LocalConnection pairs two in-process instances directly, with a
// bootstrap queue that holds messages sent before the receiving side has
// installed its handler.
type LocalConnection struct {
	remoteID syncpkg.Remote

	mu        sync.Mutex
	peer      *LocalConnection
	onMessage func(syncpkg.Message)
	bootstrap []syncpkg.Message
}

// NewLocalPair creates two connected LocalConnections, each addressed by
// the other side's instance ID.
func NewLocalPair(localID, remoteID syncpkg.Remote) (*LocalConnection, *LocalConnection) {
	a := &LocalConnection{remoteID: remoteID}
	b := &LocalConnection{remoteID: localID}
	a.peer = b
	b.peer = a
	return a, b
}

// RemoteID returns the peer instance's ID.
func (c *LocalConnection) RemoteID() syncpkg.Remote { return c.remoteID }

// Install registers the handler for messages arriving from the peer,
// flushing anything queued during bootstrap first.
func (c *LocalConnection) Install(onMessage func(syncpkg.Message)) {
	c.mu.Lock()
	c.onMessage = onMessage
	queued := c.bootstrap
	c.bootstrap = nil
	c.mu.Unlock()

	for _, m := range queued {
		onMessage(m)
	}
}

// Send delivers msg to the peer, queueing it if the peer hasn't installed
// its handler yet.
func (c *LocalConnection) Send(msg syncpkg.Message) { c.peer.deliver(msg) }

func (c *LocalConnection) deliver(msg syncpkg.Message) {
	c.mu.Lock()
	if c.onMessage == nil {
		c.bootstrap = append(c.bootstrap, msg)
		c.mu.Unlock()
		return
	}
	fn := c.onMessage
	c.mu.Unlock()
	fn(msg)
}

// Close is a no-op for local connections: there is no socket to tear down.
func (c *LocalConnection) Close() {}

// RemoteConnection is a session-backed Connection: outgoing messages are
// gob-encoded and written as session frames; inbound frames are decoded by
// the owning Instance's session event handler.
type RemoteConnection struct {
	remoteID syncpkg.Remote
	sess     *session.Session
}

// NewRemoteConnection wraps sess, addressed by the peer's instance ID
// (known only after identity exchange completes).
func NewRemoteConnection(remoteID syncpkg.Remote, sess *session.Session) *RemoteConnection {
	return &RemoteConnection{remoteID: remoteID, sess: sess}
}

func (c *RemoteConnection) RemoteID() syncpkg.Remote { return c.remoteID }

func (c *RemoteConnection) Send(msg syncpkg.Message) {
	data, err := syncpkg.Encode(msg)
	if err != nil {
		return
	}
	c.sess.Write(data)
}

func (c *RemoteConnection) Close() { c.sess.Stop() }
