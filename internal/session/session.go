// Package session implements a framed, DEFLATE-compressed stream
// transport: start/stop/write/update, a three-state machine
// (created/started/ended), single-writer serialization of outgoing frames,
// and strictly sequential reads that enqueue events for delivery on the
// owning goroutine via Update.
package session

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/voxelcore/internal/corelog"
	"github.com/cuemby/voxelcore/internal/event"
	"github.com/cuemby/voxelcore/pkg/metrics"
)

// ID identifies a session for the lifetime of the process.
type ID = uuid.UUID

// NewID generates a fresh session identifier.
func NewID() ID { return uuid.New() }

// State is a session's position in its start/stop lifecycle.
type State int32

const (
	StateCreated State = iota
	StateStarted
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

var (
	ErrNotConnected    = errors.New("session: not connected")
	ErrMessageTooLarge = errors.New("session: message exceeds size limit")
	ErrQueueFull       = errors.New("session: write queue full")
)

// Events dispatched to the owning instance's event.Dispatcher.
type StartedEvent struct{ SessionID ID }
type MessageReceivedEvent struct {
	SessionID ID
	Data      []byte
}
type ErrorEvent struct {
	SessionID ID
	Cause     string
	Err       error
}
type EndedEvent struct{ SessionID ID }

// Session owns one stream connection's framing, compression and lifecycle.
type Session struct {
	id    ID
	conn  net.Conn
	limit int
	disp  *event.Dispatcher

	state atomic.Int32

	writeCh chan []byte
	doneCh  chan struct{}
	stopped sync.Once

	pendingMu sync.Mutex
	pending   []func()

	logger zerolog.Logger
}

// New constructs a Session over conn. conn may be nil to model a socket
// that failed to open before Start was ever called.
func New(id ID, conn net.Conn, messageSizeLimit int, disp *event.Dispatcher) *Session {
	return &Session{
		id:      id,
		conn:    conn,
		limit:   messageSizeLimit,
		disp:    disp,
		writeCh: make(chan []byte, 256),
		doneCh:  make(chan struct{}),
		logger:  corelog.WithSession(id.String()),
	}
}

// ID returns the session's identifier.
func (s *Session) ID() ID { return s.id }

// State reports the session's current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Start transitions created→started and begins the read/write loops. A nil
// conn instead emits session_error(not_connected) and leaves the session in
// its created state. A conn that is already closed is not detected here: the
// session starts, and the first failed read ends it with an I/O error.
func (s *Session) Start() {
	if s.conn == nil {
		s.enqueue(func() {
			event.Dispatch(s.disp, ErrorEvent{SessionID: s.id, Cause: "not_connected", Err: ErrNotConnected})
		})
		return
	}
	s.state.Store(int32(StateStarted))
	s.enqueue(func() { event.Dispatch(s.disp, StartedEvent{SessionID: s.id}) })

	go s.writeLoop()
	go s.readLoop()
}

// Stop tears the session down: closes the socket, stops the loops, and
// emits session_end. Idempotent.
func (s *Session) Stop() {
	s.stopped.Do(func() {
		s.state.Store(int32(StateEnded))
		if s.conn != nil {
			_ = s.conn.Close()
		}
		close(s.doneCh)
		s.enqueue(func() { event.Dispatch(s.disp, EndedEvent{SessionID: s.id}) })
	})
}

// Write enqueues payload for serialization and transmission on the single
// writer goroutine. Write still accepts calls after the session has ended;
// each such call writes nothing and is reported as
// session_error(not_connected) on the next Update.
func (s *Session) Write(payload []byte) {
	if s.State() == StateEnded {
		s.enqueue(func() {
			event.Dispatch(s.disp, ErrorEvent{SessionID: s.id, Cause: "not_connected", Err: ErrNotConnected})
		})
		return
	}
	select {
	case s.writeCh <- payload:
	default:
		s.enqueue(func() {
			event.Dispatch(s.disp, ErrorEvent{SessionID: s.id, Cause: "resource_exhaustion", Err: ErrQueueFull})
		})
	}
}

// Update drains every event accumulated since the last call and runs its
// handler on the calling goroutine, in the order the underlying I/O
// occurred, so connection callbacks never run concurrently with the rest
// of the owning instance's tick.
func (s *Session) Update() {
	s.pendingMu.Lock()
	batch := s.pending
	s.pending = nil
	s.pendingMu.Unlock()

	for _, run := range batch {
		run()
	}
}

func (s *Session) enqueue(fn func()) {
	s.pendingMu.Lock()
	s.pending = append(s.pending, fn)
	s.pendingMu.Unlock()
}

func (s *Session) writeLoop() {
	for {
		select {
		case payload := <-s.writeCh:
			if s.State() != StateStarted {
				s.enqueue(func() {
					event.Dispatch(s.disp, ErrorEvent{SessionID: s.id, Cause: "not_connected", Err: ErrNotConnected})
				})
				continue
			}
			frame, err := encodeFrame(payload)
			if err != nil {
				s.fail(err, "protocol_violation")
				continue
			}
			if _, err := s.conn.Write(frame); err != nil {
				s.fail(err, "io_error")
				return
			}
			metrics.FramesSentTotal.Inc()
			metrics.BytesSentTotal.Add(float64(len(frame)))
			if len(frame) > 0 {
				metrics.CompressionRatio.Observe(float64(len(payload)) / float64(len(frame)))
			}
		case <-s.doneCh:
			return
		}
	}
}

func (s *Session) readLoop() {
	for {
		msg, err := readFrame(s.conn, s.limit)
		if err != nil {
			if s.State() == StateEnded {
				return
			}
			cause := "io_error"
			if errors.Is(err, ErrMessageTooLarge) {
				cause = "resource_exhaustion"
			}
			s.fail(err, cause)
			return
		}
		metrics.FramesReceivedTotal.Inc()
		data := msg
		s.enqueue(func() {
			event.Dispatch(s.disp, MessageReceivedEvent{SessionID: s.id, Data: data})
		})
	}
}

func (s *Session) fail(err error, cause string) {
	s.logger.Error().Err(err).Str("cause", cause).Msg("session failed")
	metrics.RecordSessionError(cause)
	s.enqueue(func() {
		event.Dispatch(s.disp, ErrorEvent{SessionID: s.id, Cause: cause, Err: err})
	})
	s.Stop()
}
