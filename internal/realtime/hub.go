package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/visicontrol/visicontrol/pkg/logger"
	"github.com/visicontrol/visicontrol/pkg/metrics"
)

// Event names written to live connections.
const (
	EventHello = "hello"
	EventPing  = "ping"
	EventNotif = "notif"
)

const (
	// DefaultHeartbeatInterval is the period between ping events on idle connections.
	DefaultHeartbeatInterval = 25 * time.Second
	defaultSendBuffer        = 32
)

// ErrSlowConsumer is returned by Serve when the connection was dropped because
// its send queue filled up.
var ErrSlowConsumer = errors.New("realtime: connection dropped after send queue overflow")

// Event is a named payload delivered to a live connection.
type Event struct {
	Name string
	Data any
}

// Transport writes events to one client. Implementations are not required to
// be safe for concurrent use; the hub writes from a single goroutine per
// connection.
type Transport interface {
	// Name labels the transport in metrics (sse, ws).
	Name() string
	Send(Event) error
	// Closed is closed when the peer goes away. May return nil when the
	// transport relies on request context cancellation instead.
	Closed() <-chan struct{}
	Close() error
}

// Options tunes heartbeat and buffering.
type Options struct {
	HeartbeatInterval time.Duration
	SendBuffer        int
}

// Hub tracks live connections per user and fans pushed events out to them.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*Conn]struct{}

	heartbeat time.Duration
	buffer    int
	log       *zap.Logger
}

// NewHub constructs an empty hub.
func NewHub(opts Options) *Hub {
	heartbeat := opts.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	buffer := opts.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}

	return &Hub{
		conns:     make(map[string]map[*Conn]struct{}),
		heartbeat: heartbeat,
		buffer:    buffer,
		log:       logger.WithModule("realtime"),
	}
}

// Conn is one registered live connection. Events are queued on a bounded
// channel and drained by the write loop in Serve.
type Conn struct {
	userID string
	send   chan Event
	done   chan struct{}
	once   sync.Once
}

// NewConn creates an unregistered connection handle with the given queue size.
func NewConn(userID string, buffer int) *Conn {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Conn{
		userID: userID,
		send:   make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// UserID returns the owner of the connection.
func (c *Conn) UserID() string {
	return c.userID
}

// Events exposes queued events.
func (c *Conn) Events() <-chan Event {
	return c.send
}

// Done is closed once the connection has been dropped.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// offer queues ev without blocking and reports whether it was accepted.
func (c *Conn) offer(ev Event) bool {
	if c.closed() {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Serve registers a connection for userID and writes queued events to t until
// ctx is canceled, the peer disconnects, a write fails, or the connection is
// dropped for backpressure. The hello event is always the first event written.
// The connection is unregistered on every exit path.
func (h *Hub) Serve(ctx context.Context, userID string, t Transport) error {
	conn := NewConn(userID, h.buffer)
	conn.offer(Event{Name: EventHello, Data: map[string]bool{"ok": true}})

	h.Register(userID, conn)
	gauge := metrics.LiveConnections.WithLabelValues(t.Name())
	gauge.Inc()
	defer func() {
		gauge.Dec()
		h.Unregister(userID, conn)
		_ = t.Close()
	}()

	return h.writeLoop(ctx, conn, t)
}

func (h *Hub) writeLoop(ctx context.Context, conn *Conn, t Transport) error {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.Closed():
			return nil
		case <-conn.done:
			return ErrSlowConsumer
		case ev := <-conn.send:
			if err := t.Send(ev); err != nil {
				h.log.Debug("live write failed", zap.String("user_id", conn.userID), zap.Error(err))
				return err
			}
		case <-ticker.C:
			if err := t.Send(Event{Name: EventPing, Data: struct{}{}}); err != nil {
				h.log.Debug("heartbeat write failed", zap.String("user_id", conn.userID), zap.Error(err))
				return err
			}
		}
	}
}

// Register adds conn to the user's set.
func (h *Hub) Register(userID string, conn *Conn) {
	if userID == "" || conn == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.conns[userID]
	if set == nil {
		set = make(map[*Conn]struct{})
		h.conns[userID] = set
	}
	set[conn] = struct{}{}
}

// Unregister removes conn and closes it. The user entry is deleted once its
// set is empty. Calling it more than once is harmless.
func (h *Hub) Unregister(userID string, conn *Conn) {
	if conn == nil {
		return
	}
	conn.close()

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[userID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.conns, userID)
	}
}

// Push queues payload as a notif event on every connection of userID without
// blocking. Connections whose queue is full are dropped; the others still
// receive the event. Users without connections are a no-op.
func (h *Hub) Push(userID string, payload any) {
	ev := Event{Name: EventNotif, Data: payload}

	var dropped []*Conn

	h.mu.RLock()
	for conn := range h.conns[userID] {
		if conn.offer(ev) {
			metrics.EventsDelivered.WithLabelValues(ev.Name).Inc()
			continue
		}
		dropped = append(dropped, conn)
	}
	h.mu.RUnlock()

	for _, conn := range dropped {
		metrics.EventsDropped.Inc()
		h.log.Warn("dropping slow live connection", zap.String("user_id", userID))
		h.Unregister(userID, conn)
	}
}

// ConnectionCount returns the number of live connections held for userID.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// UserCount returns the number of users with at least one live connection.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
