package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu     sync.Mutex
	events []Event
	sent   chan Event
	closed chan struct{}
	failOn string
	closes int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sent:   make(chan Event, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Send(ev Event) error {
	if f.failOn != "" && ev.Name == f.failOn {
		return errors.New("write failed")
	}
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	f.sent <- ev
	return nil
}

func (f *fakeTransport) Closed() <-chan struct{} { return f.closed }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-f.sent:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func serveAsync(h *Hub, ctx context.Context, userID string, tr Transport) <-chan error {
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx, userID, tr) }()
	return done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestServeSendsHelloFirstAndUnregistersOnCancel(t *testing.T) {
	hub := NewHub(Options{HeartbeatInterval: time.Hour})
	tr := newFakeTransport()
	ctx, cancel := context.WithCancel(context.Background())

	done := serveAsync(hub, ctx, "user-1", tr)

	hello := tr.next(t)
	require.Equal(t, EventHello, hello.Name)
	require.Equal(t, map[string]bool{"ok": true}, hello.Data)
	waitFor(t, func() bool { return hub.ConnectionCount("user-1") == 1 })

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 0, hub.ConnectionCount("user-1"))
	require.Equal(t, 0, hub.UserCount())
	require.Equal(t, 1, tr.closes)
}

func TestPushFansOutToEveryConnectionOfUser(t *testing.T) {
	hub := NewHub(Options{HeartbeatInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	firstCtx, closeFirst := context.WithCancel(ctx)
	defer closeFirst()

	first, second, other := newFakeTransport(), newFakeTransport(), newFakeTransport()
	firstDone := serveAsync(hub, firstCtx, "user-1", first)
	serveAsync(hub, ctx, "user-1", second)
	serveAsync(hub, ctx, "user-2", other)

	for _, tr := range []*fakeTransport{first, second, other} {
		require.Equal(t, EventHello, tr.next(t).Name)
	}
	waitFor(t, func() bool { return hub.ConnectionCount("user-1") == 2 && hub.UserCount() == 2 })

	payload := map[string]string{"type": "notification"}
	hub.Push("user-1", payload)

	for _, tr := range []*fakeTransport{first, second} {
		ev := tr.next(t)
		require.Equal(t, EventNotif, ev.Name)
		require.Equal(t, payload, ev.Data)
	}

	select {
	case ev := <-other.sent:
		t.Fatalf("unexpected event for other user: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	closeFirst()
	require.NoError(t, <-firstDone)
	require.Equal(t, 1, hub.ConnectionCount("user-1"))

	hub.Push("user-1", "after-disconnect")
	ev := second.next(t)
	require.Equal(t, EventNotif, ev.Name)
	require.Equal(t, "after-disconnect", ev.Data)

	select {
	case ev := <-first.sent:
		t.Fatalf("closed connection received %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPushWithoutConnectionsIsNoop(t *testing.T) {
	hub := NewHub(Options{})
	require.NotPanics(t, func() { hub.Push("nobody", "x") })
	require.Equal(t, 0, hub.UserCount())
}

func TestPushDropsConnectionWithFullQueue(t *testing.T) {
	hub := NewHub(Options{SendBuffer: 1})

	slow := NewConn("user-1", 1)
	fast := NewConn("user-1", 8)
	hub.Register("user-1", slow)
	hub.Register("user-1", fast)

	hub.Push("user-1", 1)
	hub.Push("user-1", 2)

	select {
	case <-slow.Done():
	default:
		t.Fatal("expected slow connection to be dropped")
	}
	require.Equal(t, 1, hub.ConnectionCount("user-1"))

	require.Len(t, fast.Events(), 2)
	require.Equal(t, 1, (<-fast.Events()).Data)
	require.Equal(t, 2, (<-fast.Events()).Data)
}

func TestServeReturnsSlowConsumerWhenDropped(t *testing.T) {
	hub := NewHub(Options{HeartbeatInterval: time.Hour, SendBuffer: 1})
	tr := newFakeTransport()
	tr.sent = make(chan Event) // unbuffered: Send blocks until the test reads

	done := serveAsync(hub, context.Background(), "user-1", tr)
	waitFor(t, func() bool { return hub.ConnectionCount("user-1") == 1 })

	// The write loop is blocked delivering hello; fill the queue and overflow it.
	hub.Push("user-1", "a")
	hub.Push("user-1", "b")
	require.Equal(t, 0, hub.ConnectionCount("user-1"))

	require.Equal(t, EventHello, (<-tr.sent).Name)
	go func() {
		for range tr.sent {
		}
	}()

	select {
	case err := <-done:
		require.True(t, err == nil || errors.Is(err, ErrSlowConsumer))
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after drop")
	}
	require.Equal(t, 0, hub.UserCount())
}

func TestServeEndsWhenPeerCloses(t *testing.T) {
	hub := NewHub(Options{HeartbeatInterval: time.Hour})
	tr := newFakeTransport()

	done := serveAsync(hub, context.Background(), "user-1", tr)
	tr.next(t)

	close(tr.closed)
	require.NoError(t, <-done)
	require.Equal(t, 0, hub.UserCount())
}

func TestServeReturnsWriteError(t *testing.T) {
	hub := NewHub(Options{HeartbeatInterval: time.Hour})
	tr := newFakeTransport()
	tr.failOn = EventHello

	err := hub.Serve(context.Background(), "user-1", tr)
	require.Error(t, err)
	require.Equal(t, 0, hub.UserCount())
}

func TestServeEmitsHeartbeat(t *testing.T) {
	hub := NewHub(Options{HeartbeatInterval: 10 * time.Millisecond})
	tr := newFakeTransport()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveAsync(hub, ctx, "user-1", tr)
	require.Equal(t, EventHello, tr.next(t).Name)
	require.Equal(t, EventPing, tr.next(t).Name)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(Options{})
	conn := NewConn("user-1", 1)
	hub.Register("user-1", conn)

	hub.Unregister("user-1", conn)
	hub.Unregister("user-1", conn)

	require.Equal(t, 0, hub.UserCount())
	hub.Push("user-1", "late")
	require.Len(t, conn.Events(), 0)
}

func TestSSETransportFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	tr, err := NewSSETransport(rec)
	require.NoError(t, err)

	require.NoError(t, tr.Send(Event{Name: EventHello, Data: map[string]bool{"ok": true}}))
	require.NoError(t, tr.Send(Event{Name: EventPing, Data: struct{}{}}))

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "event:hello\ndata:{\"ok\":true}\n"), body)
	require.Contains(t, body, "event:ping\ndata:{}\n")
}

func TestWebSocketTransportDeliversFrames(t *testing.T) {
	hub := NewHub(Options{HeartbeatInterval: time.Hour})
	upgrader := NewUpgrader(nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr, err := UpgradeWebSocket(upgrader, w, r)
		if err != nil {
			return
		}
		_ = hub.Serve(r.Context(), "user-ws", tr)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	var frame Frame
	require.NoError(t, client.ReadJSON(&frame))
	require.Equal(t, EventHello, frame.Event)

	waitFor(t, func() bool { return hub.ConnectionCount("user-ws") == 1 })
	hub.Push("user-ws", map[string]string{"type": "notification"})

	require.NoError(t, client.ReadJSON(&frame))
	require.Equal(t, EventNotif, frame.Event)
	require.Equal(t, map[string]any{"type": "notification"}, frame.Data)

	require.NoError(t, client.Close())
	waitFor(t, func() bool { return hub.UserCount() == 0 })
}

func TestUpgraderOriginPolicy(t *testing.T) {
	upgrader := NewUpgrader([]string{"https://app.example.com"})

	check := func(origin, host string) bool {
		req := httptest.NewRequest(http.MethodGet, "http://"+host+"/ws", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		return upgrader.CheckOrigin(req)
	}

	require.True(t, check("", "api.example.com"))
	require.True(t, check("https://api.example.com", "api.example.com:4000"))
	require.True(t, check("http://localhost:5173", "api.example.com"))
	require.True(t, check("https://app.example.com", "api.example.com"))
	require.False(t, check("https://evil.example.net", "api.example.com"))

	require.True(t, NewUpgrader([]string{"*"}).CheckOrigin(func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "http://api.example.com/ws", nil)
		req.Header.Set("Origin", "https://evil.example.net")
		return req
	}()))
}
