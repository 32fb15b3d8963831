package realtime

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4 << 10
)

// Frame is the JSON envelope written for every WebSocket event.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// NewUpgrader builds a WebSocket upgrader accepting same-origin requests,
// loopback origins and the listed origins. A "*" entry accepts any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	wildcard := false
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			wildcard = true
			continue
		}
		if host := hostWithoutPort(origin); host != "" {
			allowed[host] = struct{}{}
		}
	}

	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || wildcard {
				return true
			}
			originHost := hostWithoutPort(origin)
			if originHost == hostWithoutPort(r.Host) || isLoopback(originHost) {
				return true
			}
			_, ok := allowed[originHost]
			return ok
		},
	}
}

// WebSocketTransport writes events as JSON frames and watches the read side
// for the peer closing the socket.
type WebSocketTransport struct {
	conn   *websocket.Conn
	closed chan struct{}
	once   sync.Once
}

// UpgradeWebSocket upgrades the request and starts the close-detection read loop.
func UpgradeWebSocket(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) (*WebSocketTransport, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	t := &WebSocketTransport{conn: conn, closed: make(chan struct{})}
	go t.readLoop()
	return t, nil
}

func (t *WebSocketTransport) readLoop() {
	defer t.markClosed()

	t.conn.SetReadLimit(maxMessageSize)
	for {
		// Client frames carry no meaning; reading only surfaces close and errors.
		if _, _, err := t.conn.NextReader(); err != nil {
			return
		}
	}
}

func (t *WebSocketTransport) markClosed() {
	t.once.Do(func() { close(t.closed) })
}

func (t *WebSocketTransport) Name() string { return "ws" }

// Send writes one JSON frame.
func (t *WebSocketTransport) Send(ev Event) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteJSON(Frame{Event: ev.Name, Data: ev.Data})
}

// Closed is closed once the read loop observes the peer going away.
func (t *WebSocketTransport) Closed() <-chan struct{} { return t.closed }

// Close sends a close frame and releases the socket.
func (t *WebSocketTransport) Close() error {
	deadline := time.Now().Add(writeWait)
	_ = t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return t.conn.Close()
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
