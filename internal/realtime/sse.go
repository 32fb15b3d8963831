package realtime

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sse"
)

// SSETransport frames events as text/event-stream.
type SSETransport struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSETransport writes the event-stream headers and flushes them so the
// client sees the stream open before the first event.
func NewSSETransport(w http.ResponseWriter) (*SSETransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("realtime: response writer does not support flushing")
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSETransport{w: w, flusher: flusher}, nil
}

func (t *SSETransport) Name() string { return "sse" }

// Send writes one event and flushes it.
func (t *SSETransport) Send(ev Event) error {
	if err := sse.Encode(t.w, sse.Event{Event: ev.Name, Data: ev.Data}); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}

// Closed returns nil; SSE disconnects surface through the request context.
func (t *SSETransport) Closed() <-chan struct{} { return nil }

func (t *SSETransport) Close() error { return nil }
