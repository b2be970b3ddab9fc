package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

// keepAliveInterval is how often an idle event stream sends a comment line
const keepAliveInterval = 15 * time.Second

// EventBroadcaster fans frame results out to connected SSE clients.
// It is a pipeline.RenderSink; slow listeners miss events instead of blocking the pipeline.
type EventBroadcaster struct {
	listeners map[chan pipeline.FrameResult]struct{}
	mu        sync.RWMutex
}

// NewEventBroadcaster creates a broadcaster without listeners.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{listeners: make(map[chan pipeline.FrameResult]struct{})}
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan pipeline.FrameResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan pipeline.FrameResult, constants.EventChannelBuffer)
	b.listeners[ch] = struct{}{}
	return ch
}

// RemoveListener removes an event listener and closes its channel.
func (b *EventBroadcaster) RemoveListener(ch chan pipeline.FrameResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[ch]; ok {
		delete(b.listeners, ch)
		close(ch)
	}
}

// Listeners returns the number of connected listeners.
func (b *EventBroadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Render sends the result to all listeners.
func (b *EventBroadcaster) Render(ctx context.Context, result pipeline.FrameResult) error {
	result.Image = nil
	b.mu.RLock()
	defer b.mu.RUnlock()
	for listener := range b.listeners {
		select {
		case listener <- result:
		default:
			// Listener buffer full, skip.
		}
	}
	return nil
}

// sendSSEEvent writes one server-sent event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

// EventsHandler streams frame results as server-sent events.
type EventsHandler struct {
	broadcaster *EventBroadcaster
}

// NewEventsHandler creates an events handler.
func NewEventsHandler(b *EventBroadcaster) *EventsHandler {
	return &EventsHandler{broadcaster: b}
}

// Stream handles GET /events. Every processed frame is sent as a "frame" event.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventCh := h.broadcaster.AddListener()
	defer h.broadcaster.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "ready", map[string]int{"listeners": h.broadcaster.Listeners()})

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			flusher.Flush()
		case result, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, "frame", result)
		}
	}
}

var _ pipeline.RenderSink = (*EventBroadcaster)(nil)
