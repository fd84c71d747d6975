package session

import (
	"log/slog"
	"sync"
	"time"
)

// Event types pushed to session subscribers.
const (
	EventReady         = "canvas:ready"
	EventDesignChanged = "design:changed"
	EventImageLoaded   = "image:loaded"
	EventImageError    = "image:error"
)

// subscriberBuffer is how many events a slow subscriber may lag behind
// before further events are dropped for it.
const subscriberBuffer = 16

// Event is a canvas notification for one session.
type Event struct {
	Type      string `json:"type" msgpack:"type"`
	SessionID string `json:"sessionId" msgpack:"sessionId"`
	DataURL   string `json:"dataUrl,omitempty" msgpack:"dataUrl,omitempty"`
	Reason    string `json:"reason,omitempty" msgpack:"reason,omitempty"`
	Time      int64  `json:"time" msgpack:"time"` // Unix ms
}

// hub fans events out to the subscribers of one session. The ready event is
// kept and replayed first to every later subscriber, since it fires while the
// session is being created.
type hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	ready  *Event
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	if h.ready != nil {
		ch <- *h.ready
	}
	id := h.next
	h.next++
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

// publish never blocks: a subscriber with a full buffer misses the event.
func (h *hub) publish(ev Event) {
	ev.Time = time.Now().UnixMilli()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if ev.Type == EventReady {
		h.ready = &ev
	}
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("dropping session event for slow subscriber", "session", shortID(ev.SessionID), "type", ev.Type)
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// shortID truncates an ID for logging.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
