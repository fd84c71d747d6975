package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/teestudio/backend/internal/session"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages; session events use their own type names
	// ("design:changed", "image:loaded", ...).
	MsgTypeConnected = "connected"
	MsgTypePong      = "pong"
	MsgTypeError     = "error"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsMaxMessage   = 4 * 1024
)

// WSMessage is the envelope for every frame in both directions
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorResponse is the payload of an error message
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// EventsHandlerImpl streams session events over a WebSocket
type EventsHandlerImpl struct {
	sessions     SessionManager
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

// NewEventsHandler creates a new WebSocket events handler
func NewEventsHandler(sessions SessionManager) EventsHandler {
	return &EventsHandlerImpl{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Origins are enforced by the CORS middleware
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024, // exports travel as data URLs
		},
		pingInterval: wsPingInterval,
	}
}

// wsConn serialises writes; gorilla allows one concurrent writer.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) send(msg WSMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.ws.WriteJSON(msg)
}

// HandleEvents upgrades the connection and forwards the session's events
// until the client leaves or the session goes away. A client joining after
// the first export receives the latest design right away.
func (h *EventsHandlerImpl) HandleEvents(c echo.Context) error {
	id := c.Param("id")
	events, cancel, err := h.sessions.Subscribe(id)
	if err != nil {
		return NewNotFoundError("session", id)
	}
	defer cancel()

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	ws.SetReadLimit(wsMaxMessage)

	log := slog.With("session", shortID(id), "remote", c.RealIP())
	log.Debug("events client connected")
	defer log.Debug("events client disconnected")

	conn := &wsConn{ws: ws}
	if err := conn.send(WSMessage{Type: MsgTypeConnected, ID: id, Timestamp: time.Now().UnixMilli()}); err != nil {
		return nil
	}
	if e, err := h.sessions.Engine(id); err == nil {
		if last := e.LastExport(); last != "" {
			_ = conn.send(eventMessage(session.Event{
				Type:      session.EventDesignChanged,
				SessionID: id,
				DataURL:   last,
				Time:      time.Now().UnixMilli(),
			}))
		}
	}

	done := make(chan struct{})
	go h.readLoop(conn, log, done)

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
				_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
				return nil
			}
			if err := conn.send(eventMessage(ev)); err != nil {
				log.Debug("events write failed", "error", err)
				return nil
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}

// readLoop answers client pings and closes done when the client goes away.
func (h *EventsHandlerImpl) readLoop(conn *wsConn, log *slog.Logger, done chan<- struct{}) {
	defer close(done)
	for {
		var msg WSMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("events connection error", "error", err)
			}
			return
		}
		switch msg.Type {
		case MsgTypePing:
			_ = conn.send(WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		default:
			_ = conn.send(WSMessage{
				Type:      MsgTypeError,
				Timestamp: time.Now().UnixMilli(),
				Payload:   mustJSON(WSErrorResponse{Message: "Unknown message type: " + msg.Type, Code: "INVALID_TYPE"}),
			})
		}
	}
}

func eventMessage(ev session.Event) WSMessage {
	return WSMessage{
		Type:      ev.Type,
		ID:        ev.SessionID,
		Payload:   mustJSON(ev),
		Timestamp: ev.Time,
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
