package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tokenpulse/tokenpulse/internal/eventbus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Accepts every origin in every environment; CORS_ORIGINS applies to the
	// REST routes only and is not consulted for /ws.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wireMessage is the JSON envelope every published Event is serialized
// into: {type, timestamp, payload}, with the event's own fields under
// payload.
type wireMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// WebSocketHandler upgrades HTTP connections to the /ws duplex channel,
// grounded on the teacher's internal/api/websocket_handler.go, generalized
// from a single untyped broadcast to the typed eventbus.Bus.
type WebSocketHandler struct {
	bus             *eventbus.Bus
	initialSnapshot func() eventbus.Event
}

func NewWebSocketHandler(bus *eventbus.Bus, initialSnapshot func() eventbus.Event) *WebSocketHandler {
	return &WebSocketHandler{bus: bus, initialSnapshot: initialSnapshot}
}

func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe()
	defer sub.Unsubscribe()

	if h.initialSnapshot != nil {
		if err := writeEvent(conn, h.initialSnapshot()); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		h.drainInbound(conn)
		close(done)
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := writeEvent(conn, event); err != nil {
				return
			}
		}
	}
}

// drainInbound reads and logs any client-sent messages. spec.md §6
// reserves command semantics for future use; today the server only logs.
func (h *WebSocketHandler) drainInbound(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", slog.Any("err", err))
			}
			return
		}
		slog.Debug("websocket client message", slog.String("message", string(msg)))
	}
}

func writeEvent(conn *websocket.Conn, event eventbus.Event) error {
	msg := wireMessage{Type: event.Type(), Timestamp: time.Now(), Payload: event}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal event", slog.Any("err", err))
		return nil
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
