package monitor

import (
	"encoding/json"
	"sync"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/merging/core"
	"github.com/creastat/merging/protocol"
	"github.com/gorilla/websocket"
)

// WebSocketSinkConfig holds WebSocket sink configuration
type WebSocketSinkConfig struct {
	Conn      *websocket.Conn
	SessionID string
	Logger    telemetry.Logger
}

// WebSocketSink streams merging source lifecycle events to a WebSocket
// client. Write failures are logged and stop further writes; they never
// reach the merging source.
type WebSocketSink struct {
	config WebSocketSinkConfig

	// mu serializes writes; the connection allows one concurrent writer
	mu     sync.Mutex
	broken bool
	sent   int
}

// NewWebSocketSink creates a new WebSocket sink
func NewWebSocketSink(config WebSocketSinkConfig) *WebSocketSink {
	return &WebSocketSink{
		config: config,
	}
}

// Observer returns the sink as a core.Observer
func (ws *WebSocketSink) Observer() core.Observer {
	return ws.Observe
}

// Observe converts event to a protocol message and sends it
func (ws *WebSocketSink) Observe(event core.Event) {
	logger := ws.config.Logger.WithModule("websocket_sink")

	msg := protocol.EventToMessage(event, ws.config.SessionID)
	if msg == nil {
		logger.Debug("Skipping unknown event type", telemetry.String("session_id", ws.config.SessionID))
		return
	}

	ws.send(msg)
}

// SendStatus sends a status message for state
func (ws *WebSocketSink) SendStatus(state core.State, message string) {
	ws.send(protocol.NewStatusMessage(ws.config.SessionID, protocol.MapState(state), message))
}

// SendError sends an error message, typically one returned by PollError
func (ws *WebSocketSink) SendError(code string, err error, retryable bool) {
	ws.send(protocol.NewErrorMessage(ws.config.SessionID, "", code, err.Error(), retryable, nil))
}

// Sent returns the number of messages written
func (ws *WebSocketSink) Sent() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.sent
}

func (ws *WebSocketSink) send(msg *protocol.OutputMessage) {
	logger := ws.config.Logger.WithModule("websocket_sink")

	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to marshal message", telemetry.Err(err), telemetry.String("session_id", ws.config.SessionID), telemetry.String("type", string(msg.Type)))
		return
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.broken {
		return
	}

	if err := ws.config.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// Connection closed or failed; drop everything after this
		ws.broken = true
		logger.Error("Failed to send message to WebSocket", telemetry.Err(err), telemetry.String("session_id", ws.config.SessionID), telemetry.String("type", string(msg.Type)))
		return
	}
	ws.sent++

	logger.Debug("Sent event to WebSocket", telemetry.String("type", string(msg.Type)), telemetry.String("session_id", ws.config.SessionID))
}
