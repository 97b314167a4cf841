package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/merging/core"
	"github.com/creastat/merging/protocol"
	"github.com/gorilla/websocket"
)

// WebSocketSourceConfig holds WebSocket source configuration
type WebSocketSourceConfig struct {
	Conn *websocket.Conn
	Name string

	// SessionID filters incoming messages. Empty accepts every session.
	SessionID string

	Logger telemetry.Logger
}

// WebSocketSource is a source whose timeline is announced by a remote peer
// with a source.timeline message. Peer errors and connection failures are
// surfaced through PollError.
type WebSocketSource struct {
	config WebSocketSourceConfig

	mu       sync.Mutex
	prepared bool
	released bool
	reported bool
	timeline core.StaticTimeline
	err      error
	live     map[*WebSocketPeriod]struct{}
}

// WebSocketPeriod is a period of a peer-announced timeline
type WebSocketPeriod struct {
	id     core.PeriodID
	info   core.PeriodInfo
	source *WebSocketSource
}

// ID returns the period identity
func (p *WebSocketPeriod) ID() core.PeriodID {
	return p.id
}

// Info returns the announced period
func (p *WebSocketPeriod) Info() core.PeriodInfo {
	return p.info
}

// NewWebSocketSource creates a new WebSocket source
func NewWebSocketSource(config WebSocketSourceConfig) *WebSocketSource {
	return &WebSocketSource{
		config: config,
		live:   make(map[*WebSocketPeriod]struct{}),
	}
}

// Name returns the source name
func (ws *WebSocketSource) Name() string {
	return ws.config.Name
}

// Prepare starts reading peer messages. The listener fires on the first
// valid timeline announcement; later announcements are ignored. The read
// loop, and the connection with it, ends when ctx is done.
func (ws *WebSocketSource) Prepare(ctx context.Context, listener core.Listener) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.released {
		return ErrSourceReleased
	}
	if ws.prepared {
		return ErrSourcePrepared
	}
	ws.prepared = true

	go ws.readLoop(ctx, listener)
	return nil
}

// readLoop consumes peer messages until the connection closes
func (ws *WebSocketSource) readLoop(ctx context.Context, listener core.Listener) {
	logger := ws.config.Logger.WithModule("websocket_source")
	logger.Info("Starting WebSocket source", telemetry.String("name", ws.config.Name), telemetry.String("session_id", ws.config.SessionID))

	// Unblock ReadMessage when the caller gives up
	stop := context.AfterFunc(ctx, func() {
		ws.config.Conn.Close()
	})
	defer stop()

	for {
		_, data, err := ws.config.Conn.ReadMessage()
		if err != nil {
			ws.mu.Lock()
			released := ws.released
			ws.mu.Unlock()
			if released {
				logger.Debug("WebSocket source closed after release", telemetry.String("name", ws.config.Name))
				return
			}
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			logger.Error("Failed to read from peer", telemetry.Err(err), telemetry.String("name", ws.config.Name))
			ws.fail(fmt.Errorf("read from peer: %w", err))
			return
		}

		var msg protocol.InputMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("Skipping malformed message", telemetry.Err(err), telemetry.String("name", ws.config.Name))
			continue
		}

		if ws.config.SessionID != "" && msg.SessionID != ws.config.SessionID {
			logger.Debug("Skipping message for another session", telemetry.String("session_id", msg.SessionID))
			continue
		}

		switch msg.Type {
		case protocol.InputTimeline:
			ws.handleTimeline(msg, listener)

		case protocol.InputError:
			payload, err := protocol.ParseError(msg.Payload)
			if err != nil {
				ws.fail(err)
				continue
			}
			logger.Warn("Peer reported an error", telemetry.String("code", payload.Code), telemetry.String("message", payload.Message))
			ws.fail(&PeerError{Code: payload.Code, Message: payload.Message, Retryable: payload.Retryable})

		default:
			logger.Debug("Skipping unknown message type", telemetry.String("type", string(msg.Type)))
		}
	}
}

func (ws *WebSocketSource) handleTimeline(msg protocol.InputMessage, listener core.Listener) {
	logger := ws.config.Logger.WithModule("websocket_source")

	timeline, manifest, err := protocol.ParseTimeline(msg.Payload)
	if err != nil {
		logger.Error("Invalid timeline announcement", telemetry.Err(err), telemetry.String("name", ws.config.Name))
		ws.fail(err)
		return
	}

	ws.mu.Lock()
	if ws.reported || ws.released {
		ws.mu.Unlock()
		logger.Debug("Ignoring repeated timeline announcement", telemetry.String("name", ws.config.Name))
		return
	}
	ws.reported = true
	ws.timeline = timeline
	ws.mu.Unlock()

	logger.Info("Peer announced timeline", telemetry.String("name", ws.config.Name), telemetry.Int("period_count", timeline.PeriodCount()))
	listener.OnSourceInfo(ws, timeline, manifest)
}

// fail records err unless an earlier error is already pending
func (ws *WebSocketSource) fail(err error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.err == nil {
		ws.err = err
	}
}

// PollError returns the first peer or connection error
func (ws *WebSocketSource) PollError() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.err
}

// CreatePeriod creates a period of the announced timeline
func (ws *WebSocketSource) CreatePeriod(id core.PeriodID, allocator core.Allocator) (core.Period, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.released {
		return nil, ErrSourceReleased
	}
	if !ws.reported {
		return nil, ErrNotPrepared
	}
	if id.PeriodIndex < 0 || id.PeriodIndex >= ws.timeline.PeriodCount() {
		return nil, ErrPeriodOutOfRange
	}

	p := &WebSocketPeriod{id: id, info: ws.timeline.Periods[id.PeriodIndex], source: ws}
	ws.live[p] = struct{}{}
	return p, nil
}

// ReleasePeriod releases a period created by this source
func (ws *WebSocketSource) ReleasePeriod(period core.Period) error {
	p, ok := period.(*WebSocketPeriod)
	if !ok || p == nil || p.source != ws {
		return ErrUnknownPeriod
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if _, exists := ws.live[p]; !exists {
		return ErrUnknownPeriod
	}
	delete(ws.live, p)
	return nil
}

// ReleaseSource closes the connection. It may be called once.
func (ws *WebSocketSource) ReleaseSource() error {
	ws.mu.Lock()
	if ws.released {
		ws.mu.Unlock()
		return ErrSourceReleased
	}
	ws.released = true
	ws.mu.Unlock()

	return ws.config.Conn.Close()
}

// LivePeriods returns the number of created periods not yet released
func (ws *WebSocketSource) LivePeriods() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.live)
}
