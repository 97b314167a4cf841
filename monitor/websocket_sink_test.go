package monitor

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/merging/core"
	"github.com/creastat/merging/protocol"
	"github.com/gorilla/websocket"
)

// newCapturingServer returns a client connection whose server side forwards
// every text message it reads
func newCapturingServer(t *testing.T) (*websocket.Conn, <-chan map[string]any) {
	t.Helper()

	serverMessages := make(chan map[string]any, 10)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			mt, message, err := c.ReadMessage()
			if err != nil {
				break
			}
			if mt != websocket.TextMessage {
				continue
			}
			var msg map[string]any
			if err := json.Unmarshal(message, &msg); err == nil {
				serverMessages <- msg
			}
		}
	}))
	t.Cleanup(s.Close)

	u := "ws" + strings.TrimPrefix(s.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, serverMessages
}

func receive(t *testing.T, messages <-chan map[string]any) map[string]any {
	t.Helper()
	select {
	case msg := <-messages:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for message")
		return nil
	}
}

func TestWebSocketSink_MergeEvents(t *testing.T) {
	conn, messages := newCapturingServer(t)

	sink := NewWebSocketSink(WebSocketSinkConfig{
		Conn:      conn,
		SessionID: "test-session",
		Logger:    telemetry.New(telemetry.Config{Level: "error"}),
	})
	observe := sink.Observer()

	observe(core.SourceReadyEvent{Index: 1, Name: "audio", PeriodCount: 2, Pending: 1})
	observe(core.MergeReadyEvent{SourceCount: 2, PeriodCount: 2})

	msg := receive(t, messages)
	if msg["type"] != string(protocol.OutputSourceReady) {
		t.Errorf("Expected type %s, got %v", protocol.OutputSourceReady, msg["type"])
	}
	if msg["sessionId"] != "test-session" {
		t.Errorf("Expected sessionId test-session, got %v", msg["sessionId"])
	}
	payload, ok := msg["payload"].(map[string]any)
	if !ok {
		t.Fatalf("Payload is not a map: %T", msg["payload"])
	}
	if payload["name"] != "audio" || payload["pending"] != float64(1) {
		t.Errorf("Unexpected payload %v", payload)
	}

	msg = receive(t, messages)
	if msg["type"] != string(protocol.OutputMergeReady) {
		t.Errorf("Expected type %s, got %v", protocol.OutputMergeReady, msg["type"])
	}

	if sink.Sent() != 2 {
		t.Errorf("Expected 2 sent messages, got %d", sink.Sent())
	}
}

func TestWebSocketSink_MergeFailed(t *testing.T) {
	conn, messages := newCapturingServer(t)

	sink := NewWebSocketSink(WebSocketSinkConfig{
		Conn:      conn,
		SessionID: "test-session",
		Logger:    telemetry.New(telemetry.Config{Level: "error"}),
	})

	sink.Observe(core.MergeFailedEvent{
		Index:  1,
		Name:   "audio",
		Reason: "period count mismatch",
		Err:    errors.New("source 1 has 3 periods, expected 2"),
	})

	msg := receive(t, messages)
	if msg["type"] != string(protocol.OutputMergeFailed) {
		t.Errorf("Expected type %s, got %v", protocol.OutputMergeFailed, msg["type"])
	}
	payload := msg["payload"].(map[string]any)
	if payload["reason"] != "period count mismatch" {
		t.Errorf("Unexpected reason %v", payload["reason"])
	}
	if payload["message"] != "source 1 has 3 periods, expected 2" {
		t.Errorf("Unexpected message %v", payload["message"])
	}
}

func TestWebSocketSink_StatusAndError(t *testing.T) {
	conn, messages := newCapturingServer(t)

	sink := NewWebSocketSink(WebSocketSinkConfig{
		Conn:      conn,
		SessionID: "test-session",
		Logger:    telemetry.New(telemetry.Config{Level: "error"}),
	})

	sink.SendStatus(core.StateMerged, "all sources ready")
	sink.SendError("merge_incompatible", errors.New("period count mismatch"), false)

	msg := receive(t, messages)
	if msg["type"] != string(protocol.OutputStatus) {
		t.Errorf("Expected type %s, got %v", protocol.OutputStatus, msg["type"])
	}
	if status := msg["payload"].(map[string]any)["status"]; status != string(protocol.StatusMerged) {
		t.Errorf("Expected status %s, got %v", protocol.StatusMerged, status)
	}

	msg = receive(t, messages)
	if msg["type"] != string(protocol.OutputError) {
		t.Errorf("Expected type %s, got %v", protocol.OutputError, msg["type"])
	}
	payload := msg["payload"].(map[string]any)
	if payload["code"] != "merge_incompatible" || payload["retryable"] != false {
		t.Errorf("Unexpected error payload %v", payload)
	}
}

type unknownEvent struct{}

func (unknownEvent) EventType() core.EventType { return "unknown" }

func TestWebSocketSink_SkipsUnknownEvents(t *testing.T) {
	conn, _ := newCapturingServer(t)

	sink := NewWebSocketSink(WebSocketSinkConfig{
		Conn:   conn,
		Logger: telemetry.New(telemetry.Config{Level: "error"}),
	})

	sink.Observe(unknownEvent{})
	if sink.Sent() != 0 {
		t.Errorf("Expected no messages, got %d", sink.Sent())
	}
}

// TestWebSocketSink_StopsAfterWriteFailure tests that a broken connection
// silences the sink without panicking
func TestWebSocketSink_StopsAfterWriteFailure(t *testing.T) {
	conn, _ := newCapturingServer(t)

	sink := NewWebSocketSink(WebSocketSinkConfig{
		Conn:   conn,
		Logger: telemetry.New(telemetry.Config{Level: "error"}),
	})

	conn.Close()
	sink.Observe(core.ReleasedEvent{Previous: core.StatePreparing})
	sink.Observe(core.ReleasedEvent{Previous: core.StatePreparing})

	if sink.Sent() != 0 {
		t.Errorf("Expected no messages after close, got %d", sink.Sent())
	}
	if !sink.broken {
		t.Error("Sink should be marked broken")
	}
}
