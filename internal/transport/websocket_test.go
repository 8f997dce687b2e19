// SPDX-License-Identifier: MIT
package transport

import (
	"testing"
	"time"

	"heliecho/internal/analysis"
	"heliecho/internal/color"

	"github.com/gorilla/websocket"
)

func startWebSocket(t *testing.T, interval time.Duration) (*WebSocketTransport, *websocket.Conn) {
	t.Helper()
	wst := NewWebSocketTransport("127.0.0.1:0", interval)
	if err := wst.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	t.Cleanup(func() { wst.Close() })

	url := "ws://" + wst.Addr().String() + WebSocketPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for wst.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return wst, conn
}

func TestWebSocketBroadcastsSnapshots(t *testing.T) {
	wst, conn := startWebSocket(t, 0)

	sent := analysis.Snapshot{Sequence: 3, Brightness: 0.5, Color: color.RGB{R: 1, G: 2, B: 3}}
	if err := wst.Send(sent); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got analysis.Snapshot
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON error: %v", err)
	}
	if got != sent {
		t.Errorf("received %+v, want %+v", got, sent)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	wst, conn := startWebSocket(t, time.Hour)

	wst.Send(analysis.Snapshot{Sequence: 1})
	wst.Send(analysis.Snapshot{Sequence: 2}) // Inside the interval: dropped.

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got analysis.Snapshot
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON error: %v", err)
	}
	if got.Sequence != 1 {
		t.Fatalf("first message sequence = %d, want 1", got.Sequence)
	}

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err := conn.ReadJSON(&got); err == nil {
		t.Errorf("rate-limited message was delivered: %+v", got)
	}
}

func TestWebSocketClose(t *testing.T) {
	wst, _ := startWebSocket(t, 0)

	if err := wst.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
	if err := wst.Send(analysis.Snapshot{}); err == nil {
		t.Error("Send after Close should fail")
	}
	if wst.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after Close", wst.ClientCount())
	}
}

func TestWebSocketStartBindError(t *testing.T) {
	first := NewWebSocketTransport("127.0.0.1:0", 0)
	if err := first.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer first.Close()

	second := NewWebSocketTransport(first.Addr().String(), 0)
	if err := second.Start(); err == nil {
		second.Close()
		t.Error("expected bind error on a used address")
	}
}
