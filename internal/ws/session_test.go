package ws

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/sbp-ops/sbp-ops/internal/events"
)

func newTestServer(t *testing.T, hub *events.Hub, heartbeat, timeout time.Duration) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	h := NewHandler(logger, hub, heartbeat, timeout)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev events.Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func TestConnectedGreeting(t *testing.T) {
	hub := events.NewHub(16)
	srv := newTestServer(t, hub, 20*time.Millisecond, time.Second)
	conn := dial(t, srv, "")

	ev := readEvent(t, conn)
	require.Equal(t, "system", ev.Tipe)
	require.Equal(t, "connected", ev.Event)
}

func TestEventForwarding(t *testing.T) {
	hub := events.NewHub(16)
	srv := newTestServer(t, hub, 20*time.Millisecond, time.Second)
	conn := dial(t, srv, "")
	readEvent(t, conn) // greeting

	hub.Publish(events.Event{Tipe: "stok", Event: events.ActionCreated, Payload: map[string]any{"kode": "BRG-001"}})

	ev := readEvent(t, conn)
	require.Equal(t, "stok", ev.Tipe)
	require.Equal(t, events.ActionCreated, ev.Event)
}

func TestTopicFilterAtConsumerEdge(t *testing.T) {
	hub := events.NewHub(16)
	srv := newTestServer(t, hub, 20*time.Millisecond, time.Second)
	conn := dial(t, srv, "?tipe=kasbon")
	readEvent(t, conn) // greeting

	hub.Publish(events.Event{Tipe: "stok", Event: events.ActionUpdated})
	hub.Publish(events.Event{Tipe: "kasbon", Event: events.ActionUpdated})

	ev := readEvent(t, conn)
	require.Equal(t, "kasbon", ev.Tipe)
}

func TestClientPingAnsweredWithPong(t *testing.T) {
	hub := events.NewHub(16)
	srv := newTestServer(t, hub, 20*time.Millisecond, time.Second)
	conn := dial(t, srv, "")
	readEvent(t, conn) // greeting

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "pong", string(raw))
}

func TestUnresponsiveClientIsClosed(t *testing.T) {
	hub := events.NewHub(16)
	srv := newTestServer(t, hub, 10*time.Millisecond, 50*time.Millisecond)
	conn := dial(t, srv, "")
	// Swallow pings without replying so the server sees no liveness.
	conn.SetPingHandler(func(string) error { return nil })
	readEvent(t, conn) // greeting

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return // server force-closed the connection
		}
	}
}

func TestSubscriptionReleasedOnDisconnect(t *testing.T) {
	hub := events.NewHub(16)
	srv := newTestServer(t, hub, 10*time.Millisecond, time.Second)
	conn := dial(t, srv, "")
	readEvent(t, conn) // greeting
	require.Equal(t, 1, hub.SubscriberCount())

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 0
	}, 3*time.Second, 10*time.Millisecond)
}
