package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/brainmap/realtime/internal/domain"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// acceptSubscribe completes the server side of the handshake.
func acceptSubscribe(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	var sub Frame
	require.NoError(t, conn.ReadJSON(&sub))
	require.Equal(t, FrameSubscribe, sub.Type)
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameSubscribed, Channel: sub.Channel}))
	return sub
}

func sendNotification(t *testing.T, conn *websocket.Conn, n domain.Notification) {
	t.Helper()
	payload, err := json.Marshal(n)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameNotification, Payload: payload}))
}

func TestConnectRequiresSession(t *testing.T) {
	c := NewConnector("ws://localhost:0/ws", SessionAuth{Token: "tok"}, nil, nil)
	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoSession)
	assert.False(t, c.Connected())

	c = NewConnector("ws://localhost:0/ws", SessionAuth{UserID: "u1"}, nil, nil)
	err = c.Connect(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoSession)
	assert.False(t, c.Connected())
}

func TestCloseIsIdempotent(t *testing.T) {
	c := NewConnector("ws://localhost:0/ws", SessionAuth{Token: "tok", UserID: "u1"}, nil, nil)
	c.Close()
	c.Close()
	assert.False(t, c.Connected())

	require.NoError(t, c.Connect(context.Background()))
	c.Close()
	c.Close()
	assert.False(t, c.Connected())
}

func TestConnectSubscribeAndReceive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		sub := acceptSubscribe(t, conn)
		assert.Equal(t, UserChannel("u1"), sub.Channel)

		sendNotification(t, conn, notif("n1", false, "2024-01-02T00:00:00Z"))

		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewConnector(wsURL(srv), SessionAuth{Token: "tok", UserID: "u1"}, nil, zaptest.NewLogger(t))
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	select {
	case n := <-c.Events():
		assert.Equal(t, "n1", n.ID)
		assert.False(t, n.IsRead)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for push event")
	}

	assert.True(t, c.Connected())
	assert.Equal(t, 0, c.ReconnectAttempts())
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		acceptSubscribe(t, conn)

		// garbage, then a frame with a broken payload, then a good one
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"notification","payload":42}`))
		sendNotification(t, conn, notif("good", false, "2024-01-02T00:00:00Z"))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewConnector(wsURL(srv), SessionAuth{Token: "tok", UserID: "u1"}, nil, zaptest.NewLogger(t))
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	select {
	case n := <-c.Events():
		assert.Equal(t, "good", n.ID, "malformed frames must be skipped, not break the stream")
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the well-formed event")
	}
}

func TestHandshakeRejectionIsObservable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewConnector(wsURL(srv), SessionAuth{Token: "bad", UserID: "u1"}, nil, zaptest.NewLogger(t))
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	select {
	case err := <-c.Errors():
		assert.ErrorIs(t, err, ErrHandshakeRejected)
	case <-time.After(3 * time.Second):
		t.Fatal("auth failure was not surfaced")
	}
	assert.False(t, c.Connected())
}

func TestReconnectResubscribes(t *testing.T) {
	var subscribes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		acceptSubscribe(t, conn)
		n := subscribes.Add(1)
		if n == 1 {
			// drop the first connection to force a reconnect
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewConnector(wsURL(srv), SessionAuth{Token: "tok", UserID: "u1"}, nil, zaptest.NewLogger(t))
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	// first reconnect is scheduled at 2s
	require.Eventually(t, func() bool {
		return subscribes.Load() >= 2 && c.Connected()
	}, 6*time.Second, 50*time.Millisecond, "connector must redial and resubscribe")
	assert.Equal(t, 0, c.ReconnectAttempts(), "attempts reset after a successful reconnect")
}

func TestConnectRestartsExistingLoop(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns.Add(1)
		defer conn.Close()
		acceptSubscribe(t, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewConnector(wsURL(srv), SessionAuth{Token: "tok", UserID: "u1"}, nil, zaptest.NewLogger(t))
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, c.Connected, 3*time.Second, 20*time.Millisecond)

	// second Connect tears the first loop down and dials again
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return conns.Load() == 2 && c.Connected()
	}, 3*time.Second, 20*time.Millisecond)

	c.Close()
	assert.False(t, c.Connected())
}
