package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vital-route-api-server/internal/models"
)

// serve upgrades each request and registers it with the role from ?role=.
func serve(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := hub.Register(r.URL.Query().Get("user"), models.Role(r.URL.Query().Get("role")), conn)
		ctx, cancel := context.WithCancel(context.Background())
		go c.WritePump(ctx)
		go func() {
			<-c.Done()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		cancel()
		hub.Unregister(c)
		conn.Close()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user, role string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user + "&role=" + role
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestNotifyRole(t *testing.T) {
	hub := NewHub()
	srv := serve(t, hub)
	adminConn := dial(t, srv, "a1", string(models.RoleAdmin))
	driverConn := dial(t, srv, "d1", string(models.RoleFireDriver))

	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	hub.NotifyRole(models.RoleAdmin, "panic", map[string]string{"driverId": "d1"})
	env := read(t, adminConn)
	assert.Equal(t, "panic", env.Type)

	require.NoError(t, hub.Send("d1", "hello", "there"))
	env = read(t, driverConn)
	assert.Equal(t, "hello", env.Type)
	assert.Equal(t, "there", env.Data)
}

func TestUnregisterOnClose(t *testing.T) {
	hub := NewHub()
	srv := serve(t, hub)
	conn := dial(t, srv, "u1", string(models.RoleAdmin))
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, hub.Send("u1", "ignored", nil))
}

func TestEnqueueAfterStop(t *testing.T) {
	c := &Client{ID: "c", send: make(chan []byte, 1), done: make(chan struct{})}
	assert.True(t, c.Enqueue([]byte("1")))
	assert.False(t, c.Enqueue([]byte("2")), "buffer full")
	c.stop()
	c.stop()
	assert.False(t, c.Enqueue([]byte("3")))
}

func TestSendLatestKeepsNewestSnapshot(t *testing.T) {
	hub := NewHub()
	c := hub.Register("u1", models.RoleAdmin, nil)

	// no write pump: the peer is not reading
	for seq := 0; seq < 20; seq++ {
		require.NoError(t, c.SendLatest("snapshot", map[string]int{"seq": seq}))
	}
	require.Len(t, c.latest, 1)
	assert.Empty(t, c.send)

	var env struct {
		Type string `json:"type"`
		Data struct {
			Seq int `json:"seq"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(<-c.latest, &env))
	assert.Equal(t, "snapshot", env.Type)
	assert.Equal(t, 19, env.Data.Seq)
}

func TestSendLatestDeliveredByPump(t *testing.T) {
	hub := NewHub()
	srv := serve(t, hub)
	conn := dial(t, srv, "u1", string(models.RoleAmbulanceDriver))
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	hub.mu.RLock()
	var c *Client
	for _, cl := range hub.clients {
		c = cl
	}
	hub.mu.RUnlock()

	require.NoError(t, c.SendLatest("snapshot", "v1"))
	env := read(t, conn)
	assert.Equal(t, "snapshot", env.Type)
	assert.Equal(t, "v1", env.Data)
}

func TestCloseDisconnectsClients(t *testing.T) {
	hub := NewHub()
	srv := serve(t, hub)
	conn := dial(t, srv, "u1", string(models.RoleAdmin))
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "connection should be closed, not idle")
	}
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)

	late := hub.Register("u2", models.RoleAdmin, nil)
	select {
	case <-late.Done():
	default:
		t.Fatal("client registered after Close is still running")
	}
	assert.Equal(t, 0, hub.Count())
}
