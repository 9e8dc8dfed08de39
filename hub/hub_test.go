package hub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

// dial connects a client subscribed to rooms through a throwaway server.
func dial(t *testing.T, h *Hub, rooms ...string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(h, conn, rooms...).Serve()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestNotifierDeliversToInbox(t *testing.T) {
	h := startHub(t)
	conn := dial(t, h, InboxRoom("rafa@example.com"))
	require.Eventually(t, func() bool { return h.RoomSize(InboxRoom("rafa@example.com")) == 1 }, time.Second, 10*time.Millisecond)

	n := Notifier{Hub: h}
	require.NoError(t, n.NotifyUser(context.Background(), "Rafa@Example.com", "Accepted", "Welcome"))

	msg := readMessage(t, conn)
	assert.Equal(t, NotificationType, msg.Type)
	assert.Equal(t, "inbox:rafa@example.com", msg.Room)
	payload := msg.Payload.(map[string]any)
	assert.Equal(t, "Accepted", payload["subject"])
	assert.Equal(t, "Welcome", payload["body"])
}

func TestNotifierAdminsRoom(t *testing.T) {
	h := startHub(t)
	admin := dial(t, h, AdminRoom, InboxRoom("boss@club.org"))
	require.Eventually(t, func() bool { return h.RoomSize(AdminRoom) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, Notifier{Hub: h}.NotifyAdmins(context.Background(), "New request", "from rafa", nil))

	msg := readMessage(t, admin)
	assert.Equal(t, AdminRoom, msg.Room)
}

func TestBroadcastToEmptyRoomIsNoop(t *testing.T) {
	h := startHub(t)
	assert.NoError(t, h.BroadcastToRoom("nobody", Message{Type: "x"}))
}

func TestClientUnregistersOnDisconnect(t *testing.T) {
	h := startHub(t)
	conn := dial(t, h, "room")
	require.Eventually(t, func() bool { return h.RoomSize("room") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.RoomSize("room") == 0 }, 2*time.Second, 10*time.Millisecond)
}
