package websocket

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

	"github.com/Sanidhya49/Invested/types"
)

type tokenVerifier map[string]string

func (v tokenVerifier) Verify(_ context.Context, token string) (string, error) {
	if uid, ok := v[token]; ok {
		return uid, nil
	}
	return "", errors.New("bad token")
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(Handler(hub, tokenVerifier{"t-alice": "alice", "t-bob": "bob"}, nil))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) types.WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg types.WebSocketMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHandlerRejectsBadToken(t *testing.T) {
	_, srv := startHub(t)
	resp, err := http.Get(srv.URL + "/ws?token=nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNotifyRoutesByUser(t *testing.T) {
	hub, srv := startHub(t)
	alice := dial(t, srv, "t-alice")
	bob := dial(t, srv, "t-bob")

	assert.Equal(t, types.WSTypeConnection, readMessage(t, alice).Type)
	assert.Equal(t, types.WSTypeConnection, readMessage(t, bob).Type)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Notify("alice", types.NotificationPayload{
		NotificationType: "guardian_alert",
		Title:            "Heads up",
		Body:             "Unusual spend",
	}))
	msg := readMessage(t, alice)
	assert.Equal(t, types.WSTypeNotification, msg.Type)
	payload := msg.Payload.(map[string]any)
	assert.Equal(t, "Heads up", payload["title"])

	require.NoError(t, hub.Broadcast([]byte(`{"type":"status","payload":"maintenance"}`)))
	assert.Equal(t, types.WSTypeStatus, readMessage(t, bob).Type)
}

func TestSubscriberReceivesNotifications(t *testing.T) {
	hub, srv := startHub(t)
	sub, err := NewSubscriber("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", "t-alice")
	require.NoError(t, err)

	connected := make(chan struct{}, 1)
	sub.OnConnect = func() { connected <- struct{}{} }
	got := make(chan types.WebSocketMessage, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx, func(m types.WebSocketMessage) { got <- m }) }()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not connect")
	}
	require.Equal(t, types.WSTypeConnection, (<-got).Type)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Notify("alice", types.NotificationPayload{Title: "x"}))

	select {
	case m := <-got:
		assert.Equal(t, types.WSTypeNotification, m.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSubscriberGivesUp(t *testing.T) {
	sub, err := NewSubscriber("ws://127.0.0.1:1/ws", "")
	require.NoError(t, err)
	sub.MaxAttempts = 1
	err = sub.Run(context.Background(), func(types.WebSocketMessage) {})
	assert.ErrorIs(t, err, ErrNotConnected)
}
