package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/StoryEngine/internal/events"
)

func dialEvents(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var e events.Event
	require.NoError(t, json.Unmarshal(msg, &e))
	return e
}

func TestWebSocketReplaysRecentEvents(t *testing.T) {
	env := newTestEnv(t, Config{})
	for i := 0; i < 5; i++ {
		_, err := env.bus.Emit("info", "node.entered", "", map[string]any{"i": i})
		require.NoError(t, err)
	}

	conn := dialEvents(t, env, "")
	for i := 0; i < 5; i++ {
		e := readEvent(t, conn)
		assert.Equal(t, "node.entered", e.Name)
		assert.Equal(t, float64(i), e.Fields["i"])
	}
}

func TestWebSocketStreamsLiveEvents(t *testing.T) {
	env := newTestEnv(t, Config{})
	conn := dialEvents(t, env, "")

	require.Eventually(t, func() bool { return env.bus.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	_, err := env.bus.Emit("info", "story.started", "", map[string]any{"instance_id": "room-1"})
	require.NoError(t, err)

	e := readEvent(t, conn)
	assert.Equal(t, "story.started", e.Name)
	assert.Equal(t, "room-1", e.InstanceID())
}

func TestWebSocketFiltersByInstance(t *testing.T) {
	env := newTestEnv(t, Config{})
	_, err := env.bus.Emit("info", "story.started", "", map[string]any{"instance_id": "other"})
	require.NoError(t, err)
	_, err = env.bus.Emit("info", "story.started", "", map[string]any{"instance_id": "mine"})
	require.NoError(t, err)

	conn := dialEvents(t, env, "?instance_id=mine")
	e := readEvent(t, conn)
	assert.Equal(t, "mine", e.InstanceID())

	require.Eventually(t, func() bool { return env.bus.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	_, err = env.bus.Emit("info", "story.stopped", "", map[string]any{"instance_id": "other"})
	require.NoError(t, err)
	_, err = env.bus.Emit("info", "story.completed", "", map[string]any{"instance_id": "mine"})
	require.NoError(t, err)

	e = readEvent(t, conn)
	assert.Equal(t, "story.completed", e.Name)
}

func TestWebSocketUnsubscribesOnClose(t *testing.T) {
	env := newTestEnv(t, Config{})
	conn := dialEvents(t, env, "")
	require.Eventually(t, func() bool { return env.bus.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return env.bus.SubscriberCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
