package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, votingID uint) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, hub.Serve(w, r, votingID))
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	subscriberA := dialHub(t, hub, 1)
	subscriberB := dialHub(t, hub, 1)
	otherVoting := dialHub(t, hub, 2)

	// Registration runs through the hub loop; give it a moment.
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast(1, &Message{
		Type:     "results",
		VotingID: 1,
		Payload:  map[string]int{"total_votes": 3},
	})

	for _, conn := range []*websocket.Conn{subscriberA, subscriberB} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "results", msg.Type)
		assert.EqualValues(t, 1, msg.VotingID)
	}

	// The subscriber of another voting must not receive the frame.
	require.NoError(t, otherVoting.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := otherVoting.ReadMessage()
	assert.Error(t, err)
}

func TestHubUnregisterOnDisconnect(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn := dialHub(t, hub, 5)
	time.Sleep(50 * time.Millisecond)

	hub.mu.RLock()
	count := len(hub.clients[5])
	hub.mu.RUnlock()
	require.Equal(t, 1, count)

	conn.Close()
	time.Sleep(100 * time.Millisecond)

	hub.mu.RLock()
	_, ok := hub.clients[5]
	hub.mu.RUnlock()
	assert.False(t, ok)
}
