package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/probelab/deepscout/internal/research"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastsProgressEvents(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration races the dial handshake; wait for the hub to see us
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	event := research.Event{
		SessionID: "01TEST",
		Type:      research.EventPhase,
		Phase:     "searching",
		At:        time.Now(),
	}
	hub.Emit(event)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string         `json:"type"`
		Data research.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "progress", msg.Type)
	assert.Equal(t, "01TEST", msg.Data.SessionID)
	assert.Equal(t, "searching", msg.Data.Phase)
}

func TestHubEmitNeverBlocks(t *testing.T) {
	// No Run loop consuming the broadcast channel; Emit must still return
	// once the buffer fills.
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.Emit(research.Event{SessionID: "X", Type: research.EventPhase})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full broadcast buffer")
	}
}

func TestHubClientCount(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	assert.Equal(t, 0, hub.ClientCount())

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)
}
