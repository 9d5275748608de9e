package websocket

import (
	"context"
	"testing"
	"time"

	"polls-service/internal/services"
	"polls-service/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, pollID uint) *Client {
	return &Client{id: "test", pollID: pollID, hub: hub, send: make(chan []byte, sendBuffer)}
}

func TestPollIDFromChannel(t *testing.T) {
	id, err := pollIDFromChannel(services.ResultsChannel(42))
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	_, err = pollIDFromChannel("poll:abc:results")
	assert.Error(t, err)
}

func TestHubRelaysResultsToViewers(t *testing.T) {
	_, redisService := testutil.SetupTestRedis(t)
	hub := NewHub(redisService)
	go hub.Run()
	defer hub.Stop()

	viewer := newTestClient(hub, 1)
	bystander := newTestClient(hub, 2)
	hub.register <- viewer
	hub.register <- bystander

	require.Eventually(t, func() bool {
		return hub.ViewerCount(1) == 1 && hub.ViewerCount(2) == 1
	}, time.Second, 10*time.Millisecond)

	// the subscription is established asynchronously, so keep publishing
	// until the first frame arrives
	var frame []byte
	require.Eventually(t, func() bool {
		assert.NoError(t, redisService.PublishPollResults(context.Background(), 1, map[string]int{"total": 3}))
		select {
		case frame = <-viewer.send:
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 50*time.Millisecond)

	assert.JSONEq(t, `{"total":3}`, string(frame))
	assert.Empty(t, bystander.send)
}

func TestHubUnregisterClosesSend(t *testing.T) {
	_, redisService := testutil.SetupTestRedis(t)
	hub := NewHub(redisService)
	go hub.Run()
	defer hub.Stop()

	client := newTestClient(hub, 5)
	hub.register <- client
	hub.unregister <- client

	require.Eventually(t, func() bool { return hub.ViewerCount(5) == 0 }, time.Second, 10*time.Millisecond)
	_, open := <-client.send
	assert.False(t, open)

	// a second unregister is a no-op
	hub.unregister <- client
}

func TestHubDropsSlowViewers(t *testing.T) {
	_, redisService := testutil.SetupTestRedis(t)
	hub := NewHub(redisService)
	client := newTestClient(hub, 9)
	hub.registerClient(client)

	for i := 0; i < sendBuffer; i++ {
		hub.broadcastToPoll(pollFrame{pollID: 9, data: []byte("x")})
	}
	assert.Equal(t, 1, hub.ViewerCount(9))

	hub.broadcastToPoll(pollFrame{pollID: 9, data: []byte("overflow")})
	assert.Equal(t, 0, hub.ViewerCount(9))
}

func TestHubStopClosesViewers(t *testing.T) {
	_, redisService := testutil.SetupTestRedis(t)
	hub := NewHub(redisService)
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	client := newTestClient(hub, 3)
	hub.register <- client
	hub.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Equal(t, 0, hub.ViewerCount(3))
}
