package api

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgegrid/trader"
)

func wsTestServer(t *testing.T, pushEvery time.Duration) (*Server, string) {
	t.Helper()

	s := testServer(t)
	s.hub.interval = pushEvery
	s.hub.start()
	t.Cleanup(s.hub.stop)

	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	return s, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestWebsocketSnapshotThenBroadcast(t *testing.T) {
	_, url := wsTestServer(t, 20*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Immediate snapshot on connect, then the periodic push
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var status trader.Status
		require.NoError(t, conn.ReadJSON(&status), "message %d", i)
	}
}

func TestWebsocketConcurrentConnects(t *testing.T) {
	// Clients joining while the broadcaster is pushing: the initial
	// snapshot and the periodic writes must never hit one conn at once
	s, url := wsTestServer(t, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				t.Error(err)
				return
			}
			defer conn.Close()
			for j := 0; j < 3; j++ {
				conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				var status trader.Status
				if err := conn.ReadJSON(&status); err != nil {
					t.Errorf("read %d: %v", j, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	s.hub.mu.Lock()
	active := len(s.hub.clients)
	s.hub.mu.Unlock()
	assert.LessOrEqual(t, active, 8)
}
