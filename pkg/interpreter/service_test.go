package interpreter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/NotCoffee418/broute_smart_meter/pkg/broadcast"
	"github.com/NotCoffee418/broute_smart_meter/pkg/types"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerReceivesReadings(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hub := broadcast.NewHub(logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *types.PowerReading, 4)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		StartListener(ctx, WebSocketURL(strings.TrimPrefix(srv.URL, "http://"), false), logger, func(r *types.PowerReading) {
			received <- r
		})
	}()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.RecordPower(735)

	select {
	case r := <-received:
		assert.Equal(t, int32(735), r.Watt)
	case <-time.After(2 * time.Second):
		t.Fatal("no reading received")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestWebSocketURL(t *testing.T) {
	plain := WebSocketURL("localhost:9039", false)
	assert.Equal(t, "ws://localhost:9039/ws", plain.String())
	secure := WebSocketURL("meter.example:443", true)
	assert.Equal(t, "wss://meter.example:443/ws", secure.String())
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 4*time.Second, backoff(1))
	assert.Equal(t, 8*time.Second, backoff(2))
	assert.Equal(t, maxRetryDelay, backoff(5))
	assert.Equal(t, maxRetryDelay, backoff(40))
}
