package interpreter

import (
	"context"
	"net/url"
	"time"

	"github.com/NotCoffee418/broute_smart_meter/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	maxRetries     = 10
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 60 * time.Second

	// Readings arrive every poll interval, allow a few to go missing.
	readTimeout  = 5 * time.Minute
	pingInterval = 30 * time.Second
)

// WebSocketURL builds the interpreter_api live reading endpoint.
func WebSocketURL(host string, tlsEnabled bool) url.URL {
	scheme := "ws"
	if tlsEnabled {
		scheme = "wss"
	}
	return url.URL{Scheme: scheme, Host: host, Path: "/ws"}
}

// Manage websocket connection and call funcToCall for each reading.
// Returns when ctx is done or the server stayed unreachable for maxRetries attempts.
func StartListener(ctx context.Context, u url.URL, log logrus.FieldLogger, funcToCall func(reading *types.PowerReading)) {

	retryCount := 0

	for {
		if ctx.Err() != nil {
			log.Info("Shutdown requested, stopping listener")
			return
		}

		if retryCount > 0 {
			retryDelay := backoff(retryCount)
			log.Infof("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, maxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				log.Info("Shutdown requested during retry wait")
				return
			}
		}

		log.Infof("Connecting to %s", u.String())

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			log.WithError(err).Warn("Connection failed")
			retryCount++
			if retryCount >= maxRetries {
				log.Errorf("Max retries (%d) reached. Giving up.", maxRetries)
				return
			}
			continue
		}

		log.Info("Connected! Accepting meter readings.")

		// Reset retry count on successful connection
		retryCount = 0

		connectionBroken := handleConnection(ctx, c, log, funcToCall)
		c.Close()

		if !connectionBroken {
			return
		}

		log.Warn("Connection lost, will retry...")
		retryCount = 1
	}
}

// Exponential backoff capped at maxRetryDelay.
func backoff(retryCount int) time.Duration {
	if retryCount > 5 {
		return maxRetryDelay
	}
	delay := time.Duration(1<<retryCount) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func handleConnection(
	ctx context.Context,
	c *websocket.Conn,
	log logrus.FieldLogger,
	funcToCall func(reading *types.PowerReading),
) bool {
	done := make(chan struct{})

	// Set read deadline to detect dead connections
	c.SetReadDeadline(time.Now().Add(readTimeout))

	// Goroutine to read messages
	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.WithError(err).Warn("WebSocket error")
				} else {
					log.WithError(err).Info("Connection closed")
				}
				return
			}

			// Reset read deadline on successful message
			c.SetReadDeadline(time.Now().Add(readTimeout))

			if messageType != websocket.TextMessage {
				log.Debugf("Received unexpected message type: %d", messageType)
				continue
			}
			if reading := types.PowerReadingFromJsonBytes(message); reading != nil {
				funcToCall(reading)
			} else {
				log.Warnf("Failed to parse power reading: %s", string(message))
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			// Connection broke
			return true
		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				log.WithError(err).Warn("Failed to send ping")
			}
		case <-ctx.Done():
			log.Info("Shutdown requested, closing connection...")

			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.WithError(err).Warn("Error sending close message")
			}

			// Wait for close confirmation or timeout
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
