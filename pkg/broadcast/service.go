// Package broadcast pushes live readings to websocket clients.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/NotCoffee418/broute_smart_meter/pkg/esmutils"
	"github.com/NotCoffee418/broute_smart_meter/pkg/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Readings are public on the local network
	},
}

// Longest a single client may hold up a broadcast.
const DefaultWriteWait = 5 * time.Second

type Hub struct {
	log       logrus.FieldLogger
	now       func() time.Time
	writeWait time.Duration

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]string

	latestMu sync.RWMutex
	latest   *types.PowerReading
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		log:       log,
		now:       time.Now,
		writeWait: DefaultWriteWait,
		clients:   make(map[*websocket.Conn]string),
	}
}

// RecordPower stores the reading and pushes it to every connected client.
func (h *Hub) RecordPower(watt int32) {
	reading := esmutils.NewPowerReading(watt, h.now())

	h.latestMu.Lock()
	h.latest = reading
	h.latestMu.Unlock()

	h.Broadcast(reading)
}

func (h *Hub) Latest() *types.PowerReading {
	h.latestMu.RLock()
	defer h.latestMu.RUnlock()
	return h.latest
}

func (h *Hub) Broadcast(reading *types.PowerReading) {
	h.clientsMu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clientsMu.RUnlock()

	msg := reading.ToJsonBytes()
	for _, client := range clients {
		if err := h.write(client, msg); err != nil {
			h.log.WithError(err).Debug("websocket write failed")
			h.remove(client)
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, msg []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(conn *websocket.Conn) string {
	id := uuid.NewString()
	h.clientsMu.Lock()
	h.clients[conn] = id
	h.clientsMu.Unlock()
	h.log.WithField("client", id).Info("websocket client connected")
	return id
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.clientsMu.Lock()
	id, ok := h.clients[conn]
	delete(h.clients, conn)
	h.clientsMu.Unlock()
	conn.Close()
	if ok {
		h.log.WithField("client", id).Info("websocket client disconnected")
	}
}

// ServeWS upgrades the request and keeps the client until it goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade error")
		return
	}

	// Send current reading immediately if available
	if reading := h.Latest(); reading != nil {
		if err := h.write(conn, reading.ToJsonBytes()); err != nil {
			conn.Close()
			return
		}
	}
	h.add(conn)

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(conn)
			return
		}
	}
}

// ServeLatest answers with the last reading or 404 before the first one.
func (h *Hub) ServeLatest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	reading := h.Latest()
	if reading == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "No readings available yet",
		})
		return
	}
	json.NewEncoder(w).Encode(reading)
}
