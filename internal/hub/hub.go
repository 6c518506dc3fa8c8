// Package hub keeps the set of live websocket connections and fans
// events out to them.
package hub

import (
	"sync"

	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/zhulik/livepoll/internal/core"
)

type Hub struct {
	logger logrus.FieldLogger

	mu    sync.RWMutex
	conns map[string]*Connection
}

func NewHub(injector *do.Injector) (*Hub, error) {
	logger, err := do.Invoke[logrus.FieldLogger](injector)
	if err != nil {
		return nil, err
	}

	return &Hub{
		logger: logger.WithField("component", "hub.Hub"),
		conns:  map[string]*Connection{},
	}, nil
}

// Add registers a raw connection and returns its wrapper. The returned
// connection id is the handle students are bound to.
func (h *Hub) Add(conn Conn) *Connection {
	connection := NewConnection(conn)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[connection.ID()] = connection

	h.logger.WithField("connID", connection.ID()).Debug("Connection added")

	return connection
}

func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, connID)

	h.logger.WithField("connID", connID).Debug("Connection removed")
}

// Broadcast sends an event to every live connection. Individual write
// failures are logged and skipped: the owning read loop notices the
// dead connection and cleans it up.
func (h *Hub) Broadcast(event string, data any) {
	h.mu.RLock()
	conns := lo.Values(h.conns)
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteEvent(event, data); err != nil {
			h.logger.WithError(err).WithFields(logrus.Fields{
				"connID": conn.ID(),
				"event":  event,
			}).Warn("Broadcast write failed")
		}
	}
}

// Send delivers an event to a single connection.
func (h *Hub) Send(connID string, event string, data any) error {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()

	if !ok {
		return core.ErrConnectionNotFound
	}

	return conn.WriteEvent(event, data)
}

func (h *Hub) HealthCheck() error {
	h.logger.Debug("Hub health check.")

	return nil
}

// Shutdown closes every live connection.
func (h *Hub) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.conns {
		conn.Close() //nolint:errcheck
		delete(h.conns, id)
	}

	return nil
}
