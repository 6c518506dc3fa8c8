package hub

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zhulik/livepoll/pkg/json"
)

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connection wraps a websocket connection with a server-assigned id and
// a write lock: gorilla connections allow one concurrent writer only.
type Connection struct {
	id   string
	conn Conn

	mu sync.Mutex
}

func NewConnection(conn Conn) *Connection {
	return &Connection{
		id:   uuid.NewString(),
		conn: conn,
	}
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: data})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to write WS message: %w", err)
	}

	return nil
}

func (c *Connection) Close() error {
	return c.conn.Close()
}
