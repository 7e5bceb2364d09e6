package hub

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridwatch/gridwatch/errors"
	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1 << 20
)

// Connection is one Agent's WebSocket session: an ingest side (events
// read off the socket and handed to onEvent) and a command side (fire-
// and-forget JSON frames queued on sendMsg).
type Connection struct {
	conn    *websocket.Conn
	sendMsg chan interface{}
	done    chan struct{}
	onEvent func(*Connection, event.Event)

	mu        sync.RWMutex
	key       string // current registry key: "peer:<remoteAddr>" until rebound
	nodeID    string // "" until the first event naming one arrives
	closeOnce sync.Once
}

// NewConnection wraps conn, initially keyed by a synthetic peer id.
func NewConnection(conn *websocket.Conn, peerKey string, onEvent func(*Connection, event.Event)) *Connection {
	return &Connection{
		conn:    conn,
		sendMsg: make(chan interface{}, 64),
		done:    make(chan struct{}),
		onEvent: onEvent,
		key:     peerKey,
	}
}

// Key returns the connection's current registry key.
func (c *Connection) Key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key
}

// NodeID returns the bound node id, or "" if no event has named one yet.
func (c *Connection) NodeID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodeID
}

func (c *Connection) setKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
}

// Send queues msg for delivery, blocking while the connection's buffer is
// saturated — a stuck peer applies back-pressure to the caller rather than
// silently losing the frame. It returns early with an error if ctx is
// done or the connection closes first.
func (c *Connection) Send(ctx context.Context, msg interface{}) error {
	select {
	case c.sendMsg <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errors.Newf("connection closed")
	}
}

// Close closes the underlying socket, safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.conn.Close()
		if c.done != nil {
			close(c.done)
		}
	})
}

// ReadPump decodes inbound event frames until the connection drops,
// rebinding the connection's registry key to node_id on the first event
// that carries one.
func (c *Connection) ReadPump(registry *Registry) {
	defer func() {
		registry.Delete(c.Key())
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				logger.Infow("hub connection read error", logger.FieldError, err.Error())
			}
			return
		}

		ev, err := event.Parse(payload)
		if err != nil {
			logger.Warnw("hub dropped malformed event frame", logger.FieldError, err.Error())
			continue
		}

		if ev.NodeID != "" && ev.NodeID != c.NodeID() {
			oldKey := c.Key()
			c.setKey(ev.NodeID)
			registry.Rebind(oldKey, ev.NodeID, c)
			c.mu.Lock()
			c.nodeID = ev.NodeID
			c.mu.Unlock()
		}

		c.onEvent(c, ev)
	}
}

// WritePump delivers queued command frames and periodic pings until the
// connection drops or sendMsg is closed.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendMsg:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Warnw("hub failed to write command frame", logger.FieldError, err.Error())
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendCommand is a typed convenience wrapper used by the fix endpoint. It
// blocks for as long as ctx allows if the target connection's send buffer
// is saturated, per the Hub's back-pressure discipline.
func sendCommand(ctx context.Context, registry *Registry, nodeID string, cmd Command) error {
	conn, ok := registry.Get(nodeID)
	if !ok {
		return errors.Newf("no connection registered for node %q", nodeID)
	}
	return conn.Send(ctx, cmd)
}
