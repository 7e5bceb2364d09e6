// Package hub implements the fan-in side of the two-tier fabric: one
// WebSocket port accepting Agent connections into a shared global state
// graph, and one HTTP port serving cluster-wide queries and remediation
// commands against it.
package hub

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/gridwatch/gridwatch/errors"
	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/graph"
	"github.com/gridwatch/gridwatch/logger"
)

// Hub owns the global graph, the connection registry, and the two HTTP
// servers (WebSocket ingress, query/command API).
type Hub struct {
	graph    *graph.Graph
	registry *Registry

	wsAddr   string
	httpAddr string

	observers []func(event.Event)
}

// New builds a Hub listening for Agent connections on wsAddr and serving
// its HTTP API on httpAddr.
func New(wsAddr, httpAddr string) *Hub {
	return &Hub{
		graph:    graph.New(),
		registry: NewRegistry(),
		wsAddr:   wsAddr,
		httpAddr: httpAddr,
	}
}

// Subscribe registers fn to be called with every event ingested into the
// global graph, namespaced node_id already applied — a secondary tap on
// the ingest stream for components that need to observe it without
// owning graph access, such as the fault-to-quarantine translator.
func (h *Hub) Subscribe(fn func(event.Event)) {
	h.observers = append(h.observers, fn)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades r to a WebSocket connection and runs its read/write
// pumps until the connection drops.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnw("hub websocket upgrade failed", logger.FieldError, err.Error())
		return
	}

	// Until its first event rebinds the key to its real node_id, the
	// connection is keyed by a synthetic id derived from its peer address
	// (ip:port).
	peerKey := "peer:" + r.RemoteAddr
	c := NewConnection(conn, peerKey, h.onEvent)
	h.registry.Store(peerKey, c)

	go c.WritePump()
	c.ReadPump(h.registry)
}

// onEvent rewrites an inbound event so node_id is always set (falling
// back to the connection's bound id) before ingesting it into the
// shared global graph; graph.Ingest applies the "<node_id>::" id
// namespacing itself once NodeID is populated.
func (h *Hub) onEvent(c *Connection, ev event.Event) {
	if ev.NodeID == "" {
		ev.NodeID = c.NodeID()
	}
	h.graph.Ingest(ev)
	for _, fn := range h.observers {
		fn(ev)
	}
}

// APIMux builds the HTTP handler serving the Hub's cluster-wide
// query/command API.
func (h *Hub) APIMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/ps", h.handlePS)
	mux.HandleFunc("/api/v1/why", h.handleWhy)
	mux.HandleFunc("/api/v1/fix", h.handleFix)
	return mux
}

// wsMux builds the HTTP handler serving Agent WebSocket ingress.
func (h *Hub) wsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	return mux
}

// ListenAndServe runs the WebSocket ingress and HTTP API on their
// respective addresses; it blocks until either listener fails.
func (h *Hub) ListenAndServe() error {
	errCh := make(chan error, 2)
	go func() { errCh <- http.ListenAndServe(h.wsAddr, h.wsMux()) }()
	go func() { errCh <- http.ListenAndServe(h.httpAddr, h.APIMux()) }()

	return errors.Wrap(<-errCh, "hub listener stopped")
}
