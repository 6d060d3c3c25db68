package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/binder/internal/bridge"
	"github.com/desertthunder/binder/internal/repositories"
	"github.com/desertthunder/binder/internal/shared"
	"github.com/gorilla/websocket"
)

const peerBuffer = 64

// Documents stores the JSON documents the hub mirrors.
type Documents interface {
	Get(path string) (*repositories.Document, error)
	Put(path string, data json.RawMessage) (int, error)
}

// Hub is the websocket endpoint of the mirror.
//
// A peer subscribes to a path and immediately receives its current value. Every set on a path is stored and
// then broadcast to every subscriber of that path, the writer included, in the order the sets were stored.
type Hub struct {
	docs     Documents
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	subs  map[string]map[*peer]struct{}
	peers map[*peer]struct{}
}

type peer struct {
	id   string
	conn *websocket.Conn
	send chan bridge.Frame
	once sync.Once
	gone chan struct{}
}

// NewHub creates a Hub backed by docs.
func NewHub(docs Documents, logger *log.Logger) *Hub {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Hub{
		docs:   docs,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subs:  map[string]map[*peer]struct{}{},
		peers: map[*peer]struct{}{},
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *Hub) Routes() []string {
	return []string{"/ws"}
}

// Peers returns the number of connected peers.
func (h *Hub) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// CloseAll disconnects every peer.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		p.close()
	}
}

// ServeHTTP upgrades the request and serves frames until the peer leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	p := &peer{
		id:   shared.GenerateID(),
		conn: conn,
		send: make(chan bridge.Frame, peerBuffer),
		gone: make(chan struct{}),
	}

	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("peer connected", "peer", p.id, "remote", r.RemoteAddr)

	go h.writeLoop(p)
	h.readLoop(p)
}

func (h *Hub) readLoop(p *peer) {
	defer h.drop(p)

	for {
		var f bridge.Frame
		if err := p.conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("peer read ended", "peer", p.id, "error", err)
			}
			return
		}

		switch f.Op {
		case bridge.OpSubscribe:
			h.subscribe(p, f.Path)
		case bridge.OpUnsubscribe:
			h.unsubscribe(p, f.Path)
		case bridge.OpSet:
			h.set(p, f.Path, f.Data)
		default:
			p.enqueue(bridge.Frame{Op: bridge.OpError, Path: f.Path, Message: "unknown op " + f.Op})
		}
	}
}

func (h *Hub) writeLoop(p *peer) {
	for {
		select {
		case f := <-p.send:
			if err := p.conn.WriteJSON(f); err != nil {
				p.close()
				return
			}
		case <-p.gone:
			return
		}
	}
}

func (h *Hub) subscribe(p *peer, path string) {
	if path == "" {
		p.enqueue(bridge.Frame{Op: bridge.OpError, Message: "path is required"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := h.current(path)
	if err != nil {
		h.logger.Error("failed to read document", "path", path, "error", err)
		p.enqueue(bridge.Frame{Op: bridge.OpError, Path: path, Message: "failed to read document"})
		return
	}

	if h.subs[path] == nil {
		h.subs[path] = map[*peer]struct{}{}
	}
	h.subs[path][p] = struct{}{}
	p.enqueue(bridge.Frame{Op: bridge.OpSnapshot, Path: path, Data: data})
	h.logger.Debug("peer subscribed", "peer", p.id, "path", path)
}

func (h *Hub) unsubscribe(p *peer, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[path], p)
	if len(h.subs[path]) == 0 {
		delete(h.subs, path)
	}
}

func (h *Hub) set(p *peer, path string, data json.RawMessage) {
	if path == "" {
		p.enqueue(bridge.Frame{Op: bridge.OpError, Message: "path is required"})
		return
	}
	if len(data) == 0 {
		data = json.RawMessage("null")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rev, err := h.docs.Put(path, data)
	if err != nil {
		h.logger.Warn("rejected set", "peer", p.id, "path", path, "error", err)
		p.enqueue(bridge.Frame{Op: bridge.OpError, Path: path, Message: err.Error()})
		return
	}
	h.logger.Debug("document stored", "path", path, "revision", rev, "subscribers", len(h.subs[path]))

	for sub := range h.subs[path] {
		sub.enqueue(bridge.Frame{Op: bridge.OpSnapshot, Path: path, Data: data})
	}
}

// current returns the stored value for path, or null when nothing is stored.
func (h *Hub) current(path string) (json.RawMessage, error) {
	doc, err := h.docs.Get(path)
	if errors.Is(err, repositories.ErrNotFound) {
		return json.RawMessage("null"), nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

func (h *Hub) drop(p *peer) {
	h.mu.Lock()
	delete(h.peers, p)
	for path, set := range h.subs {
		delete(set, p)
		if len(set) == 0 {
			delete(h.subs, path)
		}
	}
	h.mu.Unlock()

	p.close()
	h.logger.Debug("peer disconnected", "peer", p.id)
}

// enqueue queues f for the peer. A peer that cannot keep up is disconnected.
func (p *peer) enqueue(f bridge.Frame) {
	select {
	case <-p.gone:
	case p.send <- f:
	default:
		p.close()
	}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.gone)
		p.conn.Close()
	})
}
