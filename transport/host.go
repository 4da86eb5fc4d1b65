// Package transport carries opaque datagrams between the server and its
// clients over WebSocket. It exposes the host/peer/service-loop shape the
// game loops are written against: events are pulled with Service, never
// pushed into game code from another goroutine.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"

	"tetriq/logger"
)

var (
	ErrHostClosed = errors.New("transport: host closed")
	ErrPeerClosed = errors.New("transport: peer closed")
	ErrQueueFull  = errors.New("transport: send queue full")
	ErrHostFull   = errors.New("transport: too many peers")
)

// Mode selects delivery guarantees for Send.
type Mode int

const (
	// Reliable packets wait for queue room (bounded by Config.ReliableTimeout);
	// a peer that cannot drain in time is disconnected.
	Reliable Mode = iota
	// Unreliable packets are dropped when the queue is full.
	Unreliable
)

// EventType tells what an Event reports.
type EventType int

const (
	EventNone EventType = iota
	EventConnect
	EventDisconnect
	EventReceive
)

// String returns the event name used in logs.
func (t EventType) String() string {
	switch t {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventReceive:
		return "receive"
	default:
		return "none"
	}
}

// Conn is the game-facing side of a peer.
type Conn interface {
	Send(data []byte, mode Mode) error
	Close() error
	RemoteAddr() string
}

// Event is one thing that happened on the host since the last Service call.
type Event struct {
	Type EventType
	Peer Conn
	Data []byte
}

// Config carries the transport limits. Zero bandwidth means unlimited.
type Config struct {
	MaxPeers             int
	MaxIncomingBandwidth int // bytes per second, per peer
	MaxOutgoingBandwidth int // bytes per second, per peer
	HandshakeTimeout     time.Duration
	ReliableTimeout      time.Duration
	SendQueue            int
	MaxMessageSize       int64
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = time.Second
	}
	if c.ReliableTimeout <= 0 {
		c.ReliableTimeout = 100 * time.Millisecond
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 64
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 1 << 20 // 1MB
	}
	return c
}

// Host owns a set of peers and the queue of their events.
type Host struct {
	cfg      Config
	events   chan Event
	ctx      context.Context
	cancel   context.CancelFunc
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[*Peer]struct{}
}

// NewHost creates a host ready to accept peers through ServeHTTP.
func NewHost(cfg Config) (*Host, error) {
	if cfg.MaxPeers < 0 || cfg.MaxIncomingBandwidth < 0 || cfg.MaxOutgoingBandwidth < 0 {
		return nil, fmt.Errorf("transport: invalid host config %+v", cfg)
	}
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		cfg:    cfg,
		events: make(chan Event, 1024),
		ctx:    ctx,
		cancel: cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: cfg.HandshakeTimeout,
			// game clients are not browsers
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		peers: make(map[*Peer]struct{}),
	}, nil
}

// Connect dials a server and returns a client host with its single peer.
// Establishing the connection is bounded by cfg.HandshakeTimeout.
func Connect(ctx context.Context, url string, cfg Config) (*Host, *Peer, error) {
	h, err := NewHost(cfg)
	if err != nil {
		return nil, nil, err
	}
	dialer := websocket.Dialer{HandshakeTimeout: h.cfg.HandshakeTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, h.cfg.HandshakeTimeout)
	defer cancel()
	ws, _, err := dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		h.cancel()
		return nil, nil, fmt.Errorf("connect %s: %w", url, err)
	}
	p, err := h.attach(ws)
	if err != nil {
		h.cancel()
		_ = ws.Close()
		return nil, nil, err
	}
	return h, p, nil
}

// ServeHTTP upgrades the request and registers the new peer.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.full() {
		http.Error(w, ErrHostFull.Error(), http.StatusServiceUnavailable)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warnf("upgrade error: %v", err)
		return
	}
	if _, err := h.attach(ws); err != nil {
		logger.Log.Warnf("rejecting %s: %v", ws.RemoteAddr(), err)
		_ = ws.Close()
	}
}

func (h *Host) full() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg.MaxPeers > 0 && len(h.peers) >= h.cfg.MaxPeers
}

func (h *Host) attach(ws *websocket.Conn) (*Peer, error) {
	h.mu.Lock()
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		return nil, ErrHostClosed
	}
	if h.cfg.MaxPeers > 0 && len(h.peers) >= h.cfg.MaxPeers {
		h.mu.Unlock()
		return nil, ErrHostFull
	}
	p := newPeer(h, ws)
	h.peers[p] = struct{}{}
	h.mu.Unlock()

	if !h.push(Event{Type: EventConnect, Peer: p}) {
		_ = p.Close()
		return nil, ErrHostClosed
	}
	go p.writePump()
	go p.readPump()
	return p, nil
}

func (h *Host) detach(p *Peer) {
	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
}

// push queues an event for Service; it only fails once the host is closed.
func (h *Host) push(ev Event) bool {
	select {
	case h.events <- ev:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Service returns the next pending event, waiting at most timeout. A zero
// timeout never blocks.
func (h *Host) Service(timeout time.Duration) (Event, bool) {
	if timeout <= 0 {
		select {
		case ev := <-h.events:
			return ev, true
		default:
			return Event{}, false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-h.events:
		return ev, true
	case <-timer.C:
		return Event{}, false
	case <-h.ctx.Done():
		return Event{}, false
	}
}

// PeerCount reports the number of connected peers.
func (h *Host) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Close disconnects every peer and stops accepting new ones.
func (h *Host) Close() error {
	h.cancel()
	h.mu.Lock()
	peers := make([]*Peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	var err error
	for _, p := range peers {
		err = multierr.Append(err, p.Close())
	}
	return err
}
