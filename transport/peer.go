package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"tetriq/logger"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Peer is one WebSocket connection. Writes go through a bounded queue
// drained by writePump; reads are pushed to the host as events by readPump.
type Peer struct {
	host *Host
	ws   *websocket.Conn
	addr string

	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	in  *rate.Limiter
	out *rate.Limiter

	closeOnce sync.Once
	closeErr  error
}

func newPeer(h *Host, ws *websocket.Conn) *Peer {
	ctx, cancel := context.WithCancel(h.ctx)
	return &Peer{
		host:   h,
		ws:     ws,
		addr:   ws.RemoteAddr().String(),
		send:   make(chan []byte, h.cfg.SendQueue),
		ctx:    ctx,
		cancel: cancel,
		in:     newLimiter(h.cfg.MaxIncomingBandwidth),
		out:    newLimiter(h.cfg.MaxOutgoingBandwidth),
	}
}

func newLimiter(bytesPerSecond int) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond)
}

// throttle waits until n bytes fit the limiter, in burst-sized chunks so a
// message larger than one second of bandwidth still goes through.
func throttle(ctx context.Context, lim *rate.Limiter, n int) error {
	if lim == nil {
		return nil
	}
	for n > 0 {
		k := n
		if b := lim.Burst(); k > b {
			k = b
		}
		if err := lim.WaitN(ctx, k); err != nil {
			return err
		}
		n -= k
	}
	return nil
}

// RemoteAddr is the peer's network address.
func (p *Peer) RemoteAddr() string { return p.addr }

// Send queues data for delivery. Unreliable data is dropped with ErrQueueFull
// when the queue is full. Reliable data waits up to the host's
// ReliableTimeout; past that the peer is considered stuck and is closed.
func (p *Peer) Send(data []byte, mode Mode) error {
	if p.ctx.Err() != nil {
		return ErrPeerClosed
	}
	if mode == Unreliable {
		select {
		case p.send <- data:
			return nil
		default:
			return ErrQueueFull
		}
	}

	select {
	case p.send <- data:
		return nil
	default:
	}
	timer := time.NewTimer(p.host.cfg.ReliableTimeout)
	defer timer.Stop()
	select {
	case p.send <- data:
		return nil
	case <-p.ctx.Done():
		return ErrPeerClosed
	case <-timer.C:
		logger.Log.Warnf("peer %s: reliable queue stuck, disconnecting", p.addr)
		_ = p.Close()
		return ErrQueueFull
	}
}

// Close tears the connection down. The host sees a disconnect event once the
// read side notices.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		p.closeErr = p.ws.Close()
		p.host.detach(p)
	})
	return p.closeErr
}

func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.Close()
	}()

	for {
		select {
		case msg := <-p.send:
			if err := throttle(p.ctx, p.out, len(msg)); err != nil {
				return
			}
			_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				logger.Log.Debugf("peer %s: write error: %v", p.addr, err)
				return
			}
		case <-ticker.C:
			_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Peer) readPump() {
	defer func() {
		_ = p.Close()
		p.host.push(Event{Type: EventDisconnect, Peer: p})
	}()

	p.ws.SetReadLimit(p.host.cfg.MaxMessageSize)
	_ = p.ws.SetReadDeadline(time.Now().Add(pongWait))
	p.ws.SetPongHandler(func(string) error {
		return p.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := p.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debugf("peer %s: read error: %v", p.addr, err)
			}
			return
		}
		_ = p.ws.SetReadDeadline(time.Now().Add(pongWait))
		if kind != websocket.BinaryMessage {
			continue
		}
		if err := throttle(p.ctx, p.in, len(data)); err != nil {
			return
		}
		if !p.host.push(Event{Type: EventReceive, Peer: p, Data: data}) {
			return
		}
	}
}
