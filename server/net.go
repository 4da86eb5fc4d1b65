package server

import (
	"tetriq/logger"
	"tetriq/protocol"
	"tetriq/transport"
)

// pollTransport drains every pending transport event without blocking.
func (s *Server) pollTransport() {
	for {
		ev, ok := s.host.Service(0)
		if !ok {
			return
		}
		switch ev.Type {
		case transport.EventConnect:
			s.handleConnect(ev.Peer)
		case transport.EventDisconnect:
			s.handleDisconnect(ev.Peer)
		case transport.EventReceive:
			s.handleReceive(ev.Peer, ev.Data)
		}
	}
}

// handleConnect registers a player under a fresh id and puts it in the
// default channel. It sits out until that channel starts a round.
func (s *Server) handleConnect(conn transport.Conn) {
	if _, dup := s.byConn[conn]; dup {
		return
	}
	g, err := s.newGame()
	if err != nil {
		logger.Log.Errorf("new game for %s: %v", conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}
	id := s.nextPlayerID
	s.nextPlayerID++

	p := &Player{id: id, conn: conn, game: g, srv: s}
	s.players[id] = p
	s.byConn[conn] = p
	s.metrics.Players.Set(float64(len(s.players)))
	logger.Log.Infof("player %d connected from %s", id, conn.RemoteAddr())

	s.join(p, s.DefaultChannel())
}

// handleDisconnect removes the player everywhere and tells its channel.
func (s *Server) handleDisconnect(conn transport.Conn) {
	p, ok := s.byConn[conn]
	if !ok {
		return
	}
	c := p.channel
	if c != nil {
		c.remove(p)
	}
	delete(s.byConn, conn)
	delete(s.players, p.id)
	p.conn = nil
	s.metrics.Players.Set(float64(len(s.players)))
	logger.Log.Infof("player %d disconnected", p.id)

	if c != nil {
		c.broadcast(&protocol.Disconnect{PlayerID: p.id}, transport.Reliable)
	}
}

// handleReceive routes a datagram to its sender. Malformed packets are
// dropped; a peer that keeps sending them is disconnected.
func (s *Server) handleReceive(conn transport.Conn, data []byte) {
	p, ok := s.byConn[conn]
	if !ok {
		s.metrics.Dropped.WithLabelValues(dropUnknownPeer).Inc()
		return
	}
	pk, err := protocol.Decode(data, p)
	if err != nil {
		p.violations++
		s.metrics.Dropped.WithLabelValues(dropMalformed).Inc()
		logger.Log.Warnf("player %d: protocol error (%d/%d): %v", p.id, p.violations, s.opts.MaxProtocolViolations, err)
		if p.violations >= s.opts.MaxProtocolViolations {
			logger.Log.Warnf("player %d: too many protocol errors, disconnecting", p.id)
			_ = conn.Close()
		}
		return
	}
	s.metrics.Packets.WithLabelValues(pk.ID().String(), "in").Inc()
}
