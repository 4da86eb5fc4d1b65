package server

import (
	"fmt"

	"tetriq/logger"
	"tetriq/protocol"
	"tetriq/transport"
)

// Channel table operations. Like everything else on Server they must run on
// the loop goroutine; the admin console gets there through Exec.

// CreateChannel opens an empty channel and returns its id.
func (s *Server) CreateChannel() uint64 {
	s.nextChannelID++
	s.channels = append(s.channels, newChannel(s, s.nextChannelID))
	s.metrics.Channels.Set(float64(len(s.channels)))
	logger.Log.Infof("channel %d created", s.nextChannelID)
	return s.nextChannelID
}

// Channel looks up a channel by id.
func (s *Server) Channel(id uint64) (*Channel, error) {
	for _, c := range s.channels {
		if c.id == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrChannelNotFound, id)
}

// Channels returns the channels in tick order.
func (s *Server) Channels() []*Channel {
	return append([]*Channel(nil), s.channels...)
}

// DeleteChannel closes a channel; its members go back to the default channel.
func (s *Server) DeleteChannel(id uint64) error {
	if id == 0 {
		return ErrDefaultChannel
	}
	c, err := s.Channel(id)
	if err != nil {
		return err
	}
	for _, pid := range c.Members() {
		if err := s.MovePlayer(pid, 0); err != nil {
			return err
		}
	}
	for i, cur := range s.channels {
		if cur == c {
			s.channels = append(s.channels[:i], s.channels[i+1:]...)
			break
		}
	}
	s.metrics.Channels.Set(float64(len(s.channels)))
	logger.Log.Infof("channel %d deleted", id)
	return nil
}

// MovePlayer moves a player to another channel. Both channels are told, and
// the player is re-initialised with its new co-participants; it joins the
// next round there.
func (s *Server) MovePlayer(playerID, channelID uint64) error {
	p, err := s.Player(playerID)
	if err != nil {
		return err
	}
	dst, err := s.Channel(channelID)
	if err != nil {
		return err
	}
	if p.channel == dst {
		return nil
	}
	if src := p.channel; src != nil {
		src.remove(p)
		src.broadcast(&protocol.Disconnect{PlayerID: p.id}, transport.Reliable)
	}
	s.join(p, dst)
	logger.Log.Infof("player %d moved to channel %d", p.id, dst.id)
	return nil
}

// join announces p to dst, adds it and sends it its InitGame.
func (s *Server) join(p *Player, dst *Channel) {
	dst.broadcast(&protocol.Connect{
		PlayerID:   p.id,
		GameWidth:  uint64(s.opts.GameWidth),
		GameHeight: uint64(s.opts.GameHeight),
	}, transport.Reliable)
	dst.add(p)
	p.send(&protocol.InitGame{
		GameWidth:  uint64(s.opts.GameWidth),
		GameHeight: uint64(s.opts.GameHeight),
		PlayerID:   p.id,
		PlayerIDs:  dst.others(p.id),
	}, transport.Reliable)
}

// Kick closes a player's connection. The player is removed when the
// transport reports the disconnect.
func (s *Server) Kick(playerID uint64) error {
	p, err := s.Player(playerID)
	if err != nil {
		return err
	}
	logger.Log.Infof("kicking player %d", p.id)
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
