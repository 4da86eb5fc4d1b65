package server

import (
	"errors"

	"tetriq/game"
	"tetriq/logger"
	"tetriq/protocol"
	"tetriq/transport"
)

var playerPackets = protocol.NewPacketSet(
	protocol.IDGameAction,
	protocol.IDFullGameRequest,
	protocol.IDPowerUp,
	protocol.IDTest,
)

// Player is one connected client. It belongs to the server's player table;
// its channel only lists its id.
type Player struct {
	id      uint64
	conn    transport.Conn
	game    *game.State
	actions uint64
	channel *Channel
	inRound bool

	violations int
	srv        *Server
}

// ID is the network id, unique while the player is connected.
func (p *Player) ID() uint64 { return p.id }

// Game is the authoritative state of the player's game.
func (p *Player) Game() game.View { return p.game }

// Channel is the channel the player is currently a member of.
func (p *Player) Channel() *Channel { return p.channel }

// Actions is the number of actions applied during the current round.
func (p *Player) Actions() uint64 { return p.actions }

// InRound reports whether the player plays the current round of its channel.
func (p *Player) InRound() bool { return p.inRound }

// Accepts lists the gameplay packets a player handles.
func (p *Player) Accepts() protocol.PacketSet { return playerPackets }

// HandlePacket applies one packet from the player's client.
func (p *Player) HandlePacket(pk protocol.Packet) bool {
	switch pk := pk.(type) {
	case *protocol.GameAction:
		p.applyAction(pk.Action)
	case *protocol.FullGameRequest:
		p.send(&protocol.FullGame{PlayerID: p.id, Game: p.game}, transport.Reliable)
	case *protocol.PowerUp:
		p.usePowerUp(pk.Kind, pk.Target)
	case *protocol.Test:
		logger.Log.Debugf("player %d: test packet", p.id)
	default:
		return false
	}
	return true
}

// startGame gives the player a fresh game for a new round.
func (p *Player) startGame(g *game.State) {
	p.game = g
	p.actions = 0
	p.inRound = true
}

// sitOut parks the player until its channel starts the next round.
func (p *Player) sitOut() {
	p.inRound = false
	p.game.SetGameOver(true)
}

// tickGame applies one gravity step.
func (p *Player) tickGame() bool {
	return p.game.ApplyAction(game.ActionMoveDown)
}

func (p *Player) applyAction(a game.Action) {
	if !p.inRound || p.game.GameOver() {
		logger.Log.Debugf("player %d: %s ignored outside a round", p.id, a)
		return
	}
	p.game.ApplyAction(a)
	p.actions++
}

// usePowerUp consumes the front of the player's queue against target. A
// claim that does not match the queue front, or an invalid target, leaves the
// queue untouched and sends the player its state back.
func (p *Player) usePowerUp(kind game.BlockType, targetID uint64) {
	if !p.inRound || p.game.GameOver() {
		return
	}
	queue := p.game.PowerUps()
	target, err := p.srv.Player(targetID)
	switch {
	case len(queue) == 0 || queue[0] != kind:
		logger.Log.Debugf("player %d: power-up %s is not at the queue front", p.id, kind)
	case err != nil || target.channel != p.channel || !target.inRound:
		logger.Log.Debugf("player %d: power-up %s has no valid target %d", p.id, kind, targetID)
	default:
		p.applyPowerUp(kind, target)
		p.channel.broadcast(&protocol.FullGame{PlayerID: p.id, Game: p.game}, transport.Reliable)
		if target != p {
			p.channel.broadcast(&protocol.FullGame{PlayerID: target.id, Game: target.game}, transport.Reliable)
		}
		return
	}
	p.srv.metrics.Dropped.WithLabelValues(dropRejected).Inc()
	p.send(&protocol.FullGame{PlayerID: p.id, Game: p.game}, transport.Reliable)
}

func (p *Player) applyPowerUp(kind game.BlockType, target *Player) {
	p.game.PopPowerUp()
	var err error
	if kind == game.PowerUpSwitchField {
		err = game.SwitchFields(p.game, target.game)
	} else {
		err = target.game.ApplyPowerUp(kind)
	}
	if err != nil {
		logger.Log.Warnf("player %d: power-up %s on %d: %v", p.id, kind, target.id, err)
	}
}

// send encodes and queues pk. A peer that cannot take it loses the packet.
func (p *Player) send(pk protocol.Packet, mode transport.Mode) {
	if p.conn == nil {
		return
	}
	m := p.srv.metrics
	err := p.conn.Send(protocol.Encode(pk), mode)
	switch {
	case err == nil:
		m.Packets.WithLabelValues(pk.ID().String(), "out").Inc()
	case errors.Is(err, transport.ErrQueueFull):
		m.Dropped.WithLabelValues(dropQueueFull).Inc()
		logger.Log.Debugf("player %d: %s dropped: %v", p.id, pk.ID(), err)
	default:
		m.Dropped.WithLabelValues(dropPeerClosed).Inc()
		logger.Log.Debugf("player %d: %s dropped: %v", p.id, pk.ID(), err)
	}
}
