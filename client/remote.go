package client

import (
	"errors"
	"fmt"

	"tetriq/game"
	"tetriq/logger"
	"tetriq/protocol"
	"tetriq/transport"
)

// ErrNoPowerUp is returned by UsePowerUp when the local queue is empty.
var ErrNoPowerUp = errors.New("client: power-up queue is empty")

var remotePackets = protocol.NewPacketSet(protocol.IDTickGame, protocol.IDFullGame)

// RemoteTetris mirrors one player's game. serverState is the last
// authoritative snapshot; clientState is that snapshot plus the actions
// predicted since. Every snapshot overwrites the prediction.
type RemoteTetris struct {
	conn     transport.Conn
	playerID uint64

	serverState *game.State
	clientState *game.State
	pending     []game.Action
}

var _ game.View = (*RemoteTetris)(nil)

// NewRemoteTetris creates the pair of states for playerID. conn is only used
// for the local player's inputs.
func NewRemoteTetris(conn transport.Conn, playerID uint64, width, height int) (*RemoteTetris, error) {
	g, err := game.New(width, height, 0)
	if err != nil {
		return nil, fmt.Errorf("remote game %d: %w", playerID, err)
	}
	return &RemoteTetris{
		conn:        conn,
		playerID:    playerID,
		serverState: g,
		clientState: g.Clone(),
	}, nil
}

// PlayerID is the id of the player this game belongs to.
func (r *RemoteTetris) PlayerID() uint64 { return r.playerID }

// ServerState is the last authoritative snapshot.
func (r *RemoteTetris) ServerState() game.View { return r.serverState }

// Pending returns the actions predicted since the last snapshot.
func (r *RemoteTetris) Pending() []game.Action {
	return append([]game.Action(nil), r.pending...)
}

// Predicting reports whether local input is still applied. It stops once the
// server reports the game over, until a snapshot of a fresh game arrives.
func (r *RemoteTetris) Predicting() bool { return !r.serverState.GameOver() }

// HandleGameAction applies a local input right away and forwards it
// to the server.
func (r *RemoteTetris) HandleGameAction(a game.Action) error {
	if !r.Predicting() {
		return nil
	}
	r.clientState.ApplyAction(a)
	r.pending = append(r.pending, a)
	return r.conn.Send(protocol.Encode(&protocol.GameAction{Action: a}), transport.Reliable)
}

// UsePowerUp spends the front power-up against target.
func (r *RemoteTetris) UsePowerUp(target uint64) error {
	if !r.Predicting() {
		return nil
	}
	kind, ok := r.clientState.PopPowerUp()
	if !ok {
		return ErrNoPowerUp
	}
	return r.conn.Send(protocol.Encode(&protocol.PowerUp{Kind: kind, Target: target}), transport.Reliable)
}

// Accepts lists the snapshots a RemoteTetris resyncs from.
func (r *RemoteTetris) Accepts() protocol.PacketSet { return remotePackets }

// HandlePacket consumes snapshots of this player's game only.
func (r *RemoteTetris) HandlePacket(p protocol.Packet) bool {
	switch p := p.(type) {
	case *protocol.TickGame:
		if p.PlayerID != r.playerID {
			return false
		}
		r.resync(p.Game)
	case *protocol.FullGame:
		if p.PlayerID != r.playerID {
			return false
		}
		logger.Log.Debugf("full game for player %d", r.playerID)
		r.resync(p.Game)
	default:
		return false
	}
	return true
}

// resync drops every prediction. Pending actions are not replayed on top of
// the new snapshot.
func (r *RemoteTetris) resync(g *game.State) {
	if len(r.pending) > 0 {
		logger.Log.Debugf("player %d: discarding %d predicted actions", r.playerID, len(r.pending))
	}
	r.serverState = g
	r.clientState = g.Clone()
	r.pending = nil
}

// Width is the grid width of the game.
func (r *RemoteTetris) Width() int { return r.clientState.Width() }

// Height is the grid height of the game.
func (r *RemoteTetris) Height() int { return r.clientState.Height() }

// BlockAt reads a cell of the predicted grid.
func (r *RemoteTetris) BlockAt(x, y int) (game.BlockType, error) {
	return r.clientState.BlockAt(x, y)
}

// CurrentPiece is the predicted falling piece.
func (r *RemoteTetris) CurrentPiece() game.Tetromino { return r.clientState.CurrentPiece() }

// NextPiece is the piece after the current one.
func (r *RemoteTetris) NextPiece() game.Tetromino { return r.clientState.NextPiece() }

// PowerUps is the predicted power-up queue, front first.
func (r *RemoteTetris) PowerUps() []game.BlockType { return r.clientState.PowerUps() }

// GameOver reports whether the predicted game has ended.
func (r *RemoteTetris) GameOver() bool { return r.clientState.GameOver() }
