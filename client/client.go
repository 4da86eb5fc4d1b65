// Package client is the player side: it predicts the local game, mirrors the
// other players of the channel and reconciles everything against the
// server's snapshots.
package client

import (
	"context"
	"errors"
	"time"

	"tetriq/game"
	"tetriq/logger"
	"tetriq/protocol"
	"tetriq/transport"
)

// ErrDisconnected ends Run when the server goes away.
var ErrDisconnected = errors.New("client: disconnected from server")

// State is the client's session state.
type State int

const (
	AwaitingInit State = iota
	Predicting
	Ended
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case AwaitingInit:
		return "awaiting_init"
	case Predicting:
		return "predicting"
	default:
		return "ended"
	}
}

var clientPackets = protocol.NewPacketSet(
	protocol.IDInitGame,
	protocol.IDConnect,
	protocol.IDDisconnect,
	protocol.IDTest,
)

// Host is the part of the transport the client loop polls.
type Host interface {
	Service(timeout time.Duration) (transport.Event, bool)
}

// Client owns the local player's RemoteTetris and one per co-participant.
// Everything runs on the goroutine calling Run.
type Client struct {
	host    Host
	conn    transport.Conn
	display Display
	frame   time.Duration

	state   State
	self    *RemoteTetris
	remotes []*RemoteTetris
	width   int
	height  int
}

// New builds a client on an established connection. frame bounds how long
// one loop iteration waits for network events.
func New(host Host, conn transport.Conn, display Display, frame time.Duration) *Client {
	if frame <= 0 {
		frame = 16 * time.Millisecond
	}
	return &Client{host: host, conn: conn, display: display, frame: frame}
}

// State is the current session state.
func (c *Client) State() State { return c.state }

// Self is the local player's game, nil before InitGame.
func (c *Client) Self() *RemoteTetris { return c.self }

// Remotes are the other players of the channel, in announcement order.
func (c *Client) Remotes() []*RemoteTetris {
	return append([]*RemoteTetris(nil), c.remotes...)
}

// Accepts lists the session packets the client handles itself.
func (c *Client) Accepts() protocol.PacketSet { return clientPackets }

// HandlePacket applies session packets: channel init and membership changes.
func (c *Client) HandlePacket(p protocol.Packet) bool {
	switch p := p.(type) {
	case *protocol.InitGame:
		c.initGame(p)
	case *protocol.Connect:
		c.addRemote(p.PlayerID, int(p.GameWidth), int(p.GameHeight))
	case *protocol.Disconnect:
		c.removeRemote(p.PlayerID)
	case *protocol.Test:
		logger.Log.Debug("handled test packet")
	default:
		return false
	}
	return true
}

// initGame (re)starts the session for the channel described by p and asks
// the server for the initial state.
func (c *Client) initGame(p *protocol.InitGame) {
	if c.state == Ended {
		return
	}
	width, height := int(p.GameWidth), int(p.GameHeight)
	self, err := NewRemoteTetris(c.conn, p.PlayerID, width, height)
	if err != nil {
		logger.Log.Errorf("init game: %v", err)
		return
	}
	c.self, c.remotes = self, nil
	c.width, c.height = width, height
	for _, id := range p.PlayerIDs {
		c.addRemote(id, width, height)
	}
	logger.Log.Infof("playing as %d with %d other players", p.PlayerID, len(c.remotes))
	c.state = Predicting
	c.requestFullGame()
	if err := c.display.LoadGame(c.self, 1+len(c.remotes)); err != nil {
		logger.Log.Warnf("display load game: %v", err)
	}
}

func (c *Client) addRemote(id uint64, width, height int) {
	if c.self == nil || id == c.self.playerID {
		return
	}
	for _, r := range c.remotes {
		if r.playerID == id {
			return
		}
	}
	r, err := NewRemoteTetris(nil, id, width, height)
	if err != nil {
		logger.Log.Warnf("player %d joined: %v", id, err)
		return
	}
	c.remotes = append(c.remotes, r)
	logger.Log.Infof("player %d joined", id)
}

func (c *Client) removeRemote(id uint64) {
	for i, r := range c.remotes {
		if r.playerID == id {
			c.remotes = append(c.remotes[:i], c.remotes[i+1:]...)
			logger.Log.Infof("player %d left", id)
			return
		}
	}
}

func (c *Client) requestFullGame() {
	if err := c.conn.Send(protocol.Encode(&protocol.FullGameRequest{}), transport.Reliable); err != nil {
		logger.Log.Warnf("full game request: %v", err)
	}
}

// HandleInput applies one local input while predicting.
func (c *Client) HandleInput(in Input) error {
	if c.state != Predicting {
		return nil
	}
	if in.UsePowerUp {
		return c.UsePowerUp(in.Target)
	}
	return c.self.HandleGameAction(in.Action)
}

// UsePowerUp spends the local player's front power-up against target.
func (c *Client) UsePowerUp(target uint64) error {
	if c.state != Predicting {
		return nil
	}
	return c.self.UsePowerUp(target)
}

// handlers is the dispatch chain: the client itself, then every game.
func (c *Client) handlers() []protocol.Handler {
	hs := make([]protocol.Handler, 0, 2+len(c.remotes))
	hs = append(hs, c)
	if c.self != nil {
		hs = append(hs, c.self)
	}
	for _, r := range c.remotes {
		hs = append(hs, r)
	}
	return hs
}

func (c *Client) handleEvent(ev transport.Event) {
	switch ev.Type {
	case transport.EventReceive:
		if _, err := protocol.Decode(ev.Data, c.handlers()...); err != nil {
			logger.Log.Warnf("dropping packet: %v", err)
			if c.state == Predicting {
				c.requestFullGame()
			}
		}
	case transport.EventDisconnect:
		logger.Log.Info("disconnected from the server")
		c.state = Ended
	case transport.EventConnect:
		logger.Log.Debug("connected to the server")
	}
}

// Run draws, reads input and services the network until ctx is done, the
// display closes or the server goes away.
func (c *Client) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if c.state == Ended {
			return ErrDisconnected
		}
		if c.state == Predicting {
			if err := c.frameOnce(); err != nil {
				if errors.Is(err, ErrDisplayClosed) {
					return nil
				}
				return err
			}
		}
		if ev, ok := c.host.Service(c.frame); ok {
			c.handleEvent(ev)
		}
	}
}

func (c *Client) frameOnce() error {
	others := make([]game.View, 0, len(c.remotes))
	for _, r := range c.remotes {
		others = append(others, r)
	}
	if err := c.display.Draw(c.self, others); err != nil {
		return err
	}
	inputs, err := c.display.HandleEvents(c.self)
	if err != nil {
		return err
	}
	for _, in := range inputs {
		if err := c.HandleInput(in); err != nil {
			logger.Log.Debugf("input %+v: %v", in, err)
		}
	}
	return nil
}
