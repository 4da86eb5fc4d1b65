package server

import (
	"time"

	"tetriq/logger"
	"tetriq/protocol"
	"tetriq/transport"
)

// roundTick is the resolution of the channel's gravity clock.
const roundTick = time.Second

// Channel groups players that play the same round. Membership order is the
// order players joined.
type Channel struct {
	id       uint64
	members  []uint64
	started  bool
	nextTick time.Time

	metrics ChannelMetrics
	srv     *Server
}

func newChannel(srv *Server, id uint64) *Channel {
	return &Channel{id: id, srv: srv}
}

// ID is the channel id; 0 is the default channel.
func (c *Channel) ID() uint64 { return c.id }

// Members returns a copy of the member ids.
func (c *Channel) Members() []uint64 {
	return append([]uint64(nil), c.members...)
}

// Running reports whether a round is in progress.
func (c *Channel) Running() bool { return c.started }

// Metrics returns the channel's counters.
func (c *Channel) Metrics() *ChannelMetrics { return &c.metrics }

func (c *Channel) has(id uint64) bool {
	for _, m := range c.members {
		if m == id {
			return true
		}
	}
	return false
}

// add appends p to the members. A player joining a running round waits for
// the next one.
func (c *Channel) add(p *Player) bool {
	if c.has(p.id) {
		return false
	}
	c.members = append(c.members, p.id)
	p.channel = c
	p.sitOut()
	return true
}

func (c *Channel) remove(p *Player) {
	for i, id := range c.members {
		if id == p.id {
			c.members = append(c.members[:i], c.members[i+1:]...)
			break
		}
	}
	if p.channel == c {
		p.channel = nil
	}
	p.inRound = false
}

// others lists every member but id.
func (c *Channel) others(id uint64) []uint64 {
	var ids []uint64
	for _, m := range c.members {
		if m != id {
			ids = append(ids, m)
		}
	}
	return ids
}

func (c *Channel) each(fn func(p *Player)) {
	for _, id := range c.members {
		p, err := c.srv.Player(id)
		if err != nil {
			logger.Log.Errorf("channel %d: member %d has no player", c.id, id)
			continue
		}
		fn(p)
	}
}

func (c *Channel) broadcast(pk protocol.Packet, mode transport.Mode) {
	c.each(func(p *Player) { p.send(pk, mode) })
}

// Tick advances the channel. An idle channel with members starts a round
// right away. A running channel acts at most once per second: it stops when
// empty or when nobody in the round is left, otherwise it applies gravity to
// every player in the round and sends the resulting snapshots. Any game over
// ends the round for everyone.
func (c *Channel) Tick(now time.Time) {
	start := time.Now()
	defer func() { c.metrics.AddTick(time.Since(start).Nanoseconds()) }()

	if !c.started {
		if len(c.members) > 0 {
			c.startRound(now)
		}
		return
	}
	if now.Before(c.nextTick) {
		return
	}
	c.nextTick = now.Add(roundTick)

	if len(c.members) == 0 {
		c.stopRound(now)
		return
	}

	over := false
	var playing []*Player
	c.each(func(p *Player) {
		if !p.inRound {
			return
		}
		playing = append(playing, p)
		if p.tickGame() {
			over = true
		}
	})
	if len(playing) == 0 {
		// everyone in the round left; the members waiting get a new one
		c.stopRound(now)
		return
	}
	for _, p := range playing {
		c.broadcast(&protocol.TickGame{PlayerID: p.id, Game: p.game}, transport.Reliable)
	}
	c.metrics.AddSnapshots(len(playing) * len(c.members))

	if over {
		c.metrics.IncGameOvers()
		c.stopRound(now)
	}
}

func (c *Channel) startRound(now time.Time) {
	logger.Log.Debugf("channel %d: starting round with %d players", c.id, len(c.members))
	var playing []*Player
	c.each(func(p *Player) {
		g, err := c.srv.newGame()
		if err != nil {
			logger.Log.Errorf("channel %d: new game for %d: %v", c.id, p.id, err)
			return
		}
		p.startGame(g)
		playing = append(playing, p)
	})
	for _, p := range playing {
		c.broadcast(&protocol.FullGame{PlayerID: p.id, Game: p.game}, transport.Reliable)
	}
	c.started = true
	c.nextTick = now.Add(roundTick)
	c.metrics.IncRounds()
	c.srv.metrics.Rounds.Inc()
}

func (c *Channel) stopRound(now time.Time) {
	logger.Log.Debugf("channel %d: round stopped", c.id)
	c.started = false

	res := RoundResult{Channel: c.id, EndedAt: now}
	c.each(func(p *Player) {
		if !p.inRound {
			return
		}
		res.Players = append(res.Players, PlayerScore{PlayerID: p.id, Actions: p.actions, Lost: p.game.GameOver()})
		p.inRound = false
	})
	if len(res.Players) > 0 {
		c.srv.recorder.Record(res)
	}
}
