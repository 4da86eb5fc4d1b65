package client

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tetriq/game"
	"tetriq/protocol"
	"tetriq/transport"
	"tetriq/wire"
)

type fakeConn struct {
	sent [][]byte
}

func (c *fakeConn) Send(data []byte, _ transport.Mode) error {
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) Close() error       { return nil }
func (c *fakeConn) RemoteAddr() string { return "server" }

func (c *fakeConn) take(t *testing.T) []protocol.Packet {
	t.Helper()
	var out []protocol.Packet
	for _, data := range c.sent {
		p, err := protocol.Parse(data)
		require.NoError(t, err)
		out = append(out, p)
	}
	c.sent = nil
	return out
}

type fakeHost struct {
	events []transport.Event
}

func (h *fakeHost) Service(time.Duration) (transport.Event, bool) {
	if len(h.events) == 0 {
		return transport.Event{}, false
	}
	ev := h.events[0]
	h.events = h.events[1:]
	return ev, true
}

func (h *fakeHost) push(p protocol.Packet) {
	h.events = append(h.events, transport.Event{Type: transport.EventReceive, Data: protocol.Encode(p)})
}

type fakeDisplay struct {
	loads      []int
	draws      int
	inputs     [][]Input
	closeAfter int
	lastOthers int
}

func (d *fakeDisplay) LoadGame(_ game.View, playerCount int) error {
	d.loads = append(d.loads, playerCount)
	return nil
}

func (d *fakeDisplay) Draw(_ game.View, others []game.View) error {
	d.draws++
	d.lastOthers = len(others)
	if d.closeAfter > 0 && d.draws > d.closeAfter {
		return ErrDisplayClosed
	}
	return nil
}

func (d *fakeDisplay) HandleEvents(game.View) ([]Input, error) {
	if len(d.inputs) == 0 {
		return nil, nil
	}
	in := d.inputs[0]
	d.inputs = d.inputs[1:]
	return in, nil
}

func newTestClient() (*Client, *fakeHost, *fakeConn, *fakeDisplay) {
	host, conn, display := &fakeHost{}, &fakeConn{}, &fakeDisplay{}
	return New(host, conn, display, time.Millisecond), host, conn, display
}

// deliver services every queued event.
func deliver(c *Client, h *fakeHost) {
	for {
		ev, ok := h.Service(0)
		if !ok {
			return
		}
		c.handleEvent(ev)
	}
}

func mustGame(t *testing.T, seed uint64) *game.State {
	t.Helper()
	g, err := game.New(12, 22, seed)
	require.NoError(t, err)
	return g
}

// withPowerUps returns a copy of g whose queue holds kinds.
func withPowerUps(t *testing.T, g *game.State, kinds ...game.BlockType) *game.State {
	t.Helper()
	w := wire.NewWriter(g.EncodedSize())
	g.Encode(w)
	b := w.Bytes()
	off := wire.SizeUint64*2 + g.Width()*g.Height() + 2*(wire.SizeUint8*2+wire.SizeUint64*2)

	patched := append([]byte(nil), b[:off]...)
	patched = binary.BigEndian.AppendUint64(patched, uint64(len(kinds)))
	for _, k := range kinds {
		patched = append(patched, uint8(k))
	}
	patched = append(patched, b[off+wire.SizeUint64:]...)

	out, err := game.Decode(wire.NewReader(patched))
	require.NoError(t, err)
	return out
}

func TestClient_InitGame(t *testing.T) {
	c, host, conn, display := newTestClient()
	assert.Equal(t, AwaitingInit, c.State())

	host.push(&protocol.InitGame{GameWidth: 12, GameHeight: 22, PlayerID: 3, PlayerIDs: []uint64{1, 2}})
	deliver(c, host)

	assert.Equal(t, Predicting, c.State())
	require.NotNil(t, c.Self())
	assert.Equal(t, uint64(3), c.Self().PlayerID())
	require.Len(t, c.Remotes(), 2)
	assert.Equal(t, uint64(1), c.Remotes()[0].PlayerID())
	assert.Equal(t, 12, c.Self().Width())
	assert.Equal(t, []int{3}, display.loads)
	assert.Equal(t, []protocol.Packet{&protocol.FullGameRequest{}}, conn.take(t))
}

func TestClient_InputsIgnoredBeforeInit(t *testing.T) {
	c, _, conn, _ := newTestClient()
	require.NoError(t, c.HandleInput(Input{Action: game.ActionDrop}))
	require.NoError(t, c.UsePowerUp(1))
	assert.Empty(t, conn.sent)
}

func TestClient_ConnectAndDisconnect(t *testing.T) {
	c, host, _, _ := newTestClient()
	host.push(&protocol.Connect{PlayerID: 9, GameWidth: 12, GameHeight: 22})
	deliver(c, host)
	assert.Empty(t, c.Remotes(), "no session yet")

	host.push(&protocol.InitGame{GameWidth: 12, GameHeight: 22, PlayerID: 0})
	host.push(&protocol.Connect{PlayerID: 9, GameWidth: 12, GameHeight: 22})
	host.push(&protocol.Connect{PlayerID: 9, GameWidth: 12, GameHeight: 22})
	host.push(&protocol.Connect{PlayerID: 0, GameWidth: 12, GameHeight: 22})
	deliver(c, host)
	require.Len(t, c.Remotes(), 1)
	assert.Equal(t, uint64(9), c.Remotes()[0].PlayerID())

	host.push(&protocol.Disconnect{PlayerID: 9})
	deliver(c, host)
	assert.Empty(t, c.Remotes())
}

// Two predicted actions, then a TickGame carrying G: the prediction is
// replaced by G and nothing stays pending.
func TestRemoteTetris_TickGameResync(t *testing.T) {
	c, host, conn, _ := newTestClient()
	host.push(&protocol.InitGame{GameWidth: 12, GameHeight: 22, PlayerID: 0})
	deliver(c, host)
	conn.take(t)

	self := c.Self()
	require.NoError(t, c.HandleInput(Input{Action: game.ActionMoveLeft}))
	require.NoError(t, c.HandleInput(Input{Action: game.ActionRotateRight}))
	assert.Equal(t, []game.Action{game.ActionMoveLeft, game.ActionRotateRight}, self.Pending())
	assert.NotEqual(t, self.serverState, self.clientState)
	assert.Equal(t, []protocol.Packet{
		&protocol.GameAction{Action: game.ActionMoveLeft},
		&protocol.GameAction{Action: game.ActionRotateRight},
	}, conn.take(t))

	g := mustGame(t, 77)
	g.ApplyAction(game.ActionDrop)
	host.push(&protocol.TickGame{PlayerID: 0, Game: g})
	deliver(c, host)

	assert.Equal(t, g, self.clientState)
	assert.Equal(t, g, self.serverState)
	assert.NotSame(t, self.serverState, self.clientState)
	assert.Empty(t, self.Pending())
}

func TestRemoteTetris_DeclinesOtherPlayers(t *testing.T) {
	r, err := NewRemoteTetris(&fakeConn{}, 1, 12, 22)
	require.NoError(t, err)
	before := r.clientState.Clone()

	assert.False(t, r.HandlePacket(&protocol.TickGame{PlayerID: 2, Game: mustGame(t, 5)}))
	assert.False(t, r.HandlePacket(&protocol.FullGame{PlayerID: 2, Game: mustGame(t, 5)}))
	assert.False(t, r.HandlePacket(&protocol.FullGameRequest{}))
	assert.Equal(t, before, r.clientState)

	assert.True(t, r.HandlePacket(&protocol.FullGame{PlayerID: 1, Game: mustGame(t, 5)}))
	assert.Equal(t, mustGame(t, 5), r.clientState)
}

func TestClient_SnapshotsReachTheRightRemote(t *testing.T) {
	c, host, _, _ := newTestClient()
	host.push(&protocol.InitGame{GameWidth: 12, GameHeight: 22, PlayerID: 0, PlayerIDs: []uint64{1, 2}})
	g := mustGame(t, 123)
	host.push(&protocol.FullGame{PlayerID: 2, Game: g})
	deliver(c, host)

	remotes := c.Remotes()
	assert.Equal(t, g, remotes[1].clientState)
	assert.NotEqual(t, g, remotes[0].clientState)
	assert.NotEqual(t, g, c.Self().clientState)
}

func TestRemoteTetris_GameOverStopsPrediction(t *testing.T) {
	c, host, conn, _ := newTestClient()
	host.push(&protocol.InitGame{GameWidth: 12, GameHeight: 22, PlayerID: 0})
	over := mustGame(t, 1)
	over.SetGameOver(true)
	host.push(&protocol.FullGame{PlayerID: 0, Game: over})
	deliver(c, host)
	conn.take(t)

	require.NoError(t, c.HandleInput(Input{Action: game.ActionMoveLeft}))
	assert.Empty(t, conn.sent)
	assert.Empty(t, c.Self().Pending())
	assert.False(t, c.Self().Predicting())

	host.push(&protocol.FullGame{PlayerID: 0, Game: mustGame(t, 2)})
	deliver(c, host)
	require.NoError(t, c.HandleInput(Input{Action: game.ActionMoveLeft}))
	assert.Len(t, conn.take(t), 1, "a fresh game resumes prediction")
}

func TestClient_UsePowerUp(t *testing.T) {
	c, host, conn, _ := newTestClient()
	host.push(&protocol.InitGame{GameWidth: 12, GameHeight: 22, PlayerID: 0, PlayerIDs: []uint64{4}})
	host.push(&protocol.FullGame{PlayerID: 0, Game: withPowerUps(t, mustGame(t, 3), game.PowerUpNuke, game.PowerUpGravity)})
	deliver(c, host)
	conn.take(t)

	require.NoError(t, c.HandleInput(Input{UsePowerUp: true, Target: 4}))
	assert.Equal(t, []protocol.Packet{&protocol.PowerUp{Kind: game.PowerUpNuke, Target: 4}}, conn.take(t))
	assert.Equal(t, []game.BlockType{game.PowerUpGravity}, c.Self().PowerUps())

	require.NoError(t, c.UsePowerUp(0))
	require.ErrorIs(t, c.UsePowerUp(0), ErrNoPowerUp)
}

func TestClient_ProtocolErrorRequestsFullGame(t *testing.T) {
	c, host, conn, _ := newTestClient()
	host.events = append(host.events, transport.Event{Type: transport.EventReceive, Data: []byte{0xFF}})
	deliver(c, host)
	assert.Empty(t, conn.sent, "nothing to recover before init")

	host.push(&protocol.InitGame{GameWidth: 12, GameHeight: 22, PlayerID: 0})
	deliver(c, host)
	conn.take(t)

	bad := protocol.Encode(&protocol.TickGame{PlayerID: 0, Game: mustGame(t, 1)})
	bad = bad[:len(bad)-3]
	host.events = append(host.events, transport.Event{Type: transport.EventReceive, Data: bad})
	deliver(c, host)
	assert.Equal(t, []protocol.Packet{&protocol.FullGameRequest{}}, conn.take(t))
}

func TestClient_RunEndsOnDisconnect(t *testing.T) {
	c, host, _, display := newTestClient()
	host.push(&protocol.InitGame{GameWidth: 12, GameHeight: 22, PlayerID: 0, PlayerIDs: []uint64{1}})
	host.events = append(host.events, transport.Event{Type: transport.EventDisconnect})

	err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrDisconnected)
	assert.Equal(t, Ended, c.State())
	assert.Positive(t, display.draws)
	assert.Equal(t, 1, display.lastOthers)

	// InitGame after the end is ignored
	c.HandlePacket(&protocol.InitGame{GameWidth: 12, GameHeight: 22, PlayerID: 5})
	assert.Equal(t, Ended, c.State())
}

func TestClient_RunStopsWhenDisplayCloses(t *testing.T) {
	c, host, conn, display := newTestClient()
	display.closeAfter = 3
	display.inputs = [][]Input{{{Action: game.ActionMoveRight}}, {{Action: game.ActionDrop}}}
	host.push(&protocol.InitGame{GameWidth: 12, GameHeight: 22, PlayerID: 0})

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []protocol.Packet{
		&protocol.FullGameRequest{},
		&protocol.GameAction{Action: game.ActionMoveRight},
		&protocol.GameAction{Action: game.ActionDrop},
	}, conn.take(t))
}

func TestClient_RunStopsOnCancel(t *testing.T) {
	c, _, _, _ := newTestClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Run(ctx))
	assert.Equal(t, AwaitingInit, c.State())
}

func TestHeadlessDisplay_AutoplayIsDeterministic(t *testing.T) {
	view := mustGame(t, 1)
	play := func() []Input {
		d := NewHeadlessDisplay(true, 42)
		require.NoError(t, d.LoadGame(view, 1))
		var all []Input
		for i := 0; i < 100; i++ {
			require.NoError(t, d.Draw(view, nil))
			in, err := d.HandleEvents(view)
			require.NoError(t, err)
			all = append(all, in...)
		}
		return all
	}
	first := play()
	assert.Len(t, first, 10)
	assert.Equal(t, first, play())

	d := NewHeadlessDisplay(false, 42)
	in, err := d.HandleEvents(view)
	require.NoError(t, err)
	assert.Empty(t, in)
	d.Close()
	require.ErrorIs(t, d.Draw(view, nil), ErrDisplayClosed)
}
