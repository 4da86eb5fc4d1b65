package protocol

import (
	"errors"
	"fmt"

	"tetriq/game"
	"tetriq/wire"
)

// TestMagic is the payload of the liveness packet.
const TestMagic uint64 = 0x737819

// Test is a no-op liveness packet.
type Test struct {
	Magic uint64
}

// NewTest returns a liveness packet carrying TestMagic.
func NewTest() *Test { return &Test{Magic: TestMagic} }

// ID, Size, Encode and Decode implement Packet for every variant below.
func (*Test) ID() PacketID { return IDTest }
func (*Test) Size() int { return wire.SizeUint64 }
func (p *Test) Encode(w *wire.Writer) { w.PutUint64(p.Magic) }

func (p *Test) Decode(r *wire.Reader) (err error) {
	if p.Magic, err = r.Uint64(); err != nil {
		return err
	}
	if p.Magic != TestMagic {
		return fmt.Errorf("%w: test magic %#x", ErrMalformed, p.Magic)
	}
	return nil
}

// Connect announces a new player to the members of a channel.
type Connect struct {
	PlayerID   uint64
	GameWidth  uint64
	GameHeight uint64
}

func (*Connect) ID() PacketID { return IDConnect }
func (*Connect) Size() int { return wire.SizeUint64 * 3 }

func (p *Connect) Encode(w *wire.Writer) {
	w.PutUint64(p.PlayerID)
	w.PutUint64(p.GameWidth)
	w.PutUint64(p.GameHeight)
}

func (p *Connect) Decode(r *wire.Reader) (err error) {
	if p.PlayerID, err = r.Uint64(); err != nil {
		return err
	}
	if p.GameWidth, p.GameHeight, err = decodeDimensions(r); err != nil {
		return err
	}
	return nil
}

// Disconnect announces that a player left.
type Disconnect struct {
	PlayerID uint64
}

func (*Disconnect) ID() PacketID { return IDDisconnect }
func (*Disconnect) Size() int { return wire.SizeUint64 }
func (p *Disconnect) Encode(w *wire.Writer) { w.PutUint64(p.PlayerID) }

func (p *Disconnect) Decode(r *wire.Reader) (err error) {
	p.PlayerID, err = r.Uint64()
	return err
}

// InitGame tells a freshly connected client its id, the grid size and who
// else is in its channel.
type InitGame struct {
	GameWidth  uint64
	GameHeight uint64
	PlayerID   uint64
	PlayerIDs  []uint64
}

func (*InitGame) ID() PacketID { return IDInitGame }

func (p *InitGame) Size() int {
	return wire.SizeUint64*4 + wire.SizeUint64*len(p.PlayerIDs)
}

func (p *InitGame) Encode(w *wire.Writer) {
	w.PutUint64(p.GameWidth)
	w.PutUint64(p.GameHeight)
	w.PutUint64(p.PlayerID)
	w.PutUint64(uint64(len(p.PlayerIDs)))
	for _, id := range p.PlayerIDs {
		w.PutUint64(id)
	}
}

func (p *InitGame) Decode(r *wire.Reader) (err error) {
	if p.GameWidth, p.GameHeight, err = decodeDimensions(r); err != nil {
		return err
	}
	if p.PlayerID, err = r.Uint64(); err != nil {
		return err
	}
	count, err := r.Uint64()
	if err != nil {
		return err
	}
	// never allocate more than the buffer can hold
	if count > uint64(r.Remaining()/wire.SizeUint64) {
		return fmt.Errorf("%w: %d player ids announced, %d bytes left", wire.ErrUnderflow, count, r.Remaining())
	}
	p.PlayerIDs = nil
	for i := uint64(0); i < count; i++ {
		id, err := r.Uint64()
		if err != nil {
			return err
		}
		p.PlayerIDs = append(p.PlayerIDs, id)
	}
	return nil
}

// GameAction carries one player input from client to server.
type GameAction struct {
	Action game.Action
}

func (*GameAction) ID() PacketID { return IDGameAction }
func (*GameAction) Size() int { return wire.SizeUint8 }
func (p *GameAction) Encode(w *wire.Writer) { w.PutUint8(uint8(p.Action)) }

func (p *GameAction) Decode(r *wire.Reader) error {
	v, err := r.Uint8()
	if err != nil {
		return err
	}
	p.Action = game.Action(v)
	if !p.Action.Valid() {
		return fmt.Errorf("%w: action %d", ErrMalformed, v)
	}
	return nil
}

// FullGame is a complete game state, used for the initial sync, round starts
// and recovery.
type FullGame struct {
	PlayerID uint64
	Game     *game.State
}

func (*FullGame) ID() PacketID { return IDFullGame }
func (p *FullGame) Size() int { return snapshotSize(p.Game) }
func (p *FullGame) Encode(w *wire.Writer) { encodeSnapshot(w, p.PlayerID, p.Game) }

func (p *FullGame) Decode(r *wire.Reader) (err error) {
	p.PlayerID, p.Game, err = decodeSnapshot(r)
	return err
}

// TickGame is the periodic authoritative refresh of one player's game.
type TickGame struct {
	PlayerID uint64
	Game     *game.State
}

func (*TickGame) ID() PacketID { return IDTickGame }
func (p *TickGame) Size() int { return snapshotSize(p.Game) }
func (p *TickGame) Encode(w *wire.Writer) { encodeSnapshot(w, p.PlayerID, p.Game) }

func (p *TickGame) Decode(r *wire.Reader) (err error) {
	p.PlayerID, p.Game, err = decodeSnapshot(r)
	return err
}

// FullGameRequest asks the server to resend the full state.
type FullGameRequest struct{}

func (*FullGameRequest) ID() PacketID { return IDFullGameRequest }
func (*FullGameRequest) Size() int { return 0 }
func (*FullGameRequest) Encode(*wire.Writer) {}
func (*FullGameRequest) Decode(*wire.Reader) error { return nil }

// PowerUp uses the sender's front power-up against Target.
type PowerUp struct {
	Kind   game.BlockType
	Target uint64
}

func (*PowerUp) ID() PacketID { return IDPowerUp }
func (*PowerUp) Size() int { return wire.SizeUint8 + wire.SizeUint64 }

func (p *PowerUp) Encode(w *wire.Writer) {
	w.PutUint8(uint8(p.Kind))
	w.PutUint64(p.Target)
}

func (p *PowerUp) Decode(r *wire.Reader) error {
	v, err := r.Uint8()
	if err != nil {
		return err
	}
	if p.Target, err = r.Uint64(); err != nil {
		return err
	}
	p.Kind = game.BlockType(v)
	if !p.Kind.IsPowerUp() {
		return fmt.Errorf("%w: power-up kind %d", ErrMalformed, v)
	}
	return nil
}

func decodeDimensions(r *wire.Reader) (width, height uint64, err error) {
	if width, err = r.Uint64(); err != nil {
		return 0, 0, err
	}
	if height, err = r.Uint64(); err != nil {
		return 0, 0, err
	}
	if width < game.MinWidth || height < game.MinHeight || width > game.MaxDimension || height > game.MaxDimension {
		return 0, 0, fmt.Errorf("%w: grid %dx%d", ErrMalformed, width, height)
	}
	return width, height, nil
}

func snapshotSize(g *game.State) int {
	return wire.SizeUint64 + g.EncodedSize()
}

func encodeSnapshot(w *wire.Writer, playerID uint64, g *game.State) {
	w.PutUint64(playerID)
	g.Encode(w)
}

func decodeSnapshot(r *wire.Reader) (uint64, *game.State, error) {
	id, err := r.Uint64()
	if err != nil {
		return 0, nil, err
	}
	g, err := game.Decode(r)
	if errors.Is(err, game.ErrInvalidState) {
		return 0, nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err != nil {
		return 0, nil, err
	}
	return id, g, nil
}
