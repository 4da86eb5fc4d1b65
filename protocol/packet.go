// Package protocol is the closed catalogue of packets exchanged between the
// server and its clients, and the router that hands decoded packets to
// handlers.
//
// Wire layout of every datagram:
//
//	PacketID uint64 (big-endian)
//	payload...  (per-variant, Size() bytes)
package protocol

import (
	"errors"
	"fmt"

	"tetriq/wire"
)

// PacketID identifies a packet variant on the wire.
type PacketID uint64

const (
	IDTest PacketID = iota
	IDConnect
	IDDisconnect
	IDInitGame
	IDGameAction
	IDFullGame
	IDTickGame
	IDFullGameRequest
	IDPowerUp

	idCount
)

// HeaderSize is the width of the leading PacketID.
const HeaderSize = wire.SizeUint64

var (
	ErrUnknownPacket = errors.New("protocol: unknown packet id")
	ErrMalformed     = errors.New("protocol: malformed packet")
)

// Packet is one message variant. The PacketID is written by Encode in this
// package, never by the packet itself.
type Packet interface {
	ID() PacketID
	// Size is the exact length of the encoded payload, header excluded.
	Size() int
	Encode(w *wire.Writer)
	Decode(r *wire.Reader) error
}

// String is the snake_case name used in logs and metric labels.
func (id PacketID) String() string {
	switch id {
	case IDTest:
		return "test"
	case IDConnect:
		return "connect"
	case IDDisconnect:
		return "disconnect"
	case IDInitGame:
		return "init_game"
	case IDGameAction:
		return "game_action"
	case IDFullGame:
		return "full_game"
	case IDTickGame:
		return "tick_game"
	case IDFullGameRequest:
		return "full_game_request"
	case IDPowerUp:
		return "power_up"
	default:
		return fmt.Sprintf("unknown(%d)", uint64(id))
	}
}

// newPacket returns an empty packet of the given variant.
func newPacket(id PacketID) (Packet, error) {
	switch id {
	case IDTest:
		return &Test{}, nil
	case IDConnect:
		return &Connect{}, nil
	case IDDisconnect:
		return &Disconnect{}, nil
	case IDInitGame:
		return &InitGame{}, nil
	case IDGameAction:
		return &GameAction{}, nil
	case IDFullGame:
		return &FullGame{}, nil
	case IDTickGame:
		return &TickGame{}, nil
	case IDFullGameRequest:
		return &FullGameRequest{}, nil
	case IDPowerUp:
		return &PowerUp{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPacket, uint64(id))
	}
}
