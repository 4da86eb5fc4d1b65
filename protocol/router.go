package protocol

import (
	"fmt"

	"tetriq/logger"
	"tetriq/wire"
)

// PacketSet is a static set of packet variants, one bit per PacketID.
type PacketSet uint64

// NewPacketSet builds the set of the given ids.
func NewPacketSet(ids ...PacketID) PacketSet {
	var s PacketSet
	for _, id := range ids {
		s |= 1 << id
	}
	return s
}

// Has reports whether id is in the set.
func (s PacketSet) Has(id PacketID) bool {
	return id < idCount && s&(1<<id) != 0
}

// Handler consumes decoded packets. Accepts is the handler's capability set;
// HandlePacket is only called with packets in that set and reports whether
// the packet was consumed.
type Handler interface {
	Accepts() PacketSet
	HandlePacket(p Packet) bool
}

// Encode returns the datagram for p: its PacketID followed by its payload.
func Encode(p Packet) []byte {
	w := wire.NewWriter(HeaderSize + p.Size())
	w.PutUint64(uint64(p.ID()))
	p.Encode(w)
	return w.Bytes()
}

// Parse decodes one datagram without routing it.
func Parse(data []byte) (Packet, error) {
	r := wire.NewReader(data)
	raw, err := r.Uint64()
	if err != nil {
		return nil, fmt.Errorf("read packet id: %w", err)
	}
	p, err := newPacket(PacketID(raw))
	if err != nil {
		return nil, err
	}
	if err := p.Decode(r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.ID(), err)
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %s", ErrMalformed, r.Remaining(), p.ID())
	}
	return p, nil
}

// Decode parses data and offers the packet to handlers in order, stopping at
// the first capable handler that consumes it. A packet no handler consumes is
// dropped without error. The decoded packet is returned either way.
func Decode(data []byte, handlers ...Handler) (Packet, error) {
	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if !Route(p, handlers...) {
		logger.Log.Debugf("no handler consumed %s packet (%d candidates)", p.ID(), len(handlers))
	}
	return p, nil
}

// Route offers an already decoded packet to handlers and reports whether one consumed it.
func Route(p Packet, handlers ...Handler) bool {
	id := p.ID()
	for _, h := range handlers {
		if h == nil || !h.Accepts().Has(id) {
			continue
		}
		if h.HandlePacket(p) {
			return true
		}
	}
	return false
}
