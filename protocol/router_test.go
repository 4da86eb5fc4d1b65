package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	name    string
	accepts PacketSet
	consume bool
	calls   *[]string
}

func (h *recordingHandler) Accepts() PacketSet { return h.accepts }

func (h *recordingHandler) HandlePacket(Packet) bool {
	*h.calls = append(*h.calls, h.name)
	return h.consume
}

func TestPacketSet(t *testing.T) {
	s := NewPacketSet(IDTickGame, IDFullGame)
	assert.True(t, s.Has(IDTickGame))
	assert.True(t, s.Has(IDFullGame))
	assert.False(t, s.Has(IDInitGame))
	assert.False(t, s.Has(PacketID(63)))
	assert.False(t, NewPacketSet().Has(IDTest))
}

func TestDecode_RoutesInOrderAndStopsAtFirstConsumer(t *testing.T) {
	var calls []string
	declines := &recordingHandler{name: "declines", accepts: NewPacketSet(IDDisconnect), calls: &calls}
	incapable := &recordingHandler{name: "incapable", accepts: NewPacketSet(IDInitGame), consume: true, calls: &calls}
	first := &recordingHandler{name: "first", accepts: NewPacketSet(IDDisconnect), consume: true, calls: &calls}
	second := &recordingHandler{name: "second", accepts: NewPacketSet(IDDisconnect), consume: true, calls: &calls}

	p, err := Decode(Encode(&Disconnect{PlayerID: 4}), declines, incapable, first, second)
	require.NoError(t, err)
	assert.Equal(t, &Disconnect{PlayerID: 4}, p)
	assert.Equal(t, []string{"declines", "first"}, calls)
}

func TestDecode_UnmatchedIsNotAnError(t *testing.T) {
	var calls []string
	h := &recordingHandler{name: "init only", accepts: NewPacketSet(IDInitGame), consume: true, calls: &calls}

	p, err := Decode(Encode(NewTest()), h)
	require.NoError(t, err)
	assert.Equal(t, IDTest, p.ID())
	assert.Empty(t, calls)

	_, err = Decode(Encode(NewTest()))
	require.NoError(t, err, "an empty chain drops the packet")
}

func TestDecode_ProtocolErrorSkipsHandlers(t *testing.T) {
	var calls []string
	h := &recordingHandler{name: "all", accepts: ^PacketSet(0), consume: true, calls: &calls}

	_, err := Decode([]byte{0, 0, 0}, h)
	require.Error(t, err)
	assert.Empty(t, calls)
}

func TestRoute_NilHandlerSkipped(t *testing.T) {
	var calls []string
	h := &recordingHandler{name: "h", accepts: NewPacketSet(IDFullGameRequest), consume: true, calls: &calls}
	assert.True(t, Route(&FullGameRequest{}, nil, h))
	assert.Equal(t, []string{"h"}, calls)
}
