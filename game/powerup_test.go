package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countBlocks(s *State) int {
	n := 0
	for y := 0; y < s.height-1; y++ {
		for x := 1; x < s.width-1; x++ {
			if s.cells[s.index(x, y)] != BlockEmpty {
				n++
			}
		}
	}
	return n
}

func TestPowerUpQueue_FIFOAndBounded(t *testing.T) {
	s := newState(t, 12, 22)
	for i := 0; i < MaxPowerUps+3; i++ {
		s.pushPowerUp(PowerUpAddLine + BlockType(i%powerUpCount))
	}
	require.Len(t, s.PowerUps(), MaxPowerUps)

	first, ok := s.PopPowerUp()
	require.True(t, ok)
	assert.Equal(t, PowerUpAddLine, first)
	second, ok := s.PopPowerUp()
	require.True(t, ok)
	assert.Equal(t, PowerUpClearLine, second)

	for range s.PowerUps() {
		s.PopPowerUp()
	}
	_, ok = s.PopPowerUp()
	assert.False(t, ok)
	assert.Nil(t, s.PowerUps())
}

func TestApplyPowerUp(t *testing.T) {
	t.Run("nuke empties the field", func(t *testing.T) {
		s := newState(t, 12, 22)
		fillLine(s, 20, BlockGarbage)
		fillLine(s, 19, BlockGarbage)
		require.NoError(t, s.ApplyPowerUp(PowerUpNuke))
		assert.Zero(t, countBlocks(s))
		b, _ := s.BlockAt(0, 5)
		assert.Equal(t, BlockIndestructible, b)
	})

	t.Run("add line pushes a garbage line with one hole", func(t *testing.T) {
		s := newState(t, 12, 22)
		s.cells[s.index(4, 20)] = BlockT
		require.NoError(t, s.ApplyPowerUp(PowerUpAddLine))
		b, _ := s.BlockAt(4, 19)
		assert.Equal(t, BlockT, b)
		assert.Equal(t, 10, countBlocks(s), "moved block plus nine garbage blocks")
		assert.False(t, s.GameOver())
	})

	t.Run("add line with a full top ends the game", func(t *testing.T) {
		s := newState(t, 12, 22)
		s.cells[s.index(1, 0)] = BlockGarbage
		require.NoError(t, s.ApplyPowerUp(PowerUpAddLine))
		assert.True(t, s.GameOver())
	})

	t.Run("clear line removes the bottom line", func(t *testing.T) {
		s := newState(t, 12, 22)
		fillLine(s, 20, BlockGarbage)
		s.cells[s.index(2, 19)] = BlockO
		require.NoError(t, s.ApplyPowerUp(PowerUpClearLine))
		assert.Equal(t, 1, countBlocks(s))
		b, _ := s.BlockAt(2, 20)
		assert.Equal(t, BlockO, b)
	})

	t.Run("gravity compacts columns", func(t *testing.T) {
		s := newState(t, 12, 22)
		s.cells[s.index(3, 10)] = BlockS
		s.cells[s.index(3, 15)] = BlockZ
		require.NoError(t, s.ApplyPowerUp(PowerUpGravity))
		b, _ := s.BlockAt(3, 20)
		assert.Equal(t, BlockZ, b)
		b, _ = s.BlockAt(3, 19)
		assert.Equal(t, BlockS, b)
		assert.Equal(t, 2, countBlocks(s))
	})

	t.Run("non power-up is rejected", func(t *testing.T) {
		s := newState(t, 12, 22)
		require.ErrorIs(t, s.ApplyPowerUp(BlockT), ErrNotPowerUp)
		require.ErrorIs(t, s.ApplyPowerUp(PowerUpSwitchField), ErrNotPowerUp)
	})

	t.Run("deterministic", func(t *testing.T) {
		a := newState(t, 12, 22)
		b := newState(t, 12, 22)
		for _, k := range []BlockType{PowerUpAddLine, PowerUpGravity, PowerUpAddLine, PowerUpClearLine} {
			require.NoError(t, a.ApplyPowerUp(k))
			require.NoError(t, b.ApplyPowerUp(k))
		}
		assert.Equal(t, a, b)
	})
}

func TestSwitchFields(t *testing.T) {
	a := newState(t, 12, 22)
	b := newState(t, 12, 22)
	fillLine(a, 20, BlockGarbage)
	a.cells[a.index(1, 20)] = BlockEmpty

	require.NoError(t, SwitchFields(a, b))
	assert.Zero(t, countBlocks(a))
	assert.Equal(t, 9, countBlocks(b))

	other := newState(t, 10, 20)
	require.ErrorIs(t, SwitchFields(a, other), ErrDimensionsMismatch)
}
