package game

import "fmt"

// PopPowerUp removes and returns the front of the power-up queue.
func (s *State) PopPowerUp() (BlockType, bool) {
	if len(s.powerUps) == 0 {
		return BlockEmpty, false
	}
	b, rest := s.powerUps[0], s.powerUps[1:]
	s.powerUps = nil
	if len(rest) > 0 {
		s.powerUps = append(s.powerUps, rest...)
	}
	return b, true
}

// ApplyPowerUp applies a single-field power-up to s. SwitchField involves two
// fields and goes through SwitchFields instead.
func (s *State) ApplyPowerUp(kind BlockType) error {
	switch kind {
	case PowerUpAddLine:
		s.addLine()
	case PowerUpClearLine:
		s.removeLine(s.height - 2)
	case PowerUpNuke:
		for y := 0; y < s.height-1; y++ {
			for x := 1; x < s.width-1; x++ {
				s.cells[s.index(x, y)] = BlockEmpty
			}
		}
	case PowerUpGravity:
		s.compact()
	default:
		return fmt.Errorf("%w: %s", ErrNotPowerUp, kind)
	}
	s.settle()
	return nil
}

// SwitchFields swaps the grids of a and b; pieces and queues stay with their owner.
func SwitchFields(a, b *State) error {
	if a.width != b.width || a.height != b.height {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionsMismatch, a.width, a.height, b.width, b.height)
	}
	a.cells, b.cells = b.cells, a.cells
	a.settle()
	b.settle()
	return nil
}

// addLine pushes the field up by one line and inserts a garbage line with a
// single hole at the bottom.
func (s *State) addLine() {
	for x := 1; x < s.width-1; x++ {
		if s.cells[s.index(x, 0)] != BlockEmpty {
			s.gameOver = true
		}
	}
	for y := 0; y < s.height-2; y++ {
		copy(s.cells[s.index(1, y):s.index(s.width-1, y)], s.cells[s.index(1, y+1):s.index(s.width-1, y+1)])
	}
	hole := 1 + int(s.rand()%uint64(s.width-2))
	bottom := s.height - 2
	for x := 1; x < s.width-1; x++ {
		if x == hole {
			s.cells[s.index(x, bottom)] = BlockEmpty
		} else {
			s.cells[s.index(x, bottom)] = BlockGarbage
		}
	}
}

// compact lets every block of each column fall to the floor.
func (s *State) compact() {
	for x := 1; x < s.width-1; x++ {
		to := s.height - 2
		for y := s.height - 2; y >= 0; y-- {
			b := s.cells[s.index(x, y)]
			if b == BlockEmpty {
				continue
			}
			s.cells[s.index(x, y)] = BlockEmpty
			s.cells[s.index(x, to)] = b
			to--
		}
	}
}

// settle moves the current piece up when the field changed under it, ending
// the game when there is no room left.
func (s *State) settle() {
	for t := s.current; t.Y >= 0; t = t.moved(0, -1) {
		if s.fits(t) {
			s.current = t
			return
		}
	}
	s.gameOver = true
}
