// Package game holds the falling-block simulation shared by the server and the
// client. Nothing here touches the network: the same sequence of actions on two
// equal states always yields equal states.
package game

import (
	"errors"
	"fmt"
)

const (
	MinWidth     = 6
	MinHeight    = 6
	MaxDimension = 256

	// MaxPowerUps bounds the power-up queue; extra power-ups are lost.
	MaxPowerUps = 10

	defaultSeed uint64 = 0x9E3779B97F4A7C15
)

var (
	ErrOutOfBounds        = errors.New("game: coordinate out of bounds")
	ErrInvalidDimensions  = errors.New("game: invalid grid dimensions")
	ErrInvalidState       = errors.New("game: invalid serialized state")
	ErrNotPowerUp         = errors.New("game: block is not a power-up")
	ErrDimensionsMismatch = errors.New("game: grid dimensions differ")
)

// View is the read-only face of a game handed to displays.
type View interface {
	Width() int
	Height() int
	BlockAt(x, y int) (BlockType, error)
	CurrentPiece() Tetromino
	NextPiece() Tetromino
	PowerUps() []BlockType
	GameOver() bool
}

// State is one player's game: grid, current and next piece, power-up queue,
// game-over flag and the piece generator.
type State struct {
	width, height int
	cells         []BlockType

	current Tetromino
	next    Tetromino

	powerUps []BlockType
	gameOver bool

	// xorshift64 state; part of the synchronized state so both peers draw
	// the same pieces.
	seed uint64
}

var _ View = (*State)(nil)

// New builds a fresh game with walls and floor in place and the first two
// pieces drawn from seed.
func New(width, height int, seed uint64) (*State, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = defaultSeed
	}
	s := &State{
		width:  width,
		height: height,
		cells:  make([]BlockType, width*height),
		seed:   seed,
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x == 0 || x == width-1 || y == height-1 {
				s.cells[s.index(x, y)] = BlockIndestructible
			}
		}
	}
	s.current = s.spawn(s.randomShape())
	s.next = s.spawn(s.randomShape())
	return s, nil
}

func checkDimensions(width, height int) error {
	if width < MinWidth || height < MinHeight || width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return nil
}

// Width and Height are fixed at construction.
func (s *State) Width() int { return s.width }
func (s *State) Height() int { return s.height }

// BlockAt returns the cell at (x, y), or ErrOutOfBounds outside the grid.
func (s *State) BlockAt(x, y int) (BlockType, error) {
	if !s.contains(x, y) {
		return BlockEmpty, fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrOutOfBounds, x, y, s.width, s.height)
	}
	return s.cells[s.index(x, y)], nil
}

// CurrentPiece is the falling piece; NextPiece is the one after it.
func (s *State) CurrentPiece() Tetromino { return s.current }
func (s *State) NextPiece() Tetromino { return s.next }

// PowerUps returns a copy of the queue, front first.
func (s *State) PowerUps() []BlockType {
	return append([]BlockType(nil), s.powerUps...)
}

// GameOver reports whether the game has ended.
func (s *State) GameOver() bool { return s.gameOver }

// SetGameOver forces the flag, for players sitting out a round.
func (s *State) SetGameOver(over bool) { s.gameOver = over }

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.cells = append([]BlockType(nil), s.cells...)
	c.powerUps = append([]BlockType(nil), s.powerUps...)
	return &c
}

// ApplyAction advances the game by one input and reports whether the game is over.
func (s *State) ApplyAction(a Action) bool {
	if s.gameOver {
		return true
	}
	switch a {
	case ActionMoveLeft:
		s.try(s.current.moved(-1, 0))
	case ActionMoveRight:
		s.try(s.current.moved(1, 0))
	case ActionRotateLeft:
		s.try(s.current.rotated(-1))
	case ActionRotateRight:
		s.try(s.current.rotated(1))
	case ActionMoveDown:
		if !s.try(s.current.moved(0, 1)) {
			s.lock()
		}
	case ActionDrop:
		for s.try(s.current.moved(0, 1)) {
		}
		s.lock()
	}
	return s.gameOver
}

func (s *State) index(x, y int) int { return y*s.width + x }

func (s *State) contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.width && y < s.height
}

// inside reports whether every block of t lies on the grid.
func (s *State) inside(t Tetromino) bool {
	for _, p := range t.Blocks() {
		if !s.contains(p.X, p.Y) {
			return false
		}
	}
	return true
}

func (s *State) fits(t Tetromino) bool {
	if !s.inside(t) {
		return false
	}
	for _, p := range t.Blocks() {
		if s.cells[s.index(p.X, p.Y)] != BlockEmpty {
			return false
		}
	}
	return true
}

// try replaces the current piece with t when it fits.
func (s *State) try(t Tetromino) bool {
	if !s.fits(t) {
		return false
	}
	s.current = t
	return true
}

func (s *State) spawn(shape BlockType) Tetromino {
	return Tetromino{Shape: shape, X: (s.width - 4) / 2}
}

// lock writes the current piece into the grid, clears full lines and brings
// in the next piece.
func (s *State) lock() {
	for _, p := range s.current.Blocks() {
		s.cells[s.index(p.X, p.Y)] = s.current.Shape
	}
	cleared := s.clearLines()
	s.seedPowerUps(cleared)

	s.current = s.spawn(s.next.Shape)
	s.next = s.spawn(s.randomShape())
	if !s.fits(s.current) {
		s.gameOver = true
	}
}

func (s *State) lineFull(y int) bool {
	for x := 1; x < s.width-1; x++ {
		if s.cells[s.index(x, y)] == BlockEmpty {
			return false
		}
	}
	return true
}

func (s *State) clearLines() int {
	cleared := 0
	for y := s.height - 2; y >= 0; {
		if !s.lineFull(y) {
			y--
			continue
		}
		s.destroyLine(y)
		s.removeLine(y)
		cleared++
	}
	return cleared
}

// destroyLine collects the special blocks of line y.
func (s *State) destroyLine(y int) {
	for x := 1; x < s.width-1; x++ {
		if b := s.cells[s.index(x, y)]; b.IsPowerUp() {
			s.pushPowerUp(b)
		}
	}
}

// removeLine drops every line above y by one and empties the top line.
// Walls are not destructible and stay in place.
func (s *State) removeLine(y int) {
	for ; y > 0; y-- {
		for x := 0; x < s.width; x++ {
			if s.cells[s.index(x, y)].Destructible() {
				s.cells[s.index(x, y)] = s.cells[s.index(x, y-1)]
			}
		}
	}
	for x := 0; x < s.width; x++ {
		if s.cells[s.index(x, 0)].Destructible() {
			s.cells[s.index(x, 0)] = BlockEmpty
		}
	}
}

// seedPowerUps turns one random standard block into a special block per cleared line.
func (s *State) seedPowerUps(n int) {
	for i := 0; i < n; i++ {
		var candidates []int
		for y := 0; y < s.height-1; y++ {
			for x := 1; x < s.width-1; x++ {
				b := s.cells[s.index(x, y)]
				if b != BlockEmpty && b.Kind() == KindStandard {
					candidates = append(candidates, s.index(x, y))
				}
			}
		}
		if len(candidates) == 0 {
			return
		}
		at := candidates[s.rand()%uint64(len(candidates))]
		s.cells[at] = PowerUpAddLine + BlockType(s.rand()%uint64(powerUpCount))
	}
}

func (s *State) pushPowerUp(b BlockType) {
	if len(s.powerUps) >= MaxPowerUps {
		return
	}
	s.powerUps = append(s.powerUps, b)
}

func (s *State) rand() uint64 {
	x := s.seed
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	s.seed = x
	return x
}

func (s *State) randomShape() BlockType {
	return BlockI + BlockType(s.rand()%uint64(shapeCount))
}
