package game

import (
	"fmt"

	"tetriq/wire"
)

const tetrominoSize = wire.SizeUint8*2 + wire.SizeUint64*2

// EncodedSize is the exact number of bytes Encode writes.
func (s *State) EncodedSize() int {
	return wire.SizeUint64*2 + // width, height
		len(s.cells) +
		tetrominoSize*2 +
		wire.SizeUint64 + len(s.powerUps) +
		wire.SizeBool +
		wire.SizeUint64 // seed
}

// Encode writes the whole state: dimensions, cells, pieces, power-ups,
// game over flag and generator seed.
func (s *State) Encode(w *wire.Writer) {
	w.PutUint64(uint64(s.width))
	w.PutUint64(uint64(s.height))
	for _, b := range s.cells {
		w.PutUint8(uint8(b))
	}
	encodeTetromino(w, s.current)
	encodeTetromino(w, s.next)
	w.PutUint64(uint64(len(s.powerUps)))
	for _, b := range s.powerUps {
		w.PutUint8(uint8(b))
	}
	w.PutBool(s.gameOver)
	w.PutUint64(s.seed)
}

func encodeTetromino(w *wire.Writer, t Tetromino) {
	w.PutUint8(uint8(t.Shape))
	w.PutUint8(t.Rotation)
	w.PutInt64(int64(t.X))
	w.PutInt64(int64(t.Y))
}

// Decode reads a state written by Encode. Anything that would break the grid
// invariants is rejected with ErrInvalidState.
func Decode(r *wire.Reader) (*State, error) {
	width, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	height, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	if width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidState, width, height)
	}
	if err := checkDimensions(int(width), int(height)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	s := &State{width: int(width), height: int(height)}

	raw, err := r.Bytes(s.width * s.height)
	if err != nil {
		return nil, err
	}
	s.cells = make([]BlockType, len(raw))
	for i, v := range raw {
		b := BlockType(v)
		x, y := i%s.width, i/s.width
		border := x == 0 || x == s.width-1 || y == s.height-1
		if !b.Valid() || border != (b == BlockIndestructible) {
			return nil, fmt.Errorf("%w: cell (%d,%d) holds %d", ErrInvalidState, x, y, v)
		}
		s.cells[i] = b
	}

	if s.current, err = decodeTetromino(r); err != nil {
		return nil, err
	}
	if s.next, err = decodeTetromino(r); err != nil {
		return nil, err
	}

	count, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	if count > MaxPowerUps {
		return nil, fmt.Errorf("%w: %d power-ups", ErrInvalidState, count)
	}
	for i := uint64(0); i < count; i++ {
		v, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		if !BlockType(v).IsPowerUp() {
			return nil, fmt.Errorf("%w: power-up %d", ErrInvalidState, v)
		}
		s.powerUps = append(s.powerUps, BlockType(v))
	}

	if s.gameOver, err = r.Bool(); err != nil {
		return nil, err
	}
	if s.seed, err = r.Uint64(); err != nil {
		return nil, err
	}

	for _, t := range []Tetromino{s.current, s.next} {
		if !s.inside(t) {
			return nil, fmt.Errorf("%w: tetromino %+v outside %dx%d", ErrInvalidState, t, s.width, s.height)
		}
	}
	if !s.gameOver && !s.fits(s.current) {
		return nil, fmt.Errorf("%w: current tetromino %+v overlaps the field", ErrInvalidState, s.current)
	}
	return s, nil
}

func decodeTetromino(r *wire.Reader) (Tetromino, error) {
	var t Tetromino
	shape, err := r.Uint8()
	if err != nil {
		return t, err
	}
	rotation, err := r.Uint8()
	if err != nil {
		return t, err
	}
	x, err := r.Int64()
	if err != nil {
		return t, err
	}
	y, err := r.Int64()
	if err != nil {
		return t, err
	}
	t = Tetromino{Shape: BlockType(shape), Rotation: rotation, X: int(x), Y: int(y)}
	if !t.valid() || x < -MaxDimension || x > MaxDimension || y < -MaxDimension || y > MaxDimension {
		return t, fmt.Errorf("%w: tetromino %+v", ErrInvalidState, t)
	}
	return t, nil
}
