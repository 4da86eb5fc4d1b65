package game

// Point is a grid coordinate or an offset inside a tetromino's 4x4 box.
type Point struct {
	X, Y int
}

// Tetromino is a falling piece: its shape, orientation and the grid position
// of the top-left corner of its 4x4 box.
type Tetromino struct {
	Shape    BlockType
	Rotation uint8
	X, Y     int
}

// shapes[shape][rotation] lists the four occupied offsets.
var shapes = [shapeCount][4][4]Point{
	BlockI - BlockI: {
		{{0, 1}, {1, 1}, {2, 1}, {3, 1}},
		{{2, 0}, {2, 1}, {2, 2}, {2, 3}},
		{{0, 2}, {1, 2}, {2, 2}, {3, 2}},
		{{1, 0}, {1, 1}, {1, 2}, {1, 3}},
	},
	BlockO - BlockI: {
		{{1, 0}, {2, 0}, {1, 1}, {2, 1}},
		{{1, 0}, {2, 0}, {1, 1}, {2, 1}},
		{{1, 0}, {2, 0}, {1, 1}, {2, 1}},
		{{1, 0}, {2, 0}, {1, 1}, {2, 1}},
	},
	BlockT - BlockI: {
		{{1, 0}, {0, 1}, {1, 1}, {2, 1}},
		{{1, 0}, {1, 1}, {2, 1}, {1, 2}},
		{{0, 1}, {1, 1}, {2, 1}, {1, 2}},
		{{1, 0}, {0, 1}, {1, 1}, {1, 2}},
	},
	BlockS - BlockI: {
		{{1, 0}, {2, 0}, {0, 1}, {1, 1}},
		{{1, 0}, {1, 1}, {2, 1}, {2, 2}},
		{{1, 1}, {2, 1}, {0, 2}, {1, 2}},
		{{0, 0}, {0, 1}, {1, 1}, {1, 2}},
	},
	BlockZ - BlockI: {
		{{0, 0}, {1, 0}, {1, 1}, {2, 1}},
		{{2, 0}, {1, 1}, {2, 1}, {1, 2}},
		{{0, 1}, {1, 1}, {1, 2}, {2, 2}},
		{{1, 0}, {0, 1}, {1, 1}, {0, 2}},
	},
	BlockJ - BlockI: {
		{{0, 0}, {0, 1}, {1, 1}, {2, 1}},
		{{1, 0}, {2, 0}, {1, 1}, {1, 2}},
		{{0, 1}, {1, 1}, {2, 1}, {2, 2}},
		{{1, 0}, {1, 1}, {0, 2}, {1, 2}},
	},
	BlockL - BlockI: {
		{{2, 0}, {0, 1}, {1, 1}, {2, 1}},
		{{1, 0}, {1, 1}, {1, 2}, {2, 2}},
		{{0, 1}, {1, 1}, {2, 1}, {0, 2}},
		{{0, 0}, {1, 0}, {1, 1}, {1, 2}},
	},
}

// Blocks returns the grid coordinates the piece occupies.
func (t Tetromino) Blocks() [4]Point {
	var out [4]Point
	for i, p := range shapes[t.Shape-BlockI][t.Rotation%4] {
		out[i] = Point{X: t.X + p.X, Y: t.Y + p.Y}
	}
	return out
}

func (t Tetromino) moved(dx, dy int) Tetromino {
	t.X += dx
	t.Y += dy
	return t
}

func (t Tetromino) rotated(dir int) Tetromino {
	t.Rotation = uint8((int(t.Rotation) + dir + 4) % 4)
	return t
}

func (t Tetromino) valid() bool {
	return t.Shape.IsShape() && t.Rotation < 4
}
