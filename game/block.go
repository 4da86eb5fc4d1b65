package game

// BlockType is the content of one grid cell.
type BlockType uint8

const (
	BlockEmpty BlockType = iota
	BlockIndestructible

	// Standard coloured blocks, one per tetromino shape.
	BlockI
	BlockO
	BlockT
	BlockS
	BlockZ
	BlockJ
	BlockL

	// BlockGarbage fills lines pushed by an AddLine power-up.
	BlockGarbage

	// Special blocks, collected into the power-up queue when their line clears.
	PowerUpAddLine
	PowerUpClearLine
	PowerUpSwitchField
	PowerUpNuke
	PowerUpGravity

	blockTypeCount
)

const shapeCount = int(BlockL-BlockI) + 1

const powerUpCount = int(PowerUpGravity-PowerUpAddLine) + 1

// CellKind is the tagged variant a BlockType belongs to.
type CellKind uint8

const (
	KindStandard CellKind = iota
	KindIndestructible
	KindSpecial
)

// Kind is the cell variant the block belongs to.
func (b BlockType) Kind() CellKind {
	switch {
	case b == BlockIndestructible:
		return KindIndestructible
	case b.IsPowerUp():
		return KindSpecial
	default:
		return KindStandard
	}
}

// Valid reports whether b is a known block.
func (b BlockType) Valid() bool { return b < blockTypeCount }

// IsPowerUp reports whether b is a special block.
func (b BlockType) IsPowerUp() bool { return b >= PowerUpAddLine && b <= PowerUpGravity }

// IsShape reports whether b is one of the seven piece shapes.
func (b BlockType) IsShape() bool { return b >= BlockI && b <= BlockL }

// Destructible reports whether gameplay may clear this cell.
func (b BlockType) Destructible() bool { return b != BlockIndestructible }

// String returns the block name.
func (b BlockType) String() string {
	switch b {
	case BlockEmpty:
		return "empty"
	case BlockIndestructible:
		return "indestructible"
	case BlockI:
		return "I"
	case BlockO:
		return "O"
	case BlockT:
		return "T"
	case BlockS:
		return "S"
	case BlockZ:
		return "Z"
	case BlockJ:
		return "J"
	case BlockL:
		return "L"
	case BlockGarbage:
		return "garbage"
	case PowerUpAddLine:
		return "add_line"
	case PowerUpClearLine:
		return "clear_line"
	case PowerUpSwitchField:
		return "switch_field"
	case PowerUpNuke:
		return "nuke"
	case PowerUpGravity:
		return "gravity"
	default:
		return "unknown"
	}
}
