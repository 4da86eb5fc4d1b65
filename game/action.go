package game

// Action is one discrete input applied to a State.
type Action uint8

const (
	ActionNone Action = iota
	ActionMoveLeft
	ActionMoveRight
	ActionMoveDown
	ActionDrop
	ActionRotateLeft
	ActionRotateRight

	actionCount
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool { return a < actionCount }

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionMoveLeft:
		return "move_left"
	case ActionMoveRight:
		return "move_right"
	case ActionMoveDown:
		return "move_down"
	case ActionDrop:
		return "drop"
	case ActionRotateLeft:
		return "rotate_left"
	case ActionRotateRight:
		return "rotate_right"
	default:
		return "unknown"
	}
}
