package script

// Key names a keyboard key. Names follow the terminal conventions used by
// the host binding ("enter", "backspace", "up", "a", "ctrl+c", ...).
type Key string

// KeyEvent is the payload of a queued key-down or key-up event.
type KeyEvent struct {
	Key   Key
	Shift bool
	Ctrl  bool
	Alt   bool
}

// KeyBindings maps the view surface's navigation operations to keys.
type KeyBindings struct {
	Activate Key
	Back     Key
	Left     Key
	Right    Key
	Up       Key
	Down     Key
}

// DefaultKeyBindings returns the stock navigation keys.
func DefaultKeyBindings() KeyBindings {
	return KeyBindings{
		Activate: "enter",
		Back:     "backspace",
		Left:     "left",
		Right:    "right",
		Up:       "up",
		Down:     "down",
	}
}
