package tui

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/roach88/tickhost/internal/script"
)

// keyMap holds the bindings the driver itself handles. Every other key is
// forwarded to the scripts.
type keyMap struct {
	Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("ctrl+q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// keyEvent converts a terminal key press to a script key event. The alt
// and ctrl modifiers become flags; ctrl keys keep their "ctrl+" name since
// the terminal reports them as distinct keys.
func keyEvent(msg tea.KeyMsg) script.KeyEvent {
	name := msg.String()
	ev := script.KeyEvent{Alt: msg.Alt}

	name = strings.TrimPrefix(name, "alt+")
	if strings.HasPrefix(name, "ctrl+") {
		ev.Ctrl = true
	}
	if msg.Type == tea.KeyShiftTab || strings.HasPrefix(name, "shift+") {
		ev.Shift = true
	}
	if r := msg.Runes; msg.Type == tea.KeyRunes && len(r) == 1 && unicode.IsUpper(r[0]) {
		ev.Shift = true
	}

	ev.Key = script.Key(name)
	return ev
}
