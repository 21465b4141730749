package view

import (
	"fmt"
	"strconv"
)

// Item is one selectable row of a menu.
type Item interface {
	// Label is the text drawn for the row.
	Label() string
	// Activate handles the activate key.
	Activate()
	// Change handles left (forward=false) and right (forward=true).
	Change(forward bool)
}

// Button runs OnActivate when activated. Left/right do nothing.
type Button struct {
	Caption    string
	OnActivate func()
}

func (b *Button) Label() string { return b.Caption }

func (b *Button) Activate() {
	if b.OnActivate != nil {
		b.OnActivate()
	}
}

func (b *Button) Change(bool) {}

// Toggle flips On when activated or changed.
type Toggle struct {
	Caption  string
	On       bool
	OnChange func(on bool)
}

func (t *Toggle) Label() string {
	state := "off"
	if t.On {
		state = "on"
	}
	return fmt.Sprintf("%s: %s", t.Caption, state)
}

func (t *Toggle) Activate() { t.flip() }

func (t *Toggle) Change(bool) { t.flip() }

func (t *Toggle) flip() {
	t.On = !t.On
	if t.OnChange != nil {
		t.OnChange(t.On)
	}
}

// Choice cycles through Options with left/right, wrapping at both ends.
type Choice struct {
	Caption  string
	Options  []string
	Index    int
	OnChange func(index int, option string)
}

func (c *Choice) Label() string {
	if len(c.Options) == 0 {
		return c.Caption
	}
	return fmt.Sprintf("%s: < %s >", c.Caption, c.Options[c.Index])
}

func (c *Choice) Activate() { c.Change(true) }

func (c *Choice) Change(forward bool) {
	n := len(c.Options)
	if n == 0 {
		return
	}
	if forward {
		c.Index = (c.Index + 1) % n
	} else {
		c.Index = (c.Index - 1 + n) % n
	}
	if c.OnChange != nil {
		c.OnChange(c.Index, c.Options[c.Index])
	}
}

// Number steps Value by Step within [Min, Max].
type Number struct {
	Caption  string
	Value    int
	Min, Max int
	Step     int
	OnChange func(value int)
}

func (n *Number) Label() string {
	return n.Caption + ": " + strconv.Itoa(n.Value)
}

func (n *Number) Activate() {}

func (n *Number) Change(forward bool) {
	step := n.Step
	if step == 0 {
		step = 1
	}
	if !forward {
		step = -step
	}
	v := n.Value + step
	if v < n.Min {
		v = n.Min
	}
	if v > n.Max {
		v = n.Max
	}
	if v == n.Value {
		return
	}
	n.Value = v
	if n.OnChange != nil {
		n.OnChange(v)
	}
}

// Menu is a titled list of items with one selected row.
type Menu struct {
	Title string
	Items []Item

	// OnBack runs when the menu is popped with the back key.
	OnBack func()

	selected int
}

// NewMenu creates a menu.
func NewMenu(title string, items ...Item) *Menu {
	return &Menu{Title: title, Items: items}
}

// Selected returns the index of the selected row.
func (m *Menu) Selected() int {
	return m.selected
}

// SelectedItem returns the selected row, or nil for an empty menu.
func (m *Menu) SelectedItem() Item {
	if len(m.Items) == 0 {
		return nil
	}
	return m.Items[m.selected]
}

// moveSelection moves the cursor one row, wrapping around.
func (m *Menu) moveSelection(down bool) {
	n := len(m.Items)
	if n == 0 {
		return
	}
	if down {
		m.selected = (m.selected + 1) % n
	} else {
		m.selected = (m.selected - 1 + n) % n
	}
}
