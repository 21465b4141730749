package view

import (
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Styles controls how a menu is drawn.
type Styles struct {
	Title    lipgloss.Style
	Item     lipgloss.Style
	Selected lipgloss.Style
	Box      lipgloss.Style
}

// DefaultStyles returns the stock menu look.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF")),
		Item: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")).
			PaddingLeft(2),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			PaddingLeft(1).
			SetString(">"),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1),
	}
}

// Viewport is a stack of menus owned by one script.
//
// The script goroutine draws and navigates; the host reads Frame between
// driver steps. The mutex covers the stack and the frame so that a host
// reading out of step still sees a consistent frame.
type Viewport struct {
	mu     sync.Mutex
	menus  []*Menu
	frame  string
	styles Styles
	draws  int
}

// New creates an empty viewport.
func New() *Viewport {
	return &Viewport{styles: DefaultStyles()}
}

// SetStyles replaces the drawing styles.
func (v *Viewport) SetStyles(st Styles) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.styles = st
}

// AddMenu pushes m on top of the stack.
func (v *Viewport) AddMenu(m *Menu) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.menus = append(v.menus, m)
}

// PopMenu removes the top menu. Returns false if the stack was empty.
func (v *Viewport) PopMenu() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.popLocked() != nil
}

func (v *Viewport) popLocked() *Menu {
	n := len(v.menus)
	if n == 0 {
		return nil
	}
	top := v.menus[n-1]
	v.menus[n-1] = nil
	v.menus = v.menus[:n-1]
	return top
}

// Top returns the visible menu, or nil.
func (v *Viewport) Top() *Menu {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.topLocked()
}

func (v *Viewport) topLocked() *Menu {
	if len(v.menus) == 0 {
		return nil
	}
	return v.menus[len(v.menus)-1]
}

// Depth returns the number of stacked menus.
func (v *Viewport) Depth() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.menus)
}

// HandleActivate activates the selected row of the top menu.
func (v *Viewport) HandleActivate() {
	v.mu.Lock()
	top := v.topLocked()
	v.mu.Unlock()

	// Item callbacks may push or pop menus; run them unlocked.
	if top == nil {
		return
	}
	if item := top.SelectedItem(); item != nil {
		item.Activate()
	}
}

// HandleBack pops the top menu and runs its OnBack.
func (v *Viewport) HandleBack() {
	v.mu.Lock()
	top := v.popLocked()
	v.mu.Unlock()

	if top != nil && top.OnBack != nil {
		top.OnBack()
	}
}

// HandleChangeItem changes the value of the selected row.
func (v *Viewport) HandleChangeItem(forward bool) {
	v.mu.Lock()
	top := v.topLocked()
	v.mu.Unlock()

	if top == nil {
		return
	}
	if item := top.SelectedItem(); item != nil {
		item.Change(forward)
	}
}

// HandleChangeSelection moves the cursor of the top menu.
func (v *Viewport) HandleChangeSelection(down bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if top := v.topLocked(); top != nil {
		top.moveSelection(down)
	}
}

// Draw renders the top menu into the frame. An empty stack draws nothing.
func (v *Viewport) Draw() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.draws++
	top := v.topLocked()
	if top == nil {
		v.frame = ""
		return
	}
	v.frame = render(top, v.styles)
}

// Frame returns the last drawn frame.
func (v *Viewport) Frame() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame
}

// Draws returns how many times Draw ran.
func (v *Viewport) Draws() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draws
}

func render(m *Menu, st Styles) string {
	lines := make([]string, 0, len(m.Items)+1)
	lines = append(lines, st.Title.Render(m.Title))
	for i, item := range m.Items {
		if i == m.selected {
			lines = append(lines, st.Selected.Render(item.Label()))
			continue
		}
		lines = append(lines, st.Item.Render(item.Label()))
	}
	return st.Box.Render(strings.Join(lines, "\n"))
}
