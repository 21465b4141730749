// Package tui drives a hosting domain from a terminal.
//
// Terminals report key presses, not releases, so every press is delivered
// to the scripts as a key-down immediately followed by a key-up.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/tickhost/internal/host"
	"github.com/roach88/tickhost/internal/script"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	nameStyle   = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E05050"))
	panelStyle  = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1).
			MarginRight(1)

	stateStyles = map[script.State]lipgloss.Style{
		script.StateRunning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#50C878")),
		script.StateAborting: lipgloss.NewStyle().Foreground(lipgloss.Color("#F0A030")),
		script.StateStopped:  lipgloss.NewStyle().Foreground(lipgloss.Color("#E05050")),
	}
)

// frameMsg asks the model to tick the domain once.
type frameMsg time.Time

// Model is the bubbletea model driving a domain: each frame message runs
// one domain tick, each key press is fanned out to the running scripts.
type Model struct {
	domain *host.Domain
	rate   time.Duration

	keys keyMap
	help help.Model

	frames   []host.Frame
	width    int
	err      error
	quitting bool

	// exitWhenIdle quits once no script is running.
	exitWhenIdle bool
}

// Option configures a Model.
type Option func(*Model)

// WithExitWhenIdle makes the program quit when the last script stops.
func WithExitWhenIdle() Option {
	return func(m *Model) {
		m.exitWhenIdle = true
	}
}

// New creates a model ticking d every rate.
func New(d *host.Domain, rate time.Duration, opts ...Option) Model {
	m := Model{
		domain: d,
		rate:   rate,
		keys:   defaultKeyMap(),
		help:   help.New(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.frames = d.Snapshot()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.nextFrame()
}

func (m Model) nextFrame() tea.Cmd {
	return tea.Tick(m.rate, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		// Bound a frame so a wedged script cannot freeze the terminal.
		ctx, cancel := context.WithTimeout(context.Background(), 10*m.rate+time.Second)
		err := m.domain.Tick(ctx)
		cancel()
		if err != nil {
			m.err = err
		}
		m.frames = m.domain.Snapshot()

		if m.exitWhenIdle && m.domain.Running() == 0 {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.nextFrame()

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		ev := keyEvent(msg)
		m.domain.KeyDown(ev)
		m.domain.KeyUp(ev)
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	running := 0
	for _, f := range m.frames {
		if f.State == script.StateRunning {
			running++
		}
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("tickhost  frame %d  %d/%d running",
		m.domain.Frames(), running, len(m.frames))))
	b.WriteString("\n\n")

	panels := make([]string, 0, len(m.frames))
	for _, f := range m.frames {
		panels = append(panels, renderFrame(f))
	}
	if len(panels) == 0 {
		b.WriteString("no scripts loaded")
	} else {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panels...))
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func renderFrame(f host.Frame) string {
	state := f.State.String()
	if st, ok := stateStyles[f.State]; ok {
		state = st.Render(state)
	}

	lines := []string{
		nameStyle.Render(f.Name) + " " + state,
		fmt.Sprintf("ticks %d", f.Ticks),
	}
	if f.View != "" {
		lines = append(lines, "", f.View)
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

// Run drives d in the terminal until the user quits or ctx is done, then
// stops the domain.
func Run(ctx context.Context, d *host.Domain, rate time.Duration, opts ...Option) error {
	if rate <= 0 {
		return fmt.Errorf("run tui: tick rate must be positive, got %s", rate)
	}

	p := tea.NewProgram(New(d, rate, opts...), tea.WithContext(ctx), tea.WithAltScreen())
	_, runErr := p.Run()

	stopCtx, cancel := context.WithTimeout(context.Background(), host.DefaultJoinTimeout+time.Second)
	defer cancel()
	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop domain: %w", err)
	}

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("run tui: %w", runErr)
	}
	return nil
}
