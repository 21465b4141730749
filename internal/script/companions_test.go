package script_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickhost/internal/script"
	"github.com/roach88/tickhost/internal/view"
)

func TestView_CreatedOnceAndDrawnEveryTick(t *testing.T) {
	f := newFixture(t)

	v := f.s.View()
	require.NotNil(t, v)
	assert.Same(t, v, f.s.View(), "view is memoized")

	v.AddMenu(view.NewMenu("Main", &view.Button{Caption: "Start"}))
	f.admit(t)
	f.advance(t, 2)

	assert.Equal(t, 2, v.Draws(), "one draw per tick, subscribed once")
	assert.Contains(t, v.Frame(), "Main")
	assert.Contains(t, v.Frame(), "Start")
}

func TestView_NavigatesOnKeyUp(t *testing.T) {
	f := newFixture(t)
	var pressed []string
	v := f.s.View()
	v.AddMenu(view.NewMenu("Main",
		&view.Button{Caption: "One", OnActivate: func() { pressed = append(pressed, "one") }},
		&view.Button{Caption: "Two", OnActivate: func() { pressed = append(pressed, "two") }},
	))
	f.admit(t)

	f.s.KeyDown(script.KeyEvent{Key: "down"})
	f.advance(t, 1)
	assert.Equal(t, 0, v.Top().Selected(), "key-down does not navigate")

	f.s.KeyUp(script.KeyEvent{Key: "down"})
	f.s.KeyUp(script.KeyEvent{Key: "enter"})
	f.advance(t, 1)

	assert.Equal(t, 1, v.Top().Selected())
	assert.Equal(t, []string{"two"}, pressed)

	f.s.KeyUp(script.KeyEvent{Key: "backspace"})
	f.advance(t, 1)
	assert.Equal(t, 0, v.Depth())
}

func TestView_CustomKeyBindings(t *testing.T) {
	kb := script.DefaultKeyBindings()
	kb.Activate = "space"
	kb.Right = "d"
	f := newFixture(t, script.WithKeyBindings(kb))

	toggle := &view.Toggle{Caption: "Sound"}
	choice := &view.Choice{Caption: "Mode", Options: []string{"easy", "hard"}}
	v := f.s.View()
	v.AddMenu(view.NewMenu("Options", toggle, choice))
	f.admit(t)

	f.s.KeyUp(script.KeyEvent{Key: "space"})
	f.s.KeyUp(script.KeyEvent{Key: "enter"})
	f.s.KeyUp(script.KeyEvent{Key: "down"})
	f.s.KeyUp(script.KeyEvent{Key: "d"})
	f.advance(t, 1)

	assert.True(t, toggle.On, "enter is not bound any more, space flips once")
	assert.Equal(t, 1, choice.Index)
}

func TestSettings_PathDerivedFromSource(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	f.host.SetSource(f.s, filepath.Join(dir, "bot.js"))

	st, err := f.s.Settings()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bot.yaml"), st.Path())
	assert.Empty(t, st.Sections(), "missing file yields empty settings")

	again, err := f.s.Settings()
	require.NoError(t, err)
	assert.Same(t, st, again)
}

func TestSettings_LoadsExistingFile(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bot.yaml"), []byte("general:\n  speed: 3\n  name: rover\n"), 0o644))
	f.host.SetSource(f.s, filepath.Join(dir, "bot.js"))

	st, err := f.s.Settings()
	require.NoError(t, err)
	assert.Equal(t, 3, st.GetInt("general", "speed", 0))
	assert.Equal(t, "rover", st.GetString("general", "name", ""))
}

func TestSettings_NoSourcePath(t *testing.T) {
	f := newFixture(t)

	_, err := f.s.Settings()
	assert.Error(t, err)
}

func TestSettings_LoadFailureIsNotMemoized(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("general: [unclosed\n"), 0o644))
	f.host.SetSource(f.s, filepath.Join(dir, "bot.js"))

	_, err := f.s.Settings()
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("general:\n  ok: true\n"), 0o644))
	st, err := f.s.Settings()
	require.NoError(t, err)
	assert.True(t, st.GetBool("general", "ok", false))
}
