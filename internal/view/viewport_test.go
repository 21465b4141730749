package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewport_DrawEmpty(t *testing.T) {
	v := New()
	v.Draw()
	assert.Equal(t, "", v.Frame())
	assert.Equal(t, 1, v.Draws())
}

func TestViewport_DrawTopMenu(t *testing.T) {
	v := New()
	v.AddMenu(NewMenu("Main", &Button{Caption: "Start"}, &Button{Caption: "Quit"}))
	v.Draw()

	frame := v.Frame()
	assert.Contains(t, frame, "Main")
	assert.Contains(t, frame, "> Start")
	assert.Contains(t, frame, "Quit")
	assert.NotContains(t, frame, "> Quit")
}

func TestViewport_ChangeSelectionWraps(t *testing.T) {
	v := New()
	m := NewMenu("Main", &Button{Caption: "A"}, &Button{Caption: "B"}, &Button{Caption: "C"})
	v.AddMenu(m)

	v.HandleChangeSelection(true)
	assert.Equal(t, 1, m.Selected())

	v.HandleChangeSelection(false)
	v.HandleChangeSelection(false)
	assert.Equal(t, 2, m.Selected(), "up from the first row wraps to the last")

	v.HandleChangeSelection(true)
	assert.Equal(t, 0, m.Selected(), "down from the last row wraps to the first")
}

func TestViewport_ActivateButton(t *testing.T) {
	pressed := 0
	v := New()
	v.AddMenu(NewMenu("Main", &Button{Caption: "Go", OnActivate: func() { pressed++ }}))

	v.HandleActivate()
	v.HandleActivate()
	assert.Equal(t, 2, pressed)
}

func TestViewport_ActivatePushesSubmenu(t *testing.T) {
	v := New()
	sub := NewMenu("Options", &Toggle{Caption: "Sound"})
	v.AddMenu(NewMenu("Main", &Button{Caption: "Options", OnActivate: func() { v.AddMenu(sub) }}))

	v.HandleActivate()
	require.Equal(t, 2, v.Depth())
	assert.Same(t, sub, v.Top())
}

func TestViewport_BackPopsAndNotifies(t *testing.T) {
	backed := false
	v := New()
	v.AddMenu(NewMenu("Main"))
	v.AddMenu(&Menu{Title: "Sub", OnBack: func() { backed = true }})

	v.HandleBack()
	assert.True(t, backed)
	assert.Equal(t, 1, v.Depth())

	v.HandleBack()
	v.HandleBack()
	assert.Equal(t, 0, v.Depth(), "back on an empty stack is a no-op")
}

func TestViewport_ChangeItem(t *testing.T) {
	var picked string
	choice := &Choice{
		Caption:  "Mode",
		Options:  []string{"easy", "normal", "hard"},
		OnChange: func(_ int, option string) { picked = option },
	}
	v := New()
	v.AddMenu(NewMenu("Main", choice))

	v.HandleChangeItem(true)
	assert.Equal(t, "normal", picked)

	v.HandleChangeItem(false)
	v.HandleChangeItem(false)
	assert.Equal(t, "hard", picked, "left from the first option wraps")
}

func TestToggle(t *testing.T) {
	var last bool
	tg := &Toggle{Caption: "Sound", OnChange: func(on bool) { last = on }}

	tg.Activate()
	assert.True(t, tg.On)
	assert.True(t, last)
	assert.Equal(t, "Sound: on", tg.Label())

	tg.Change(false)
	assert.False(t, tg.On)
	assert.Equal(t, "Sound: off", tg.Label())
}

func TestNumber_Clamps(t *testing.T) {
	calls := 0
	n := &Number{Caption: "Volume", Value: 9, Min: 0, Max: 10, Step: 1, OnChange: func(int) { calls++ }}

	n.Change(true)
	n.Change(true)
	assert.Equal(t, 10, n.Value)
	assert.Equal(t, 1, calls, "no change event when clamped")

	n.Step = 0
	n.Change(false)
	assert.Equal(t, 9, n.Value, "zero step behaves like one")
	assert.Equal(t, "Volume: 9", n.Label())
}

func TestMenu_EmptyNavigation(t *testing.T) {
	v := New()
	v.AddMenu(NewMenu("Empty"))

	v.HandleActivate()
	v.HandleChangeItem(true)
	v.HandleChangeSelection(true)
	assert.Nil(t, v.Top().SelectedItem())
}
