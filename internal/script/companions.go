package script

import (
	"fmt"

	"github.com/roach88/tickhost/internal/settings"
	"github.com/roach88/tickhost/internal/view"
)

// View returns the script's viewport, creating it on first use.
//
// Creation has a one-time effect: the viewport's draw is subscribed to the
// tick dispatch and its navigation to the key-up dispatch. Later calls
// return the same viewport and subscribe nothing.
func (s *Script) View() *view.Viewport {
	s.companionMu.Lock()
	defer s.companionMu.Unlock()

	if s.view == nil {
		v := view.New()
		s.OnTick(func(*Thread) error {
			v.Draw()
			return nil
		})
		s.OnKeyUp(func(_ *Thread, ev KeyEvent) error {
			navigate(v, s.keys, ev.Key)
			return nil
		})
		s.view = v
	}
	return s.view
}

// CurrentView returns the viewport if View was ever called, nil otherwise.
// Unlike View it never creates one.
func (s *Script) CurrentView() *view.Viewport {
	s.companionMu.Lock()
	defer s.companionMu.Unlock()
	return s.view
}

func navigate(v *view.Viewport, kb KeyBindings, key Key) {
	switch key {
	case kb.Activate:
		v.HandleActivate()
	case kb.Back:
		v.HandleBack()
	case kb.Left:
		v.HandleChangeItem(false)
	case kb.Right:
		v.HandleChangeItem(true)
	case kb.Up:
		v.HandleChangeSelection(false)
	case kb.Down:
		v.HandleChangeSelection(true)
	}
}

// Settings returns the script's settings file, loading it on first use.
//
// The path is the script's source path with its extension replaced by
// ".yaml". An existing file is loaded; otherwise an empty file bound to the
// path is returned. A load failure is returned and nothing is memoized, so
// a later call retries.
func (s *Script) Settings() (*settings.File, error) {
	s.companionMu.Lock()
	defer s.companionMu.Unlock()

	if s.settings != nil {
		return s.settings, nil
	}

	var source string
	if s.host != nil {
		source = s.host.SourcePath(s)
	}
	if source == "" {
		return nil, fmt.Errorf("script %s: no source path to derive settings from", s.name)
	}

	f, err := settings.Open(settings.PathFor(source))
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", s.name, err)
	}
	s.settings = f
	return f, nil
}
