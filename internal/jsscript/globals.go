package jsscript

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dop251/goja"

	"github.com/roach88/tickhost/internal/view"
)

func (b *Binding) installGlobals() error {
	globals := map[string]any{
		"wait":  b.jsWait,
		"yield": b.jsYield,
		"log":   b.jsLog,
	}
	for name, fn := range globals {
		if err := b.vm.Set(name, fn); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}

	objects := map[string]func() (*goja.Object, error){
		"host":     b.hostObject,
		"settings": b.settingsObject,
		"view":     b.viewObject,
	}
	for name, build := range objects {
		obj, err := build()
		if err != nil {
			return fmt.Errorf("build %s: %w", name, err)
		}
		if err := b.vm.Set(name, obj); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

func (b *Binding) jsWait(call goja.FunctionCall) goja.Value {
	if err := b.th.Wait(millis(call.Argument(0))); err != nil {
		b.waitErr = err
		b.throw(err)
	}
	return goja.Undefined()
}

func (b *Binding) jsYield(goja.FunctionCall) goja.Value {
	if err := b.th.Yield(); err != nil {
		b.waitErr = err
		b.throw(err)
	}
	return goja.Undefined()
}

func (b *Binding) jsLog(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = arg.String()
	}
	slog.Info(strings.Join(parts, " "),
		"script", b.script.Name(),
		"tick", b.script.Ticks(),
	)
	return goja.Undefined()
}

func (b *Binding) hostObject() (*goja.Object, error) {
	s := b.script
	obj := b.vm.NewObject()

	fields := map[string]any{
		"name": s.Name(),
		"id":   s.ID(),
		"tick": func() int64 { return s.Ticks() },
		"interval": func() float64 {
			return float64(s.Interval()) / 1e6
		},
		"setInterval": func(call goja.FunctionCall) goja.Value {
			s.SetInterval(millis(call.Argument(0)))
			return goja.Undefined()
		},
		"running": func() bool { return s.Running() },
	}
	for k, v := range fields {
		if err := obj.Set(k, v); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func (b *Binding) settingsObject() (*goja.Object, error) {
	obj := b.vm.NewObject()

	get := func(call goja.FunctionCall) goja.Value {
		f, err := b.script.Settings()
		if err != nil {
			b.throw(err)
		}
		section := call.Argument(0).String()
		key := call.Argument(1).String()
		v, ok := f.Lookup(section, key)
		if !ok {
			return call.Argument(2)
		}
		return b.vm.ToValue(v)
	}
	set := func(call goja.FunctionCall) goja.Value {
		f, err := b.script.Settings()
		if err != nil {
			b.throw(err)
		}
		f.SetValue(call.Argument(0).String(), call.Argument(1).String(), call.Argument(2).Export())
		return goja.Undefined()
	}
	save := func(goja.FunctionCall) goja.Value {
		f, err := b.script.Settings()
		if err != nil {
			b.throw(err)
		}
		if err := f.Save(); err != nil {
			b.throw(err)
		}
		return goja.Undefined()
	}

	for k, v := range map[string]any{"get": get, "set": set, "save": save} {
		if err := obj.Set(k, v); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// viewObject exposes the viewport. Items are described as objects:
//
//	{button: "Start", onActivate: fn}
//	{toggle: "Sound", on: true, onChange: fn(on)}
//	{choice: "Mode", options: ["a", "b"], index: 0, onChange: fn(index, option)}
//	{number: "Speed", value: 1, min: 0, max: 10, step: 1, onChange: fn(value)}
func (b *Binding) viewObject() (*goja.Object, error) {
	obj := b.vm.NewObject()

	push := func(call goja.FunctionCall) goja.Value {
		title := call.Argument(0).String()
		items, err := b.menuItems(call.Argument(1))
		if err != nil {
			b.throw(err)
		}
		m := view.NewMenu(title, items...)
		if fn, ok := goja.AssertFunction(call.Argument(2)); ok {
			m.OnBack = func() { b.callback(fn) }
		}
		b.script.View().AddMenu(m)
		return goja.Undefined()
	}
	pop := func(goja.FunctionCall) goja.Value {
		return b.vm.ToValue(b.script.View().PopMenu())
	}
	depth := func() int {
		return b.script.View().Depth()
	}

	for k, v := range map[string]any{"push": push, "pop": pop, "depth": depth} {
		if err := obj.Set(k, v); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func (b *Binding) menuItems(v goja.Value) ([]view.Item, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	arr := v.ToObject(b.vm)
	n := int(arr.Get("length").ToInteger())

	items := make([]view.Item, 0, n)
	for i := 0; i < n; i++ {
		def := arr.Get(fmt.Sprint(i)).ToObject(b.vm)
		item, err := b.menuItem(def)
		if err != nil {
			return nil, fmt.Errorf("view item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (b *Binding) menuItem(def *goja.Object) (view.Item, error) {
	onChange, hasChange := goja.AssertFunction(def.Get("onChange"))

	switch {
	case present(def.Get("button")):
		item := &view.Button{Caption: def.Get("button").String()}
		if fn, ok := goja.AssertFunction(def.Get("onActivate")); ok {
			item.OnActivate = func() { b.callback(fn) }
		}
		return item, nil

	case present(def.Get("toggle")):
		item := &view.Toggle{
			Caption: def.Get("toggle").String(),
			On:      present(def.Get("on")) && def.Get("on").ToBoolean(),
		}
		if hasChange {
			item.OnChange = func(on bool) { b.callback(onChange, b.vm.ToValue(on)) }
		}
		return item, nil

	case present(def.Get("choice")):
		var options []string
		if err := b.vm.ExportTo(def.Get("options"), &options); err != nil {
			return nil, fmt.Errorf("choice options: %w", err)
		}
		item := &view.Choice{Caption: def.Get("choice").String(), Options: options}
		if present(def.Get("index")) {
			item.Index = int(def.Get("index").ToInteger())
		}
		if item.Index < 0 || (len(options) > 0 && item.Index >= len(options)) {
			return nil, fmt.Errorf("choice index %d out of range", item.Index)
		}
		if hasChange {
			item.OnChange = func(index int, option string) {
				b.callback(onChange, b.vm.ToValue(index), b.vm.ToValue(option))
			}
		}
		return item, nil

	case present(def.Get("number")):
		item := &view.Number{
			Caption: def.Get("number").String(),
			Value:   intField(def, "value", 0),
			Min:     intField(def, "min", 0),
			Max:     intField(def, "max", 100),
			Step:    intField(def, "step", 1),
		}
		if hasChange {
			item.OnChange = func(value int) { b.callback(onChange, b.vm.ToValue(value)) }
		}
		return item, nil
	}

	return nil, fmt.Errorf("item needs one of button, toggle, choice, number")
}

// callback runs a JS function from a view item. View navigation runs in
// the script's key-up dispatch, so the callback may wait on the dispatch
// thread. Items have no error return, so a failure panics; the key dispatch
// recovers it as a handler fault.
func (b *Binding) callback(fn goja.Callable, args ...goja.Value) {
	if b.th == nil {
		b.th = b.script.Thread()
		b.waitErr = nil
		defer func() {
			b.th = nil
		}()
	}

	if _, err := fn(goja.Undefined(), args...); err != nil {
		if b.waitErr != nil {
			err = b.waitErr
		}
		panic(fmt.Errorf("view callback: %w", err))
	}
}

func present(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

func intField(obj *goja.Object, name string, def int) int {
	v := obj.Get(name)
	if !present(v) {
		return def
	}
	return int(v.ToInteger())
}
