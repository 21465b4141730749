// Package jsscript lets scripts be written in JavaScript.
//
// A JavaScript script defines any of these top-level functions:
//
//	function init() {}          // once, when bound
//	function tick() {}          // every tick dispatch
//	function onKeyDown(ev) {}   // ev = {key, shift, ctrl, alt}
//	function onKeyUp(ev) {}
//
// and may call the host globals:
//
//	wait(ms)                    // hand control back until ms elapsed
//	yield()                     // hand control back for one driver step
//	log(...args)
//	host.name, host.id, host.tick(), host.interval(), host.setInterval(ms)
//	settings.get(section, key, def), settings.set(section, key, value), settings.save()
//	view.push(title, items), view.pop()
//
// wait and yield are only legal inside tick, onKeyDown and onKeyUp; anywhere
// else they throw. Each bound script owns one goja runtime, touched only by
// the binding goroutine before the script starts and by the script goroutine
// afterwards.
package jsscript

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/dop251/goja"

	"github.com/roach88/tickhost/internal/script"
)

// Source is a compiled JavaScript script, shareable across bindings.
type Source struct {
	Name    string
	program *goja.Program
}

// Compile compiles src. name appears in stack traces.
func Compile(name, src string) (*Source, error) {
	prog, err := goja.Compile(name, src, true)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &Source{Name: name, program: prog}, nil
}

// CompileFile reads and compiles the script at path.
func CompileFile(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return Compile(path, string(data))
}

// Setup binds the source to s. It has the signature of host.Definition.Setup.
func (src *Source) Setup(s *script.Script) error {
	_, err := Bind(s, src)
	return err
}

// Binding connects one goja runtime to one script.
type Binding struct {
	vm     *goja.Runtime
	script *script.Script
	src    *Source

	// th is the thread of the dispatch in progress, nil outside dispatch.
	th *script.Thread
	// waitErr is the last scheduler error thrown into JS by wait/yield, so
	// the dispatch can return it instead of the JS exception wrapping it.
	waitErr error
}

// Bind runs the source's top level and init() in a fresh runtime, then
// subscribes tick, onKeyDown and onKeyUp if the script defines them.
func Bind(s *script.Script, src *Source) (*Binding, error) {
	b := &Binding{
		vm:     goja.New(),
		script: s,
		src:    src,
	}
	b.vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	if err := b.installGlobals(); err != nil {
		return nil, fmt.Errorf("bind %s: %w", src.Name, err)
	}

	if _, err := b.vm.RunProgram(src.program); err != nil {
		return nil, fmt.Errorf("run %s: %w", src.Name, err)
	}

	if fn, ok := b.function("init"); ok {
		if _, err := fn(goja.Undefined()); err != nil {
			return nil, fmt.Errorf("init %s: %w", src.Name, err)
		}
	}

	subscribed := 0
	if fn, ok := b.function("tick"); ok {
		s.OnTick(func(th *script.Thread) error {
			return b.call(th, fn)
		})
		subscribed++
	}
	if fn, ok := b.function("onKeyDown"); ok {
		s.OnKeyDown(func(th *script.Thread, ev script.KeyEvent) error {
			return b.call(th, fn, b.keyValue(ev))
		})
		subscribed++
	}
	if fn, ok := b.function("onKeyUp"); ok {
		s.OnKeyUp(func(th *script.Thread, ev script.KeyEvent) error {
			return b.call(th, fn, b.keyValue(ev))
		})
		subscribed++
	}

	slog.Debug("javascript bound",
		"script", s.Name(),
		"source", src.Name,
		"handlers", subscribed,
	)
	return b, nil
}

// Runtime exposes the goja runtime. Only touch it from the script goroutine.
func (b *Binding) Runtime() *goja.Runtime {
	return b.vm
}

func (b *Binding) function(name string) (goja.Callable, bool) {
	v := b.vm.Get(name)
	if v == nil {
		return nil, false
	}
	return goja.AssertFunction(v)
}

// call runs a JS handler with th as the current thread.
func (b *Binding) call(th *script.Thread, fn goja.Callable, args ...goja.Value) error {
	b.th = th
	b.waitErr = nil
	defer func() {
		b.th = nil
	}()

	if _, err := fn(goja.Undefined(), args...); err != nil {
		if b.waitErr != nil {
			return b.waitErr
		}
		return err
	}
	return nil
}

func (b *Binding) keyValue(ev script.KeyEvent) goja.Value {
	return b.vm.ToValue(map[string]any{
		"key":   string(ev.Key),
		"shift": ev.Shift,
		"ctrl":  ev.Ctrl,
		"alt":   ev.Alt,
	})
}

// throw raises err as a JS exception.
func (b *Binding) throw(err error) {
	panic(b.vm.NewGoError(err))
}

// millis converts a JS millisecond count to a Duration. NaN and negative
// values are zero; Infinity and anything past the int64 range saturate.
func millis(v goja.Value) time.Duration {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	ns := v.ToFloat() * float64(time.Millisecond)
	switch {
	case math.IsNaN(ns) || ns <= 0:
		return 0
	case ns >= math.MaxInt64:
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}
