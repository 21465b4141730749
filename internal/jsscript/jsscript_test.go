package jsscript

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickhost/internal/script"
	"github.com/roach88/tickhost/internal/testutil"
)

type jsFixture struct {
	s     *script.Script
	b     *Binding
	host  *testutil.FakeHost
	rep   *testutil.RecordingReporter
	clock *testutil.ManualClock
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// bindJS compiles src, binds it to a fresh script and admits it.
// configure runs before binding.
func bindJS(t *testing.T, src string, configure ...func(*jsFixture)) *jsFixture {
	t.Helper()

	f := &jsFixture{
		host:  testutil.NewFakeHost(),
		rep:   &testutil.RecordingReporter{},
		clock: testutil.NewManualClock(time.Time{}),
	}
	f.s = script.New(f.host, "js", script.WithReporter(f.rep), script.WithClock(f.clock))
	for _, fn := range configure {
		fn(f)
	}

	source, err := Compile("test.js", src)
	require.NoError(t, err)
	f.b, err = Bind(f.s, source)
	require.NoError(t, err)

	go f.s.Run()
	t.Cleanup(func() {
		f.s.Interrupt()
		<-f.s.Done()
	})
	require.NoError(t, f.s.Admit(testCtx(t)))
	return f
}

func (f *jsFixture) advance(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.s.Advance(testCtx(t)))
	}
}

func (f *jsFixture) global(name string) any {
	return f.b.Runtime().Get(name).Export()
}

func TestBind_TickAndInit(t *testing.T) {
	f := bindJS(t, `
		var inits = 0;
		var ticks = 0;
		function init() { inits++; }
		function tick() { ticks++; }
	`)

	f.advance(t, 3)

	assert.EqualValues(t, 1, f.global("inits"))
	assert.EqualValues(t, 3, f.global("ticks"))
	assert.Equal(t, int64(3), f.s.Ticks())
}

func TestBind_WaitFollowsClock(t *testing.T) {
	f := bindJS(t, `
		var before = 0;
		var after = 0;
		function tick() {
			before++;
			wait(100);
			after++;
		}
	`)

	f.advance(t, 1)
	assert.EqualValues(t, 1, f.global("before"))
	assert.EqualValues(t, 0, f.global("after"))

	f.advance(t, 2)
	assert.EqualValues(t, 0, f.global("after"), "clock has not moved")

	f.clock.Advance(100 * time.Millisecond)
	f.advance(t, 1)
	assert.EqualValues(t, 1, f.global("after"))
	assert.EqualValues(t, 1, f.global("before"), "the next tick needs another step")
}

func TestBind_YieldIsOneStep(t *testing.T) {
	f := bindJS(t, `
		var steps = [];
		function tick() {
			steps.push("a");
			yield();
			steps.push("b");
		}
	`)

	f.advance(t, 1)
	assert.Equal(t, []any{"a"}, f.global("steps"))
	f.advance(t, 1)
	assert.Equal(t, []any{"a", "b"}, f.global("steps"))
}

func TestBind_WaitOutsideDispatchIsIllegal(t *testing.T) {
	s := script.New(testutil.NewFakeHost(), "js")
	source, err := Compile("top.js", `wait(10);`)
	require.NoError(t, err)

	_, err = Bind(s, source)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ILLEGAL_CONTEXT")
}

func TestBind_TickThrowIsFatal(t *testing.T) {
	f := bindJS(t, `function tick() { throw new Error("engine stalled"); }`)

	f.advance(t, 1)

	require.Eventually(t, func() bool {
		return f.s.State() == script.StateStopped
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.host.Aborts(f.s))
	require.Equal(t, 1, f.rep.Count(true))
	assert.Contains(t, f.rep.Faults()[0].Err.Error(), "engine stalled")
}

func TestBind_KeyHandlers(t *testing.T) {
	f := bindJS(t, `
		var seen = [];
		function onKeyDown(ev) { seen.push("down:" + ev.key + (ev.shift ? "+shift" : "")); }
		function onKeyUp(ev) { seen.push("up:" + ev.key); }
	`)

	f.s.KeyDown(script.KeyEvent{Key: "a", Shift: true})
	f.s.KeyUp(script.KeyEvent{Key: "a"})
	f.advance(t, 1)

	assert.Equal(t, []any{"down:a+shift", "up:a"}, f.global("seen"))
}

func TestBind_KeyHandlerThrowIsNotFatal(t *testing.T) {
	f := bindJS(t, `
		var ticks = 0;
		function onKeyDown(ev) { if (ev.key === "x") throw new Error("no x"); }
		function tick() { ticks++; }
	`)

	f.s.KeyDown(script.KeyEvent{Key: "x"})
	f.advance(t, 1)

	assert.True(t, f.s.Running())
	assert.Equal(t, 1, f.rep.Count(false))
	assert.EqualValues(t, 1, f.global("ticks"))
}

func TestBind_AbortWhileWaiting(t *testing.T) {
	f := bindJS(t, `
		var caught = "";
		function tick() {
			try {
				wait(60000);
			} catch (e) {
				caught = String(e);
				throw e;
			}
		}
	`)

	f.advance(t, 1)
	f.s.Abort()

	require.Eventually(t, func() bool {
		return f.s.State() == script.StateStopped
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, f.rep.Faults(), "an interrupted wait is not a fault")
	assert.Contains(t, f.global("caught"), "ABORTED")
}

func TestBind_HostObject(t *testing.T) {
	f := bindJS(t, `
		var name = host.name;
		host.setInterval(250);
		var interval = host.interval();
		var seenTick = 0;
		function tick() { seenTick = host.tick(); }
	`)

	assert.Equal(t, "js", f.global("name"))
	assert.EqualValues(t, 250, f.global("interval"))
	assert.Equal(t, 250*time.Millisecond, f.s.Interval())

	f.advance(t, 1)
	assert.EqualValues(t, 1, f.global("seenTick"))
}

func TestBind_Settings(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "bot.js")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bot.yaml"), []byte("bot:\n  speed: \"4\"\n"), 0o644))

	f := bindJS(t, `
		var speed = settings.get("bot", "speed", "1");
		var missing = settings.get("bot", "nope", "fallback");
		settings.set("bot", "runs", 2);
		settings.save();
	`, func(f *jsFixture) {
		f.host.SetSource(f.s, source)
	})

	assert.Equal(t, "4", f.global("speed"))
	assert.Equal(t, "fallback", f.global("missing"))

	data, err := os.ReadFile(filepath.Join(dir, "bot.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "runs")
}

func TestBind_ViewMenu(t *testing.T) {
	f := bindJS(t, `
		var started = false;
		var sound = null;
		function init() {
			view.push("Main", [
				{button: "Start", onActivate: function() { started = true; }},
				{toggle: "Sound", on: true, onChange: function(on) { sound = on; }},
			]);
		}
	`)

	f.advance(t, 1)
	v := f.s.CurrentView()
	require.NotNil(t, v)
	assert.Contains(t, v.Frame(), "Start")
	assert.Contains(t, v.Frame(), "Sound: on")

	f.s.KeyUp(script.KeyEvent{Key: "enter"})
	f.s.KeyUp(script.KeyEvent{Key: "down"})
	f.s.KeyUp(script.KeyEvent{Key: "right"})
	f.advance(t, 1)

	assert.Equal(t, true, f.global("started"))
	assert.Equal(t, false, f.global("sound"))
	assert.Contains(t, v.Frame(), "Sound: off")
}

func TestBind_ViewCallbackMayYield(t *testing.T) {
	f := bindJS(t, `
		var started = false;
		function init() {
			view.push("Main", [
				{button: "Start", onActivate: function() { yield(); started = true; }},
			]);
		}
	`)

	f.advance(t, 1)
	f.s.KeyUp(script.KeyEvent{Key: "enter"})

	f.advance(t, 1)
	assert.Equal(t, false, f.global("started"), "the callback is parked in yield")
	assert.Equal(t, int64(1), f.s.Ticks())

	f.advance(t, 1)
	assert.Equal(t, true, f.global("started"))
	assert.Equal(t, int64(2), f.s.Ticks())
	assert.Empty(t, f.rep.Faults())
}

func TestMillis(t *testing.T) {
	vm := goja.New()
	tests := []struct {
		name string
		in   goja.Value
		want time.Duration
	}{
		{"undefined", goja.Undefined(), 0},
		{"null", goja.Null(), 0},
		{"fraction", vm.ToValue(1.5), 1500 * time.Microsecond},
		{"negative", vm.ToValue(-5), 0},
		{"NaN", vm.ToValue(math.NaN()), 0},
		{"Infinity", vm.ToValue(math.Inf(1)), time.Duration(math.MaxInt64)},
		{"-Infinity", vm.ToValue(math.Inf(-1)), 0},
		{"past int64", vm.ToValue(1e300), time.Duration(math.MaxInt64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, millis(tt.in))
		})
	}
}

func TestBind_ViewBadItem(t *testing.T) {
	s := script.New(testutil.NewFakeHost(), "js")
	source, err := Compile("bad.js", `view.push("Main", [{label: "what"}]);`)
	require.NoError(t, err)

	_, err = Bind(s, source)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "button, toggle, choice, number")
}

func TestCompile_SyntaxError(t *testing.T) {
	_, err := Compile("broken.js", `function tick( {`)
	assert.Error(t, err)
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ok.js")
	require.NoError(t, os.WriteFile(path, []byte(`function tick() {}`), 0o644))

	src, err := CompileFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, src.Name)

	_, err = CompileFile(filepath.Join(t.TempDir(), "missing.js"))
	assert.Error(t, err)
}
