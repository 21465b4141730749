package script

import "sync"

// TickHandler runs once per scheduler iteration.
type TickHandler func(th *Thread) error

// KeyHandler runs once per dequeued key event.
type KeyHandler func(th *Thread, ev KeyEvent) error

type dispatchPoint int

const (
	pointTick dispatchPoint = iota + 1
	pointKeyDown
	pointKeyUp
)

// Subscription identifies a registered handler for Unsubscribe.
type Subscription struct {
	point dispatchPoint
	id    uint64
}

type tickEntry struct {
	id uint64
	fn TickHandler
}

type keyEntry struct {
	id uint64
	fn KeyHandler
}

// dispatchTable holds handlers in registration order.
//
// Subscribing and unsubscribing are safe from any goroutine. Dispatch works
// on a snapshot, so a handler registered during a dispatch first runs on the
// next one.
type dispatchTable struct {
	mu   sync.Mutex
	next uint64
	tick []tickEntry
	down []keyEntry
	up   []keyEntry
}

func (t *dispatchTable) addTick(fn TickHandler) Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.tick = append(t.tick, tickEntry{id: t.next, fn: fn})
	return Subscription{point: pointTick, id: t.next}
}

func (t *dispatchTable) addKey(point dispatchPoint, fn KeyHandler) Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	entry := keyEntry{id: t.next, fn: fn}
	if point == pointKeyDown {
		t.down = append(t.down, entry)
	} else {
		t.up = append(t.up, entry)
	}
	return Subscription{point: point, id: t.next}
}

func (t *dispatchTable) remove(sub Subscription) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch sub.point {
	case pointTick:
		for i, e := range t.tick {
			if e.id == sub.id {
				t.tick = append(t.tick[:i:i], t.tick[i+1:]...)
				return true
			}
		}
	case pointKeyDown:
		return removeKey(&t.down, sub.id)
	case pointKeyUp:
		return removeKey(&t.up, sub.id)
	}
	return false
}

func removeKey(list *[]keyEntry, id uint64) bool {
	for i, e := range *list {
		if e.id == id {
			*list = append((*list)[:i:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}

func (t *dispatchTable) tickHandlers() []TickHandler {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TickHandler, len(t.tick))
	for i, e := range t.tick {
		out[i] = e.fn
	}
	return out
}

func (t *dispatchTable) keyHandlers(down bool) []KeyHandler {
	t.mu.Lock()
	defer t.mu.Unlock()
	src := t.up
	if down {
		src = t.down
	}
	out := make([]KeyHandler, len(src))
	for i, e := range src {
		out[i] = e.fn
	}
	return out
}
