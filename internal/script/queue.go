package script

import "sync"

// queuedEvent is one entry of the pending event queue.
type queuedEvent struct {
	Down  bool
	Event KeyEvent
}

// eventQueue is a thread-safe FIFO of key events.
//
// The driver enqueues from its own goroutine at any time; only the script
// goroutine dequeues. The queue is unbounded: the host enqueues discrete
// input events, not a high-rate stream.
type eventQueue struct {
	mu     sync.Mutex
	events []queuedEvent
	closed bool
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]queuedEvent, 0, 16),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e queuedEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)
	return true
}

// TryDequeue removes the front event without blocking.
// Returns (queuedEvent{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (queuedEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return queuedEvent{}, false
	}

	e := q.events[0]
	q.events[0] = queuedEvent{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close rejects further enqueues. Already queued events stay drainable.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
