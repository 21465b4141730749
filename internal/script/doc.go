// Package script implements the cooperative scheduler that hosts one unit
// of tick-driven logic on its own goroutine.
//
// ARCHITECTURE:
//
// One Driver, Many Scripts:
// The driver (the host's frame loop) calls Advance on each script once per
// frame. Each script owns a goroutine and a pair of rendezvous signals:
// Advance sets resume and blocks on idle; the script goroutine runs one step
// and sets idle. At most one of {driver, script} is runnable per script at
// any instant.
//
// Iteration:
//  1. Drain queued key events, key-down and key-up handlers in FIFO order
//  2. Dispatch the tick handlers once
//  3. Wait(interval), which is a series of idle/resume handshakes
//
// Cooperative Waiting:
// Thread.Wait(d) never sleeps the goroutine for d. It signals idle, waits
// for the next grant, and repeats until the deadline has passed. A script
// that waits 500ms under a 60 FPS driver performs about 30 handshakes.
//
// Faults:
// Handler errors and panics are caught at the dispatch boundary and sent to
// the Reporter. A key handler fault is non-fatal: draining stops for the
// iteration, the unprocessed events stay queued, and the tick still runs. A
// tick fault is fatal: the script aborts.
//
// Lifecycle:
//
//	idle -> awaiting_first_resume -> running -> aborting -> stopped
//
// The hosting domain starts the goroutine (Run), admits the script (Admit),
// interrupts it (Interrupt) and records the end of teardown (MarkStopped).
package script
