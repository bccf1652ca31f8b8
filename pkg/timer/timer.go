// Package timer provides a background tick dispatcher for repeating and
// one-shot events. The loop wakes at a fixed poll interval, counts down
// every registered entry, and delivers due payloads on an output channel.
// The timer goroutine never touches application state; consumers drain C()
// on their own goroutine.
package timer

import "time"

type entry[T any] struct {
	payload   T
	remaining int
	interval  int
	repeat    bool
}

// Timer dispatches registered payloads at their requested intervals,
// quantized to the poll interval.
type Timer[T any] struct {
	poll     time.Duration
	out      chan T
	register chan entry[T]
	quit     chan struct{}
	done     chan struct{}
}

// New starts a dispatcher waking every poll interval.
func New[T any](poll time.Duration) *Timer[T] {
	t := &Timer[T]{
		poll:     poll,
		out:      make(chan T, 16),
		register: make(chan entry[T], 16),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.loop()
	return t
}

// C returns the channel due payloads are delivered on.
func (t *Timer[T]) C() <-chan T {
	return t.out
}

// Repeat schedules payload for delivery every interval until Stop.
func (t *Timer[T]) Repeat(payload T, every time.Duration) {
	t.add(payload, every, true)
}

// Once schedules payload for a single delivery after the given delay.
func (t *Timer[T]) Once(payload T, after time.Duration) {
	t.add(payload, after, false)
}

func (t *Timer[T]) add(payload T, d time.Duration, repeat bool) {
	ticks := int((d + t.poll - 1) / t.poll)
	if ticks < 1 {
		ticks = 1
	}
	e := entry[T]{payload: payload, remaining: ticks, interval: ticks, repeat: repeat}
	select {
	case t.register <- e:
	case <-t.quit:
	}
}

// Stop shuts the dispatcher down and blocks until the loop goroutine has
// exited. No payloads are delivered after Stop returns.
func (t *Timer[T]) Stop() {
	close(t.quit)
	<-t.done
}

func (t *Timer[T]) loop() {
	defer close(t.done)

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	var entries []entry[T]
	for {
		select {
		case <-t.quit:
			return
		case <-ticker.C:
		}

		// Absorb new registrations before counting down.
		for {
			select {
			case e := <-t.register:
				entries = append(entries, e)
				continue
			default:
			}
			break
		}

		kept := entries[:0]
		for _, e := range entries {
			e.remaining--
			if e.remaining > 0 {
				kept = append(kept, e)
				continue
			}
			select {
			case t.out <- e.payload:
			case <-t.quit:
				return
			}
			if e.repeat {
				e.remaining = e.interval
				kept = append(kept, e)
			}
		}
		entries = kept
	}
}
