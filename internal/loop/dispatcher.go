package loop

import (
	"context"
	"log"
	"time"
)

// Executor is the scheduling surface the controllers run on.
//
// Post and timer callbacks run on the loop goroutine, one at a time. Go runs blocking work
// off the loop; such work must hand its result back with Post. The cancel func returned by
// After must be called on the loop; once it returns the callback is guaranteed not to run,
// even if the timer already expired and its callback is queued.
type Executor interface {
	Post(fn func())
	Go(fn func())
	After(d time.Duration, fn func()) (cancel func())
}

// Dispatcher is the single-threaded event loop of the agent.
type Dispatcher struct {
	queue chan func()
	done  chan struct{}
}

func New(buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{queue: make(chan func(), buffer), done: make(chan struct{})}
}

// Run processes posted work until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-d.queue:
			d.invoke(fn)
		}
	}
}

func (d *Dispatcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[loop] recovered panic in event handler: %v", r)
		}
	}()
	fn()
}

// Post enqueues fn. It blocks when the queue is full and drops fn once the loop stopped.
func (d *Dispatcher) Post(fn func()) {
	select {
	case d.queue <- fn:
	case <-d.done:
	}
}

func (d *Dispatcher) Go(fn func()) { go fn() }

func (d *Dispatcher) After(dur time.Duration, fn func()) func() {
	cancelled := false
	t := time.AfterFunc(dur, func() {
		d.Post(func() {
			if !cancelled {
				fn()
			}
		})
	})
	return func() {
		cancelled = true
		t.Stop()
	}
}

// Do runs fn on the loop and waits for it to finish.
func (d *Dispatcher) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case d.queue <- func() { defer close(finished); fn() }:
	case <-d.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-d.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}
