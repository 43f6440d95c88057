package loop

import (
	"context"
	"testing"
	"time"
)

func TestDispatcherRunsInOrder(t *testing.T) {
	d := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		d.Post(func() { got = append(got, i) })
	}
	if err := d.Do(ctx, func() {}); err != nil {
		t.Fatalf("do: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order: %v", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
}

func TestDispatcherCancelledTimerNeverRuns(t *testing.T) {
	d := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	fired := false
	_ = d.Do(ctx, func() {
		stop := d.After(5*time.Millisecond, func() { fired = true })
		stop()
	})
	time.Sleep(30 * time.Millisecond)
	var seen bool
	_ = d.Do(ctx, func() { seen = fired })
	if seen {
		t.Fatalf("cancelled timer fired")
	}
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	_ = d.Do(ctx, func() { panic("boom") })
	ok := false
	if err := d.Do(ctx, func() { ok = true }); err != nil {
		t.Fatalf("do after panic: %v", err)
	}
	if !ok {
		t.Fatalf("loop stopped after panic")
	}
}

func TestManualTimersFireInOrder(t *testing.T) {
	m := NewManual()
	var got []string
	m.After(2*time.Second, func() { got = append(got, "b") })
	m.After(1*time.Second, func() { got = append(got, "a") })
	stop := m.After(1500*time.Millisecond, func() { got = append(got, "x") })
	stop()

	m.Advance(time.Second)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected [a], got %v", got)
	}
	m.Advance(5 * time.Second)
	if len(got) != 2 || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
	if m.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", m.Pending())
	}
}
