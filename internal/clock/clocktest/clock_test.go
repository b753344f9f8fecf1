package clocktest

import (
	"testing"
	"time"
)

func TestAdvanceFiresDueTimersInOrder(t *testing.T) {
	c := New(time.Unix(0, 0))
	var fired []string
	c.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "late") })
	c.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "early") })
	stopped := c.AfterFunc(200*time.Millisecond, func() { fired = append(fired, "stopped") })

	if !stopped.Stop() {
		t.Fatalf("Stop() should report true for a pending timer")
	}

	c.Advance(150 * time.Millisecond)
	if len(fired) != 1 || fired[0] != "early" {
		t.Fatalf("after 150ms fired = %v", fired)
	}

	c.Advance(time.Second)
	if len(fired) != 2 || fired[1] != "late" {
		t.Fatalf("after 1150ms fired = %v", fired)
	}
	if c.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", c.Pending())
	}
	if got := c.Now().Sub(time.Unix(0, 0)); got != 1150*time.Millisecond {
		t.Fatalf("clock at %v, want 1.15s", got)
	}
}

func TestTimerScheduledFromCallback(t *testing.T) {
	c := New(time.Unix(0, 0))
	count := 0
	c.AfterFunc(10*time.Millisecond, func() {
		count++
		c.AfterFunc(10*time.Millisecond, func() { count++ })
	})

	c.Advance(25 * time.Millisecond)
	if count != 2 {
		t.Fatalf("expected chained timers to fire, count = %d", count)
	}
}
