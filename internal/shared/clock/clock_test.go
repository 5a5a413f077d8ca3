package clock

import (
	"testing"
	"time"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := Fake(start)
	if !c.Now().Equal(start) {
		t.Fatalf("expected initial time")
	}
	c.Advance(90 * time.Second)
	if got := c.Now().Sub(start); got != 90*time.Second {
		t.Fatalf("unexpected advance: %v", got)
	}
	c.Set(start)
	if !c.Now().Equal(start) {
		t.Fatalf("expected reset time")
	}
}

func TestRealMoves(t *testing.T) {
	c := Real()
	if c.Now().IsZero() {
		t.Fatalf("expected wall clock time")
	}
}
