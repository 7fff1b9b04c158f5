package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_NowAndAdvance(t *testing.T) {
	start := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	c := NewManual(start)

	assert.Equal(t, start, c.Now())
	c.Advance(150 * time.Millisecond)
	assert.Equal(t, start.Add(150*time.Millisecond), c.Now())
	assert.Equal(t, 150*time.Millisecond, c.Since(start))
}

func TestManual_AfterFiresOnlyPastDeadline(t *testing.T) {
	c := NewManual(time.Unix(0, 0))
	ch := c.After(100 * time.Millisecond)

	c.Advance(50 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	c.Advance(50 * time.Millisecond)
	select {
	case got := <-ch:
		assert.Equal(t, time.Unix(0, 0).Add(100*time.Millisecond), got)
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestManual_AfterNonPositiveFiresImmediately(t *testing.T) {
	c := NewManual(time.Unix(10, 0))
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestReal_SinceIsNonNegative(t *testing.T) {
	var c Real
	now := c.Now()
	assert.GreaterOrEqual(t, c.Since(now), time.Duration(0))
}
