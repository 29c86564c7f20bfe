package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonotonicClock_NeverGoesBack(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{
		base.Add(1500 * time.Microsecond),
		base, // wall clock stepped back
		base.Add(3 * time.Millisecond),
	}
	i := 0
	c := NewMonotonicClock(func() time.Time { t := ticks[i]; i++; return t }, time.Millisecond)

	first := c.Next()
	second := c.Next()
	third := c.Next()

	assert.Equal(t, base.Add(time.Millisecond), first)
	assert.Equal(t, first, second)
	assert.Equal(t, base.Add(3*time.Millisecond), third)
	assert.Equal(t, time.UTC, third.Location())
}
