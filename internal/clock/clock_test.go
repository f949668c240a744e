package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, NewSystem().Now().Location())
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	c := NewManual(start)

	assert.True(t, c.Now().Equal(start))
	assert.Equal(t, time.UTC, c.Now().Location())

	c.Advance(90 * time.Second)
	assert.True(t, c.Now().Equal(start.Add(90*time.Second)))

	later := start.Add(time.Hour)
	c.Set(later)
	assert.True(t, c.Now().Equal(later))
}
