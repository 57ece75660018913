package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeIsMonotonic(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)

	first := f.Now()
	second := f.Now()
	assert.Equal(t, start, first)
	assert.True(t, second.After(first))

	f.Advance(time.Hour)
	assert.Equal(t, start.Add(2*time.Second+time.Hour), f.Now())
}

func TestRealIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Real().Now().Location())
}
