// ABOUTME: Tests for the typing notice debouncer
// ABOUTME: Uses an injected clock to walk the debounce window

package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypingDebouncer_LeadingEdge(t *testing.T) {
	d := newTypingDebouncer(time.Second)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	assert.True(t, d.allow("c1", "u1"), "first signal passes")
	assert.False(t, d.allow("c1", "u1"), "repeat inside window drops")

	now = now.Add(500 * time.Millisecond)
	assert.False(t, d.allow("c1", "u1"), "still inside window")

	now = now.Add(600 * time.Millisecond)
	assert.True(t, d.allow("c1", "u1"), "window elapsed")
}

func TestTypingDebouncer_ClearReopensWindow(t *testing.T) {
	d := newTypingDebouncer(time.Second)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	assert.True(t, d.allow("c1", "u1"))
	assert.False(t, d.allow("c1", "u1"))

	d.clear("c1", "u1")
	assert.True(t, d.allow("c1", "u1"), "clear reopens the window")
}

func TestTypingDebouncer_IndependentKeys(t *testing.T) {
	d := newTypingDebouncer(time.Second)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	assert.True(t, d.allow("c1", "u1"))
	assert.True(t, d.allow("c1", "u2"), "other user unaffected")
	assert.True(t, d.allow("c2", "u1"), "other chat unaffected")
	assert.False(t, d.allow("c1", "u1"))
}
