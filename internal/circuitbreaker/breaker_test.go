package circuitbreaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_ClosedUntilThreshold(t *testing.T) {
	b := New(3, 100*time.Millisecond)

	assert.True(t, b.Allow("db"), "fresh key starts closed")

	b.RecordFailure("db")
	b.RecordFailure("db")
	assert.True(t, b.Allow("db"), "below threshold stays closed")

	b.RecordFailure("db")
	assert.False(t, b.Allow("db"), "threshold trips the circuit")
	assert.Equal(t, StateOpen, b.State("db"))
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	b.RecordFailure("db")
	b.RecordFailure("db")
	require.False(t, b.Allow("db"))

	time.Sleep(60 * time.Millisecond)

	assert.True(t, b.Allow("db"), "one probe allowed after open duration")
	assert.Equal(t, StateHalfOpen, b.State("db"))
	assert.False(t, b.Allow("db"), "second request rejected while probing")
}

func TestBreaker_ProbeOutcome(t *testing.T) {
	t.Run("success closes", func(t *testing.T) {
		b := New(2, 50*time.Millisecond)
		b.RecordFailure("db")
		b.RecordFailure("db")
		time.Sleep(60 * time.Millisecond)
		b.Allow("db")

		b.RecordSuccess("db")
		assert.Equal(t, StateClosed, b.State("db"))
		assert.True(t, b.Allow("db"))
	})

	t.Run("failure reopens", func(t *testing.T) {
		b := New(2, 50*time.Millisecond)
		b.RecordFailure("db")
		b.RecordFailure("db")
		time.Sleep(60 * time.Millisecond)
		b.Allow("db")

		b.RecordFailure("db")
		assert.Equal(t, StateOpen, b.State("db"))
	})
}

func TestBreaker_SuccessResetsCounter(t *testing.T) {
	b := New(3, 100*time.Millisecond)

	b.RecordFailure("db")
	b.RecordFailure("db")
	b.RecordSuccess("db")
	b.RecordFailure("db")

	assert.True(t, b.Allow("db"), "counter was reset by the success")
}

func TestBreaker_KeysAreIndependent(t *testing.T) {
	b := New(2, 100*time.Millisecond)

	b.RecordFailure("redis")
	b.RecordFailure("redis")

	assert.False(t, b.Allow("redis"))
	assert.True(t, b.Allow("postgres"))
	assert.Equal(t, StateClosed, b.State("postgres"))
}

func TestBreaker_OnTransition(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	var mu sync.Mutex
	var got []State
	b.OnTransition(func(key string, from, to State) {
		mu.Lock()
		got = append(got, to)
		mu.Unlock()
	})

	b.RecordFailure("db")
	b.RecordFailure("db")

	// Callback runs on its own goroutine.
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, StateOpen, got[0])
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
