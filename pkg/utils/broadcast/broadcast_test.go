package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		require.FailNow(t, "timeout waiting for message")
	}
	var zero T
	return zero
}

func TestBroadcastFanOut(t *testing.T) {
	source := make(chan int)
	b := NewBroadcastServer("test", "fanout", source)
	defer b.Close()

	s1 := b.Subscribe()
	s2 := b.Subscribe()

	go func() { source <- 42 }()
	assert.Equal(t, 42, receive(t, s1))
	assert.Equal(t, 42, receive(t, s2))
}

func TestBroadcastCancelSubscription(t *testing.T) {
	source := make(chan int)
	b := NewBroadcastServer("test", "cancel", source)
	defer b.Close()

	s1 := b.Subscribe()
	b.CancelSubscription(s1)
	_, ok := <-s1
	assert.False(t, ok)
}

func TestBroadcastCloseClosesListeners(t *testing.T) {
	source := make(chan int)
	b := NewBroadcastServer("test", "close", source)
	s1 := b.Subscribe()
	b.Close()
	select {
	case _, ok := <-s1:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("listener not closed")
	}
}
