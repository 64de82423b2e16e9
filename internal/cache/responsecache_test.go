package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResponseCache_PushPopRoundTrip(t *testing.T) {
	c := NewResponseCache(10, time.Minute)

	c.Push(42, RecordedStream{[]byte("hello")})
	got, ok := c.Pop(42)
	assert.True(t, ok)
	assert.Equal(t, RecordedStream{[]byte("hello")}, got)

	_, ok = c.Pop(42)
	assert.False(t, ok, "entry must be removed once its stream list is drained")
}

func TestResponseCache_MissOnUnknownFingerprint(t *testing.T) {
	c := NewResponseCache(10, time.Minute)
	_, ok := c.Pop(1)
	assert.False(t, ok)
}

func TestResponseCache_MultipleStreamsLIFO(t *testing.T) {
	c := NewResponseCache(10, time.Minute)
	c.Push(1, RecordedStream{[]byte("a")})
	c.Push(1, RecordedStream{[]byte("b")})

	got1, ok := c.Pop(1)
	assert.True(t, ok)
	assert.Equal(t, RecordedStream{[]byte("b")}, got1)

	got2, ok := c.Pop(1)
	assert.True(t, ok)
	assert.Equal(t, RecordedStream{[]byte("a")}, got2)

	_, ok = c.Pop(1)
	assert.False(t, ok)
}

func TestResponseCache_TTLExpiry(t *testing.T) {
	c := NewResponseCache(10, time.Millisecond)
	c.Push(1, RecordedStream{[]byte("a")})
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Pop(1)
	assert.False(t, ok, "expired entries must not be served")
}

func TestResponseCache_CapacityEvictsLRU(t *testing.T) {
	c := NewResponseCache(2, time.Minute)
	c.Push(1, RecordedStream{[]byte("a")})
	c.Push(2, RecordedStream{[]byte("b")})
	c.Push(3, RecordedStream{[]byte("c")}) // evicts fingerprint 1 (least recently touched)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Pop(1)
	assert.False(t, ok)
	_, ok = c.Pop(2)
	assert.True(t, ok)
	_, ok = c.Pop(3)
	assert.True(t, ok)
}
