package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStopTruncatorScenario: upstream emits
// "Hello ", "wo", "rld!" with stop_sequences=["world"]; the client should
// see a single truncated delta of "Hello world" and nothing from "!".
func TestStopTruncatorScenario(t *testing.T) {
	trunc := NewStopTruncator([]string{"world"})
	require.True(t, trunc.Active())

	emit, matched, _ := trunc.Feed("Hello ")
	assert.Equal(t, "Hello ", emit)
	assert.False(t, matched)

	emit, matched, _ = trunc.Feed("wo")
	assert.Equal(t, "wo", emit)
	assert.False(t, matched)

	emit, matched, seq := trunc.Feed("rld!")
	assert.True(t, matched)
	assert.Equal(t, "rld", emit)
	// The match began two deltas ago; the full sequence is still reported.
	assert.Equal(t, "world", seq)
	assert.True(t, trunc.Done())
}

func TestStopTruncatorMidDeltaStart(t *testing.T) {
	// A stop sequence that begins mid-delta after an earlier failed partial
	// match elsewhere must still be found (the multi-cursor redesign).
	trunc := NewStopTruncator([]string{"cd"})
	emit, matched, seq := trunc.Feed("abcd")
	assert.True(t, matched)
	assert.Equal(t, "abcd", emit)
	assert.Equal(t, "cd", seq)
}

func TestStopTruncatorMatchSpansThreeDeltas(t *testing.T) {
	trunc := NewStopTruncator([]string{"STOP"})

	_, matched, _ := trunc.Feed("S")
	assert.False(t, matched)
	_, matched, _ = trunc.Feed("TO")
	assert.False(t, matched)
	emit, matched, seq := trunc.Feed("P and more")
	assert.True(t, matched)
	assert.Equal(t, "P", emit)
	assert.Equal(t, "STOP", seq)
}

func TestStopTruncatorNoSequences(t *testing.T) {
	trunc := NewStopTruncator(nil)
	assert.False(t, trunc.Active())
	emit, matched, _ := trunc.Feed("anything")
	assert.Equal(t, "anything", emit)
	assert.False(t, matched)
}
