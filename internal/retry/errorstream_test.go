package retry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorStreamFrames(t *testing.T) {
	out, err := ErrorStreamFrames("too many retries")
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "message_start")
	assert.Contains(t, s, "Gateway Error: too many retries")
	assert.Contains(t, s, "message_stop")
}
