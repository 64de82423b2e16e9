package helper

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureScannerBufferAllowsLargeFrames(t *testing.T) {
	t.Parallel()

	// A single line well past bufio.Scanner's 64 KiB default.
	frame := strings.Repeat("x", 512*1024)
	scanner := bufio.NewScanner(strings.NewReader(frame + "\nnext\n"))
	ConfigureScannerBuffer(scanner)

	require.True(t, scanner.Scan())
	assert.Equal(t, frame, scanner.Text())
	require.True(t, scanner.Scan())
	assert.Equal(t, "next", scanner.Text())
	require.NoError(t, scanner.Err())
}

func TestConfigureScannerBufferNilIsNoop(t *testing.T) {
	t.Parallel()
	ConfigureScannerBuffer(nil)
}
