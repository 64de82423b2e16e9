package claudeweb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
	"github.com/Laisky/llm-gateway/internal/gwerror"
)

func publishPadding(t *testing.T, corpus string, target int) {
	t.Helper()
	old := gatewayconfig.Current()
	t.Cleanup(func() { gatewayconfig.Publish(old) })

	cfg := *old
	cfg.PadTxt = corpus
	cfg.PadTxtLen = target
	gatewayconfig.Publish(&cfg)
}

func TestApplyPaddingDisabledByDefault(t *testing.T) {
	publishPadding(t, "", 0)

	out, err := applyPadding("hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestApplyPaddingReachesTargetLength(t *testing.T) {
	publishPadding(t, strings.Repeat("lorem ipsum dolor sit amet ", 8), 64)

	out, err := applyPadding("hi")
	require.NoError(t, err)
	assert.Len(t, out, 64)
	assert.True(t, strings.HasSuffix(out, "hi"))
}

func TestApplyPaddingLongEnoughPromptUntouched(t *testing.T) {
	publishPadding(t, "corpus", 8)

	long := strings.Repeat("x", 32)
	out, err := applyPadding(long)
	require.NoError(t, err)
	assert.Equal(t, long, out)
}

func TestApplyPaddingCorpusTooShort(t *testing.T) {
	publishPadding(t, "tiny", 64)

	_, err := applyPadding("hi")
	assert.ErrorIs(t, err, gwerror.ErrPadtxtTooShort)
}
