package preprocess

import (
	"math"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Laisky/llm-gateway/common/logger"
)

// approximateTokenRatio backs the fallback estimate
// fallback (relay/adaptor/openai's getTokenNum): an offline estimate used
// when the tiktoken BPE vocabulary cannot be loaded.
const approximateTokenRatio = 0.38

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

func o200kEncoder() *tiktoken.Tiktoken {
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("o200k_base")
		if err != nil {
			logger.Logger.Warn("o200k_base tiktoken vocabulary unavailable, falling back to approximate token counts")
			encoder = nil
			return
		}
		encoder = enc
	})
	return encoder
}

// CountTokens estimates the input-token count for text using the o200k-base
// BPE vocabulary, falling back to a length-based approximation when the
// vocabulary files cannot be loaded (offline dev/test).
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := o200kEncoder(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return int(math.Ceil(float64(len(text)) * approximateTokenRatio))
}
