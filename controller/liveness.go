package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Laisky/llm-gateway/common/tracing"
	"github.com/Laisky/llm-gateway/internal/schema"
	"github.com/Laisky/llm-gateway/internal/stream"
)

// livenessText is the canned reply to the single-message "Hi" health check
// the preprocessor recognizes as gwerror.ErrTestMessage.
// No upstream call is made.
const livenessText = "Claude Reverse Proxy is working, please send a real message."

// writeLivenessReply answers a recognized liveness ping in whichever wire
// format the route speaks, without touching any credential pool.
func writeLivenessReply(c *gin.Context, format schema.APIFormat, model string) {
	if format == schema.APIFormatOpenAI {
		completion := stream.BuildOpenAICompletion(
			tracing.GenerateChatCompletionID(c), model, time.Now().Unix(),
			livenessText, ptr(schema.StopEndTurn), 0, 0,
		)
		c.JSON(http.StatusOK, completion)
		return
	}

	c.JSON(http.StatusOK, schema.CreateMessageResponse{
		ID:         "msg_" + tracing.GenerateChatCompletionID(c),
		Type:       "message",
		Role:       schema.RoleAssistant,
		Model:      model,
		Content:    []schema.ContentBlock{{Type: "text", Text: livenessText}},
		StopReason: ptr(schema.StopEndTurn),
	})
}

func ptr[T any](v T) *T { return &v }

func nowUnix() int64 { return time.Now().Unix() }
