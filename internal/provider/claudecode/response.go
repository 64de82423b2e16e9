package claudecode

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/google/uuid"

	"github.com/Laisky/llm-gateway/internal/schema"
	"github.com/Laisky/llm-gateway/internal/stream"
)

// convertResponse drains the upstream /v1/messages SSE body through the
// shared stream pipeline, mirroring claudeweb's response conversion;
// streaming clients get encoded frames as they arrive, non-streaming
// clients get one aggregated JSON object.
func convertResponse(ctx context.Context, body io.Reader, params *schema.CreateMessageParams, cctx *schema.ClaudeContext, w io.Writer) (stream.Result, error) {
	completionID := cctx.CompletionID
	if completionID == "" {
		completionID = "msg_" + uuid.NewString()
	}
	createdUnix := cctx.CreatedUnix
	if createdUnix == 0 {
		createdUnix = time.Now().Unix()
	}

	opt := stream.PipelineOptions{
		APIFormat:     cctx.APIFormat,
		StopSequences: cctx.StopSequences,
		InputTokens:   cctx.EstimatedInput,
		Model:         params.Model,
		CompletionID:  completionID,
		CreatedUnix:   createdUnix,
	}

	if params.Stream {
		return stream.RunPipeline(ctx, body, w, opt)
	}

	res, err := stream.RunPipeline(ctx, body, io.Discard, opt)
	if err != nil {
		return res, err
	}

	if cctx.APIFormat == schema.APIFormatOpenAI {
		completion := stream.BuildOpenAICompletion(
			opt.CompletionID, opt.Model, opt.CreatedUnix,
			res.AggregatedText, res.StopReason, opt.InputTokens, res.OutputTokens,
		)
		enc, err := json.Marshal(completion)
		if err != nil {
			return res, errors.Wrap(err, "marshal openai completion")
		}
		_, err = w.Write(enc)
		return res, err
	}

	claudeResp := schema.CreateMessageResponse{
		ID:           opt.CompletionID,
		Type:         "message",
		Role:         schema.RoleAssistant,
		Model:        opt.Model,
		Content:      []schema.ContentBlock{{Type: "text", Text: res.AggregatedText}},
		StopReason:   res.StopReason,
		StopSequence: res.StopSequence,
		Usage: schema.Usage{
			InputTokens:  opt.InputTokens,
			OutputTokens: res.OutputTokens,
		},
	}
	enc, err := json.Marshal(claudeResp)
	if err != nil {
		return res, errors.Wrap(err, "marshal claude completion")
	}
	_, err = w.Write(enc)
	return res, err
}
