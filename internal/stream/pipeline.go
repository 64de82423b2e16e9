package stream

import (
	"context"
	"io"

	"github.com/Laisky/llm-gateway/internal/schema"
)

// PipelineOptions configures one request's response transform, gathered
// from the preprocessor's ClaudeContext plus the
// provider's own model/id bookkeeping.
type PipelineOptions struct {
	APIFormat     schema.APIFormat
	StopSequences []string
	InputTokens   int
	Model         string
	CompletionID  string
	CreatedUnix   int64
}

// Result summarizes what the pipeline observed, for callers that need
// post-hoc accounting (usage logging, cookie usage bucketing) after the
// stream has finished.
type Result struct {
	AggregatedText string
	OutputTokens   int
	StopReason     *schema.StopReason
	StopSequence   *string
	Truncated      bool
}

// RunPipeline drains a Claude-schema SSE event stream from r, applies
// stop-sequence truncation and, for OpenAI-format clients,
// rewrites each event into an OpenAI chat-completion-chunk frame, writing
// encoded frames to w as they arrive. It stops forwarding (but keeps
// draining r to let the provider's cleanup/cookie-return logic run) once a
// stop sequence truncates the stream or the upstream sends message_stop.
//
// This is the single point where the layered "byte stream → SSE event
// stream → semantic event stream → stop-truncated stream → (optional)
// OpenAI-shaped stream → client byte stream" chain is wired
// together; each layer above is a separate, independently testable function.
func RunPipeline(ctx context.Context, r io.Reader, w io.Writer, opt PipelineOptions) (Result, error) {
	dec := NewSSEDecoder(r)
	trunc := NewStopTruncator(opt.StopSequences)

	var res Result
	firstMessageStart := true

	for {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		ev, err := dec.Next()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}

		switch ev.Type {
		case schema.EventMessageStart:
			if ev.Message != nil && firstMessageStart {
				InjectUsageIntoMessageStart(ev.Message, opt.InputTokens)
				firstMessageStart = false
			}
			if err := forward(w, ev, opt.APIFormat, opt); err != nil {
				return res, err
			}

		case schema.EventContentBlockDelta:
			delta, derr := DecodeDelta(ev.Delta)
			if derr != nil {
				if err := forward(w, ev, opt.APIFormat, opt); err != nil {
					return res, err
				}
				continue
			}
			// Only text deltas are subject to stop-sequence truncation;
			// thinking/json/signature deltas pass through untouched.
			if trunc.Active() && delta.DeltaType == "text_delta" {
				idx := 0
				if ev.Index != nil {
					idx = *ev.Index
				}
				events, emit, stopped, seq := ApplyStopTruncation(trunc, idx, delta)
				// Aggregate what was actually forwarded, not the raw
				// delta: text past a matched stop sequence is dropped.
				res.AggregatedText += emit
				res.OutputTokens += estimateTokens(emit)
				for _, e := range events {
					if err := forward(w, e, opt.APIFormat, opt); err != nil {
						return res, err
					}
				}
				if stopped {
					res.Truncated = true
					stopReason := schema.StopSequenceStop
					res.StopReason = &stopReason
					res.StopSequence = &seq
					return res, nil
				}
				continue
			}

			if delta.DeltaType == "text_delta" {
				res.AggregatedText += delta.Text
				res.OutputTokens += estimateTokens(delta.Text)
			}

			if err := forward(w, ev, opt.APIFormat, opt); err != nil {
				return res, err
			}

		case schema.EventMessageDelta:
			md, derr := DecodeMessageDelta(ev.Delta)
			if derr == nil {
				res.StopReason = md.StopReason
				res.StopSequence = md.StopSequence
				var usage schema.StreamUsage
				InjectUsageIntoMessageDelta(&usage, opt.InputTokens, res.OutputTokens)
				ev.Usage = &usage
			}
			if err := forward(w, ev, opt.APIFormat, opt); err != nil {
				return res, err
			}

		case schema.EventMessageStop:
			if err := forward(w, ev, opt.APIFormat, opt); err != nil {
				return res, err
			}
			return res, nil

		default:
			if err := forward(w, ev, opt.APIFormat, opt); err != nil {
				return res, err
			}
		}
	}
}

// forward encodes ev in the client's wire format and writes it to w. For
// OpenAI-format clients, only content_block_delta/message_stop produce
// output (all other events are dropped); Claude
// clients receive every event verbatim.
func forward(w io.Writer, ev schema.StreamEvent, format schema.APIFormat, opt PipelineOptions) error {
	if format == schema.APIFormatClaude {
		buf, err := EncodeSSE(ev)
		if err != nil {
			return err
		}
		_, err = w.Write(buf)
		return err
	}

	switch ev.Type {
	case schema.EventContentBlockDelta:
		delta, err := DecodeDelta(ev.Delta)
		if err != nil {
			return nil
		}
		oaiDelta, ok := RewriteDeltaToOpenAI(delta)
		if !ok {
			return nil
		}
		chunk := OpenAIChunk{
			ID:      opt.CompletionID,
			Object:  "chat.completion.chunk",
			Created: opt.CreatedUnix,
			Model:   opt.Model,
			Choices: []OpenAIChunkChoice{{Index: 0, Delta: oaiDelta}},
		}
		buf, err := EncodeOpenAIChunk(chunk)
		if err != nil {
			return err
		}
		_, err = w.Write(buf)
		return err

	case schema.EventMessageDelta:
		md, err := DecodeMessageDelta(ev.Delta)
		if err != nil {
			return nil
		}
		finish := MapFinishReason(md.StopReason)
		if finish == nil {
			return nil
		}
		var usage *OpenAIUsage
		if ev.Usage != nil {
			usage = &OpenAIUsage{
				PromptTokens:     ev.Usage.InputTokens,
				CompletionTokens: ev.Usage.OutputTokens,
				TotalTokens:      ev.Usage.InputTokens + ev.Usage.OutputTokens,
			}
		}
		chunk := OpenAIChunk{
			ID:      opt.CompletionID,
			Object:  "chat.completion.chunk",
			Created: opt.CreatedUnix,
			Model:   opt.Model,
			Choices: []OpenAIChunkChoice{{Index: 0, Delta: OpenAIDelta{}, FinishReason: finish}},
			Usage:   usage,
		}
		buf, err := EncodeOpenAIChunk(chunk)
		if err != nil {
			return err
		}
		_, err = w.Write(buf)
		return err

	case schema.EventMessageStop:
		_, err := io.WriteString(w, OpenAIDoneFrame)
		return err

	default:
		return nil
	}
}

func estimateTokens(s string) int {
	// Output-token accounting during streaming uses a coarse whitespace
	// estimate; providers overwrite this with the upstream-reported count on
	// non-stream responses where one is available.
	if s == "" {
		return 0
	}
	n := 1
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' {
			n++
		}
	}
	return n
}
