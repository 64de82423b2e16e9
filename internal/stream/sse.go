package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/Laisky/llm-gateway/common/helper"
	"github.com/Laisky/llm-gateway/internal/schema"
)

// rawEvent is one "event:"/"data:" pair as decoded straight off the wire,
// before the data payload is unmarshaled into a schema.StreamEvent.
type rawEvent struct {
	event string
	data  string
}

// SSEDecoder scans an upstream Claude completion body for "event: name" /
// "data: {...}" frames terminated by a blank line. Built over
// bufio.Scanner with an enlarged buffer (common/helper.ConfigureScannerBuffer)
// since Claude completion payloads can carry large content_block_delta
// chunks.
type SSEDecoder struct {
	scanner *bufio.Scanner
}

// NewSSEDecoder wraps r as a line-oriented SSE frame scanner.
func NewSSEDecoder(r io.Reader) *SSEDecoder {
	sc := bufio.NewScanner(r)
	helper.ConfigureScannerBuffer(sc)
	return &SSEDecoder{scanner: sc}
}

// Next reads the next complete SSE frame, decoding its "data:" payload as a
// schema.StreamEvent with Type set from the "event:" line. It returns
// io.EOF when the stream is exhausted. Frames with no "event:" line (the
// common shape, since Claude's event type is also embedded in the JSON
// body's "type" field) fall back to that field.
func (d *SSEDecoder) Next() (schema.StreamEvent, error) {
	for {
		raw, err := d.nextRaw()
		if err != nil {
			return schema.StreamEvent{}, err
		}
		if raw.data == "" {
			continue
		}
		var ev schema.StreamEvent
		if err := json.Unmarshal([]byte(raw.data), &ev); err != nil {
			continue
		}
		if raw.event != "" {
			ev.Type = schema.StreamEventType(raw.event)
		}
		return ev, nil
	}
}

func (d *SSEDecoder) nextRaw() (rawEvent, error) {
	var ev rawEvent
	var data strings.Builder
	sawAny := false
	for d.scanner.Scan() {
		line := d.scanner.Text()
		sawAny = true
		if line == "" {
			if data.Len() > 0 || ev.event != "" {
				ev.data = data.String()
				return ev, nil
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, "event:"):
			ev.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case strings.HasPrefix(line, ":"):
			// comment/keep-alive line, ignored.
		}
	}
	if err := d.scanner.Err(); err != nil {
		return rawEvent{}, err
	}
	if !sawAny {
		return rawEvent{}, io.EOF
	}
	if data.Len() > 0 {
		ev.data = data.String()
		return ev, nil
	}
	return rawEvent{}, io.EOF
}

// EncodeSSE renders one schema.StreamEvent as a wire-format SSE frame:
// "event: <type>\ndata: <json>\n\n", matching Claude's own framing so a
// pass-through client-facing stream is byte-compatible.
func EncodeSSE(ev schema.StreamEvent) ([]byte, error) {
	buf, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.WriteString("event: ")
	out.WriteString(string(ev.Type))
	out.WriteString("\ndata: ")
	out.Write(buf)
	out.WriteString("\n\n")
	return out.Bytes(), nil
}

// EncodeOpenAIChunk renders an arbitrary JSON-marshalable OpenAI-shaped
// chunk as an SSE "data: ...\n\n" frame (OpenAI's wire format carries no
// "event:" line).
func EncodeOpenAIChunk(v any) ([]byte, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.WriteString("data: ")
	out.Write(buf)
	out.WriteString("\n\n")
	return out.Bytes(), nil
}

// OpenAIDoneFrame is the terminal "data: [DONE]\n\n" sentinel OpenAI-format
// streaming clients expect.
const OpenAIDoneFrame = "data: [DONE]\n\n"
