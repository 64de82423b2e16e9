package stream

import (
	"encoding/json"

	"github.com/Laisky/llm-gateway/internal/schema"
)

// StopTruncator incrementally scans content_block_delta text deltas for any
// of a configured set of stop sequences. A single resettable cursor that
// rewinds to the trie root on a non-matching byte would miss a stop
// sequence that begins mid-delta after an earlier partial match fails, so
// the truncator seeds a fresh cursor at every byte position and keeps a
// slice of active cursors, pruning on mismatch.
//
// Matching is byte-oriented, not code-point oriented, which can split a
// UTF-8 code point at the emission boundary.
type StopTruncator struct {
	trie    *trie
	cursors []cursor
	done    bool
}

// NewStopTruncator builds a truncator over the given (already de-duplicated)
// stop sequences. A nil/empty sequence set makes Feed a no-op pass-through.
func NewStopTruncator(sequences []string) *StopTruncator {
	return &StopTruncator{trie: newTrie(sequences)}
}

// Active reports whether truncation should run at all for this stream.
func (s *StopTruncator) Active() bool {
	return s.trie != nil && !s.trie.empty()
}

// Done reports whether a stop sequence has already been emitted; once true,
// the caller must stop forwarding further events.
func (s *StopTruncator) Done() bool {
	return s.done
}

// Feed scans one content_block_delta TextDelta payload. It returns the
// possibly-truncated text to emit as a TextDelta (may be shorter than text,
// or empty), whether a stop sequence was matched this call, and — if
// matched — the matched sequence text.
//
// On match, the caller is responsible for emitting the truncated text delta
// followed by content_block_stop / message_delta{stop_reason:stop_sequence} /
// message_stop and closing the stream; Feed itself only performs
// the byte-level search.
func (s *StopTruncator) Feed(text string) (emit string, matched bool, stopSeq string) {
	if s.done || !s.Active() {
		return text, false, ""
	}

	input := []byte(text)
	for i := 0; i < len(input); i++ {
		b := input[i]

		// Seed a fresh search starting at this byte position, since a stop
		// sequence may begin mid-delta after an earlier search failed.
		s.cursors = append(s.cursors, s.trie.newCursor())

		var survivors []cursor
		for _, c := range s.cursors {
			next, ok, term := s.trie.advance(c, b)
			if !ok {
				continue
			}
			if term {
				// A stop sequence ends at this byte (inclusive); the
				// truncation point within the current delta is i+1 bytes.
				// The terminal node carries the full matched sequence,
				// which may have started in an earlier delta.
				s.done = true
				return string(input[:i+1]), true, next.node.seq
			}
			survivors = append(survivors, next)
		}
		s.cursors = survivors
	}
	return text, false, ""
}

// ApplyStopTruncation runs a StopTruncator over one decoded content_block_delta
// TextDelta StreamEvent, returning the event(s) to forward: either the
// original (possibly empty) delta event, or the truncated delta followed by
// the termination sequence when a stop sequence was just matched. emit is
// the text actually forwarded (for aggregation); on a match, stopSeq
// carries the full matched sequence even when it spanned several deltas.
func ApplyStopTruncation(t *StopTruncator, index int, delta schema.ContentBlockDelta) (events []schema.StreamEvent, emit string, stopped bool, stopSeq string) {
	emit, matched, seq := t.Feed(delta.Text)
	if emit != "" {
		d := delta
		d.Text = emit
		deltaJSON, _ := json.Marshal(d)
		events = append(events, schema.StreamEvent{
			Type:  schema.EventContentBlockDelta,
			Index: &index,
			Delta: deltaJSON,
		})
	}
	if !matched {
		return events, emit, false, ""
	}

	events = append(events, schema.StreamEvent{Type: schema.EventContentBlockStop, Index: &index})

	stopReason := schema.StopSequenceStop
	mdBuf, _ := json.Marshal(schema.MessageDelta{StopReason: &stopReason, StopSequence: &seq})
	events = append(events, schema.StreamEvent{Type: schema.EventMessageDelta, Delta: mdBuf})
	events = append(events, schema.StreamEvent{Type: schema.EventMessageStop})
	return events, emit, true, seq
}
