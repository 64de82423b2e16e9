package gemini

import (
	"context"
	"io"
	"sync"
	"time"
)

// heartbeatChunk is an HTML comment clients ignore; intermediate proxies
// see traffic and keep the connection open.
const heartbeatChunk = "<!-- keep-alive -->"

// A keep-alive tick every 15 s of inactivity; the whole call is abandoned
// after 600 s with no upstream data at all.
const (
	heartbeatInterval = 15 * time.Second
	heartbeatTimeout  = 600 * time.Second
)

// runHeartbeat runs fn (the actual upstream call) in the background and
// writes heartbeatChunk to w on every heartbeatInterval tick while fn is
// still running, so a client waiting on a slow non-streaming
// generateContent call doesn't see a dead connection. Once fn returns, its
// error is propagated; if the upstream produces no data for
// heartbeatTimeout the call is abandoned and its (eventual) result
// discarded.
func runHeartbeat(ctx context.Context, w io.Writer, fn func(io.Writer) error) error {
	var buf syncBuffer
	done := make(chan error, 1)

	go func() {
		done <- fn(&buf)
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	lastProgress := time.Now()
	lastLen := 0

	for {
		select {
		case err := <-done:
			if err != nil {
				return err
			}
			_, err = w.Write(buf.Bytes())
			return err

		case <-ticker.C:
			if n := buf.Len(); n != lastLen {
				lastLen = n
				lastProgress = time.Now()
			} else if time.Since(lastProgress) > heartbeatTimeout {
				return nil
			}
			if _, err := w.Write([]byte(heartbeatChunk)); err != nil {
				return err
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// syncBuffer is a bytes.Buffer safe for the single writer goroutine and
// single final read used here.
type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
