package controller

import (
	"context"
	"io"
	"time"

	"github.com/Laisky/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Laisky/llm-gateway/common/logger"
	"github.com/Laisky/llm-gateway/internal/cache"
)

// recordingWriter mirrors every Write into a cache.RecordedStream while
// forwarding the same bytes to an underlying writer, letting a route record
// the exact chunking of a live response for later cache replay
// without buffering the whole body in memory.
type recordingWriter struct {
	underlying io.Writer
	recorded   cache.RecordedStream
}

func newRecordingWriter(underlying io.Writer) *recordingWriter {
	return &recordingWriter{underlying: underlying}
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)
	w.recorded = append(w.recorded, chunk)
	return w.underlying.Write(p)
}

// fanoutTimeout bounds each speculative background invocation so a stuck
// upstream can't leak goroutines indefinitely.
const fanoutTimeout = 2 * time.Minute

// fanoutConcurrency caps how many speculative invocations run at once, so
// a large K doesn't burn through the cookie pool in one burst.
const fanoutConcurrency = 4

// spawnFanout launches n background invocations of run, each against a
// discard-only recording writer, pushing every successfully recorded stream
// into store under fingerprint. This implements the speculative fanout
// parameter K: on a cache miss, K-1 extra
// invocations pre-populate the cache for the next identical request.
func spawnFanout(store *cache.ResponseCache, fingerprint uint64, n int, run func(ctx context.Context, w io.Writer) error) {
	go func() {
		var g errgroup.Group
		g.SetLimit(fanoutConcurrency)
		for i := 0; i < n; i++ {
			g.Go(func() error {
				ctx, cancel := context.WithTimeout(context.Background(), fanoutTimeout)
				defer cancel()

				rw := newRecordingWriter(io.Discard)
				if err := run(ctx, rw); err != nil {
					logger.Logger.Warn("speculative cache fanout invocation failed", zap.Error(err))
					return nil
				}
				store.Push(fingerprint, rw.recorded)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// replayRecordedStream writes every chunk of a cached stream to w in order,
// exactly reproducing the original response's framing.
func replayRecordedStream(w io.Writer, stream cache.RecordedStream) error {
	for _, chunk := range stream {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}
