package pool

import (
	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/gammazero/deque"

	"github.com/Laisky/llm-gateway/common/logger"
	"github.com/Laisky/llm-gateway/internal/credential"
	"github.com/Laisky/llm-gateway/internal/gwerror"
)

// KeyPool is the simpler API-key actor: a single
// FIFO deque with no exhausted/invalid sets and no reset sweep. Keys with
// repeated 4xx responses simply cycle back through the deque; callers
// increment KeyStatus.Count403 themselves before Returning.
type KeyPool struct {
	mb    *mailbox
	valid *deque.Deque[*credential.KeyStatus]

	onChange func()
}

// NewKeyPool constructs a key actor pre-seeded with existing keys.
func NewKeyPool(seed []*credential.KeyStatus) *KeyPool {
	p := &KeyPool{
		mb:    newMailbox(),
		valid: &deque.Deque[*credential.KeyStatus]{},
	}
	for _, k := range seed {
		p.valid.PushBack(k)
	}
	go p.mb.run()
	logger.Logger.Info("key pool state", zap.Int("valid", p.valid.Len()))
	return p
}

// SetOnChange installs a callback invoked (on its own goroutine) after any
// state-changing transition, mirroring CookiePool.SetOnChange.
func (p *KeyPool) SetOnChange(fn func()) {
	done := make(chan struct{})
	p.mb.post(prioSubmit, func() {
		p.onChange = fn
		close(done)
	})
	<-done
}

func (p *KeyPool) notifyChange() {
	if p.onChange != nil {
		go p.onChange()
	}
}

// Close stops the actor goroutine.
func (p *KeyPool) Close() { p.mb.close() }

// Request pops the front key and pushes it to the back (round-robin).
func (p *KeyPool) Request() (*credential.KeyStatus, error) {
	type result struct {
		k   *credential.KeyStatus
		err error
	}
	done := make(chan result, 1)
	p.mb.post(prioRequest, func() {
		if p.valid.Len() == 0 {
			done <- result{err: errors.Wrap(gwerror.ErrNoKeyAvailable, "key actor request")}
			return
		}
		k := p.valid.PopFront()
		p.valid.PushBack(k)
		done <- result{k: k.Clone()}
	})
	r := <-done
	return r.k, r.err
}

// Return replaces the matching entry in place, committing any mutated
// Count403. A key not present in the pool (deleted meanwhile) is dropped.
func (p *KeyPool) Return(k *credential.KeyStatus) {
	done := make(chan struct{})
	p.mb.post(prioReturn, func() {
		defer close(done)
		for i := 0; i < p.valid.Len(); i++ {
			if p.valid.At(i).Key.String() == k.Key.String() {
				p.valid.Set(i, k)
				p.notifyChange()
				return
			}
		}
	})
	<-done
}

// Submit appends a new key, ignoring duplicates.
func (p *KeyPool) Submit(k *credential.KeyStatus) {
	done := make(chan struct{})
	p.mb.post(prioSubmit, func() {
		defer close(done)
		for i := 0; i < p.valid.Len(); i++ {
			if p.valid.At(i).Key.String() == k.Key.String() {
				return
			}
		}
		p.valid.PushBack(k)
		p.notifyChange()
	})
	<-done
}

// Delete removes a key from the pool.
func (p *KeyPool) Delete(k *credential.KeyStatus) error {
	done := make(chan error, 1)
	p.mb.post(prioDelete, func() {
		for i := 0; i < p.valid.Len(); i++ {
			if p.valid.At(i).Key.String() == k.Key.String() {
				p.valid.Remove(i)
				p.notifyChange()
				done <- nil
				return
			}
		}
		done <- errors.Wrap(gwerror.ErrNotFound, "key actor delete")
	})
	return <-done
}

// GetStatus returns a snapshot of the pool.
func (p *KeyPool) GetStatus() []*credential.KeyStatus {
	done := make(chan []*credential.KeyStatus, 1)
	p.mb.post(prioGetStatus, func() {
		var out []*credential.KeyStatus
		for i := 0; i < p.valid.Len(); i++ {
			out = append(out, p.valid.At(i).Clone())
		}
		done <- out
	})
	return <-done
}
