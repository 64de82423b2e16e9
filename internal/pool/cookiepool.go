// Package pool implements the two credential actors: single-goroutine
// owners of the cookie and API-key pools, each
// serialized through a priority mailbox (package-local, see mailbox.go) so
// Return/Submit/Delete never queue behind a burst of Request traffic.
package pool

import (
	"strconv"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/gammazero/deque"
	gocache "github.com/patrickmn/go-cache"

	"github.com/Laisky/llm-gateway/common/logger"
	"github.com/Laisky/llm-gateway/internal/credential"
	"github.com/Laisky/llm-gateway/internal/gwerror"
)

// resetSweepInterval is how often the cookie actor proactively re-checks
// exhausted reset timestamps, independent of dispatch-time sweeps.
const resetSweepInterval = 300 * time.Second

// affinityTTL and affinityCapacity bound the system-prompt affinity cache.
const (
	affinityTTL      = time.Hour
	affinityCapacity = 1000
)

// CookieStatusInfo is a point-in-time snapshot of all three pool sets,
// returned by GetStatus.
type CookieStatusInfo struct {
	Valid     []*credential.CookieStatus `json:"valid"`
	Exhausted []*credential.CookieStatus `json:"exhausted"`
	Invalid   []credential.UselessCookie `json:"invalid"`
}

// CookiePool is the cookie actor's handle. All exported methods are
// synchronous request/reply round-trips into the actor's mailbox; the
// actor's private state is never touched from any other goroutine.
type CookiePool struct {
	mb *mailbox

	valid     *deque.Deque[*credential.CookieStatus]
	exhausted map[string]*credential.CookieStatus
	invalid   map[string]credential.UselessCookie
	affinity  *gocache.Cache

	onChange func()

	stopSweep chan struct{}
}

// NewCookiePool constructs a cookie actor pre-seeded from persisted state
// (e.g. loaded from the gateway config snapshot) and starts its goroutine
// and periodic reset-sweep ticker.
func NewCookiePool(seed []*credential.CookieStatus, wasted []credential.UselessCookie) *CookiePool {
	p := &CookiePool{
		mb:        newMailbox(),
		valid:     &deque.Deque[*credential.CookieStatus]{},
		exhausted: make(map[string]*credential.CookieStatus),
		invalid:   make(map[string]credential.UselessCookie),
		affinity:  gocache.New(affinityTTL, time.Minute),
		stopSweep: make(chan struct{}),
	}
	for _, cs := range seed {
		if cs.ResetTime != nil {
			p.exhausted[cs.Cookie.Raw()] = cs
		} else {
			p.valid.PushBack(cs)
		}
	}
	for _, w := range wasted {
		p.invalid[w.Cookie.Raw()] = w
	}

	go p.mb.run()
	go p.sweepLoop()
	p.logCounts()
	return p
}

// SetOnChange installs a callback invoked (on its own goroutine) after any
// state-changing transition: returns that move or mutate a cookie, submits,
// deletes, and reset-sweep promotions. The storage layer uses it to persist
// the pool, reading the new state through GetStatus.
func (p *CookiePool) SetOnChange(fn func()) {
	done := make(chan struct{})
	p.mb.post(prioSubmit, func() {
		p.onChange = fn
		close(done)
	})
	<-done
}

func (p *CookiePool) notifyChange() {
	if p.onChange != nil {
		go p.onChange()
	}
}

// Close stops the actor and sweep loop. Safe to call once.
func (p *CookiePool) Close() {
	close(p.stopSweep)
	p.mb.close()
}

func (p *CookiePool) sweepLoop() {
	t := time.NewTicker(resetSweepInterval)
	defer t.Stop()
	for {
		select {
		case <-p.stopSweep:
			return
		case <-t.C:
			done := make(chan struct{})
			p.mb.post(prioCheckReset, func() {
				p.resetSweep()
				close(done)
			})
			<-done
		}
	}
}

func (p *CookiePool) logCounts() {
	logger.Logger.Info("cookie pool state",
		zap.Int("valid", p.valid.Len()),
		zap.Int("exhausted", len(p.exhausted)),
		zap.Int("invalid", len(p.invalid)))
}

// resetSweep promotes any exhausted cookie whose reset_time has elapsed
// back into the valid deque, clearing its window usage counters.
func (p *CookiePool) resetSweep() {
	now := time.Now()
	var promoted []*credential.CookieStatus
	for k, cs := range p.exhausted {
		if cs.ExpireResetIfDue(now) {
			promoted = append(promoted, cs)
			delete(p.exhausted, k)
		}
	}
	for _, cs := range promoted {
		p.valid.PushBack(cs)
	}
	if len(promoted) > 0 {
		p.logCounts()
		p.notifyChange()
	}
}

// Request dispatches one cookie from the pool. If hash names a
// still-valid affinity-cached cookie, that same cookie is returned (and its
// affinity TTL refreshed) instead of rotating the deque.
func (p *CookiePool) Request(hash *uint64) (*credential.CookieStatus, error) {
	type result struct {
		cs  *credential.CookieStatus
		err error
	}
	done := make(chan result, 1)
	p.mb.post(prioRequest, func() {
		p.resetSweep()

		if hash != nil {
			key := affinityKey(*hash)
			if v, ok := p.affinity.Get(key); ok {
				raw := v.(string)
				for i := 0; i < p.valid.Len(); i++ {
					cs := p.valid.At(i)
					if cs.Cookie.Raw() == raw {
						p.affinity.Set(key, raw, affinityTTL)
						done <- result{cs: cs.Clone()}
						return
					}
				}
				// Named cookie no longer valid; fall back to rotation.
			}
		}

		if p.valid.Len() == 0 {
			done <- result{err: errors.Wrap(gwerror.ErrNoCookieAvailable, "cookie actor request")}
			return
		}
		cs := p.valid.PopFront()
		p.valid.PushBack(cs)
		if hash != nil {
			p.affinity.Set(affinityKey(*hash), cs.Cookie.Raw(), affinityTTL)
			p.enforceAffinityCapacity()
		}
		done <- result{cs: cs.Clone()}
	})
	r := <-done
	return r.cs, r.err
}

// enforceAffinityCapacity trims the affinity cache to affinityCapacity
// entries, evicting the soonest-to-expire (oldest-inserted, since every
// entry shares the same TTL) first. go-cache has no built-in capacity
// bound, only TTL, so this is a thin wrapper over its item map.
func (p *CookiePool) enforceAffinityCapacity() {
	items := p.affinity.Items()
	if len(items) <= affinityCapacity {
		return
	}
	type kv struct {
		key string
		exp int64
	}
	all := make([]kv, 0, len(items))
	for k, it := range items {
		all = append(all, kv{key: k, exp: it.Expiration})
	}
	// Remove the smallest-expiration (oldest) entries until within budget.
	excess := len(all) - affinityCapacity
	for i := 0; i < len(all) && excess > 0; i++ {
		min := i
		for j := i + 1; j < len(all); j++ {
			if all[j].exp < all[min].exp {
				min = j
			}
		}
		all[i], all[min] = all[min], all[i]
		p.affinity.Delete(all[i].key)
		excess--
	}
}

func affinityKey(hash uint64) string {
	return strconv.FormatUint(hash, 16)
}

// Return commits the outcome of a completed request. reason == nil replays
// the no-movement path: the entry in valid is replaced in place to
// commit mutated usage counters. A non-nil reason whose resume timestamp has
// already elapsed is treated identically to nil.
func (p *CookiePool) Return(cs *credential.CookieStatus, reason *credential.Reason) {
	done := make(chan struct{})
	p.mb.post(prioReturn, func() {
		defer close(done)
		p.collect(cs, reason)
	})
	<-done
}

func (p *CookiePool) collect(cs *credential.CookieStatus, reason *credential.Reason) {
	if reason == nil || (reason.Exhausting() && reason.At <= time.Now().Unix()) {
		for i := 0; i < p.valid.Len(); i++ {
			if p.valid.At(i).Cookie.Raw() == cs.Cookie.Raw() {
				p.valid.Set(i, cs)
				p.notifyChange()
				return
			}
		}
		return
	}

	switch {
	case reason.Kind == credential.ReasonNormalPro:
		return
	case reason.Exhausting():
		p.removeFromValid(cs.Cookie.Raw())
		at := reason.At
		cs.ResetTime = &at
		cs.SessionUsage = credential.UsageBreakdown{}
		cs.WeeklyUsage = credential.UsageBreakdown{}
		cs.WeeklyOpusUsage = credential.UsageBreakdown{}
		p.exhausted[cs.Cookie.Raw()] = cs
	default:
		p.removeFromValid(cs.Cookie.Raw())
		p.invalid[cs.Cookie.Raw()] = credential.NewUselessCookie(cs.Cookie, *reason)
	}
	p.logCounts()
	p.notifyChange()
}

func (p *CookiePool) removeFromValid(raw string) {
	for i := 0; i < p.valid.Len(); i++ {
		if p.valid.At(i).Cookie.Raw() == raw {
			p.valid.Remove(i)
			return
		}
	}
}

// Submit admits a new cookie into the valid set, silently ignoring it if
// already present anywhere, including the permanently-retired invalid set.
func (p *CookiePool) Submit(cs *credential.CookieStatus) {
	done := make(chan struct{})
	p.mb.post(prioSubmit, func() {
		defer close(done)
		raw := cs.Cookie.Raw()
		if _, ok := p.invalid[raw]; ok {
			logger.Logger.Warn("rejecting known-bad cookie resubmission", zap.String("cookie", cs.Cookie.Ellipsis()))
			return
		}
		if _, ok := p.exhausted[raw]; ok {
			return
		}
		for i := 0; i < p.valid.Len(); i++ {
			if p.valid.At(i).Cookie.Raw() == raw {
				return
			}
		}
		p.valid.PushBack(cs)
		p.logCounts()
		p.notifyChange()
	})
	<-done
}

// Delete removes a cookie from whichever set holds it.
func (p *CookiePool) Delete(cs *credential.CookieStatus) error {
	done := make(chan error, 1)
	p.mb.post(prioDelete, func() {
		raw := cs.Cookie.Raw()
		found := false
		for i := 0; i < p.valid.Len(); i++ {
			if p.valid.At(i).Cookie.Raw() == raw {
				p.valid.Remove(i)
				found = true
				break
			}
		}
		if _, ok := p.exhausted[raw]; ok {
			delete(p.exhausted, raw)
			found = true
		}
		if _, ok := p.invalid[raw]; ok {
			delete(p.invalid, raw)
			found = true
		}
		if !found {
			done <- errors.Wrap(gwerror.ErrNotFound, "cookie actor delete")
			return
		}
		p.logCounts()
		p.notifyChange()
		done <- nil
	})
	return <-done
}

// GetStatus returns a snapshot of all three sets.
func (p *CookiePool) GetStatus() CookieStatusInfo {
	done := make(chan CookieStatusInfo, 1)
	p.mb.post(prioGetStatus, func() {
		info := CookieStatusInfo{}
		for i := 0; i < p.valid.Len(); i++ {
			info.Valid = append(info.Valid, p.valid.At(i).Clone())
		}
		for _, cs := range p.exhausted {
			info.Exhausted = append(info.Exhausted, cs.Clone())
		}
		for _, w := range p.invalid {
			info.Invalid = append(info.Invalid, w)
		}
		done <- info
	})
	return <-done
}
