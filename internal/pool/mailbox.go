package pool

import (
	"container/heap"
	"sync"
)

// envelope is one pending message in an actor's mailbox. Lower Priority
// values are served first; Seq breaks ties in arrival order so messages of
// equal priority remain FIFO.
type envelope struct {
	Priority int
	Seq      int64
	Run      func()
}

// envelopeHeap is a container/heap.Interface min-heap ordered by
// (Priority, Seq).
type envelopeHeap []*envelope

func (h envelopeHeap) Len() int { return len(h) }
func (h envelopeHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].Seq < h[j].Seq
}
func (h envelopeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *envelopeHeap) Push(x any)   { *h = append(*h, x.(*envelope)) }
func (h *envelopeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// mailbox is a priority queue feeding a single actor goroutine. Callers
// enqueue a closure to run on the actor goroutine at a given priority band;
// the actor loop blocks on an empty mailbox via sync.Cond rather than
// spinning.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	h      envelopeHeap
	seq    int64
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// post enqueues fn to run on the actor goroutine at the given priority.
func (m *mailbox) post(priority int, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.seq++
	heap.Push(&m.h, &envelope{Priority: priority, Seq: m.seq, Run: fn})
	m.cond.Signal()
}

// run drains the mailbox until close is called, executing each envelope's
// closure on the calling (actor) goroutine.
func (m *mailbox) run() {
	for {
		m.mu.Lock()
		for m.h.Len() == 0 && !m.closed {
			m.cond.Wait()
		}
		if m.h.Len() == 0 && m.closed {
			m.mu.Unlock()
			return
		}
		item := heap.Pop(&m.h).(*envelope)
		m.mu.Unlock()
		item.Run()
	}
}

// close stops run once the mailbox drains.
func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Priority bands, highest first: Return > Submit > Delete >
// CheckReset > Request > GetStatus.
const (
	prioReturn = iota
	prioSubmit
	prioDelete
	prioCheckReset
	prioRequest
	prioGetStatus
)
