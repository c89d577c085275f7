package libindex

import "sync"

// barrier counts in-flight mutation work so callers can wait for a burst of
// detached mutations to settle. It is not a lock: it says nothing about
// mutations issued after the wait begins.
type barrier struct {
	mu      sync.Mutex
	count   int
	waiters []chan struct{}
}

func (b *barrier) begin() {
	b.mu.Lock()
	b.count++
	b.mu.Unlock()
}

func (b *barrier) done() {
	b.mu.Lock()
	b.count--
	if b.count == 0 {
		for _, ch := range b.waiters {
			close(ch)
		}
		b.waiters = nil
	}
	b.mu.Unlock()
}

// wait blocks until the count next reaches zero. Returns immediately if no
// work is in flight.
func (b *barrier) wait() {
	b.mu.Lock()
	if b.count == 0 {
		b.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	b.waiters = append(b.waiters, ch)
	b.mu.Unlock()
	<-ch
}
