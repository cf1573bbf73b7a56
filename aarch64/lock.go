package aarch64

import (
	"runtime"
	"sync/atomic"

	"github.com/isgasho/baremetalisp/driver"
)

// Test-and-set spinlock. On hardware this spins on a ldaxr/stlxr pair and
// sleeps with wfe; atomic compare-and-swap with a scheduler yield is the
// portable equivalent.
//
//	var lock aarch64.LockVar
//	lock.Lock()
//	defer lock.Unlock()
type LockVar struct {
	v uint32
}

// Spins until the lock is acquired
func (l *LockVar) Lock() {
	for !atomic.CompareAndSwapUint32(&l.v, 0, 1) {
		runtime.Gosched() // wait_event()
	}
}

// Releases the lock
func (l *LockVar) Unlock() {
	atomic.StoreUint32(&l.v, 0)
}

// Lamport's bakery lock, one slot per core. Unlike LockVar it is fair:
// cores are granted the lock in the order they drew their tickets.
//
//	var ticket aarch64.BakeryTicket
//	ticket.Lock(core)
//	defer ticket.Unlock(core)
type BakeryTicket struct {
	entering [driver.CORE_COUNT]uint32
	number   [driver.CORE_COUNT]uint64
}

// Draws a ticket for `core` and spins until every earlier ticket holder
// is done
func (t *BakeryTicket) Lock(core uint32) {
	atomic.StoreUint32(&t.entering[core], 1)
	var max uint64
	for i := range t.number {
		if n := atomic.LoadUint64(&t.number[i]); n > max {
			max = n
		}
	}
	my := max + 1
	atomic.StoreUint64(&t.number[core], my)
	atomic.StoreUint32(&t.entering[core], 0)

	for i := uint32(0); i < driver.CORE_COUNT; i++ {
		if i == core {
			continue
		}
		// wait until core i has finished drawing its ticket
		for atomic.LoadUint32(&t.entering[i]) != 0 {
			runtime.Gosched()
		}
		// wait while core i holds an earlier ticket; equal tickets
		// are broken by core index
		for {
			n := atomic.LoadUint64(&t.number[i])
			if n == 0 || n > my || (n == my && i > core) {
				break
			}
			runtime.Gosched()
		}
	}
}

// Returns the ticket of `core`
func (t *BakeryTicket) Unlock(core uint32) {
	atomic.StoreUint64(&t.number[core], 0)
}
