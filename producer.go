package nanolog

import (
	"runtime"
	"sync/atomic"
)

// Producer is the Go realization of the source's thread-local staging
// buffer handle. Go has neither OS-thread identity nor a thread-death
// hook visible to user code, so a Producer is instead an explicit value
// the calling goroutine acquires once and holds for as long as it
// intends to log -- a single pointer indirection on the hot path,
// exactly like the source's raw thread-local pointer.
//
// Release is idempotent; a finalizer registered at Acquire time calls
// the same teardown if the goroutine that owns a Producer exits without
// calling Release, approximating the source's thread-termination
// destructor hook.
type Producer struct {
	buf      *stagingBuffer
	released atomic.Bool
}

// Acquire creates a new StagingBuffer and returns a Producer that owns
// it for the rest of its lifetime. It is the realization of
// ensureStagingBufferAllocated + reserveAlloc's implicit first-use
// check, folded into one call since Go has no hidden thread-local slot
// to check first.
func Acquire() *Producer {
	c := Default()
	c.ensureWorker()
	return acquireFrom(c.registry, c.config.StagingBufferSize)
}

func acquireFrom(reg *bufferRegistry, capacity int) *Producer {
	p := &Producer{buf: reg.create(capacity)}
	runtime.SetFinalizer(p, (*Producer).finalize)
	return p
}

// Reserve returns a writable region of exactly n contiguous bytes. It
// blocks if the buffer is full; this is the only wait a producer can
// experience other than Sync.
func (p *Producer) Reserve(n int) ([]byte, error) {
	if p.released.Load() {
		return nil, ErrReleased
	}
	return p.buf.reserve(n)
}

// Commit makes the previously reserved n bytes visible to the
// background worker.
func (p *Producer) Commit(n int) {
	p.buf.commit(n)
}

// Release marks this Producer's buffer as drain-then-delete. After
// Release returns, the caller must not call Reserve or Commit again.
// Already-committed bytes are still delivered -- Release only stops
// future production, it does not discard anything pending.
func (p *Producer) Release() {
	if p.released.CompareAndSwap(false, true) {
		p.buf.shouldDeallocate.Store(true)
	}
}

func (p *Producer) finalize() {
	p.Release()
}

// leaseProducer borrows a long-lived Producer bound to this
// controller's registry, for the package-level convenience loggers.
// Unlike a caller's own Acquire(), a leased Producer is never released
// -- it is returned to the controller's pool for the next lease
// instead. sync.Pool never hands the same item to two Get callers
// concurrently, so the single-producer invariant holds for the
// duration of each lease even though two different goroutines may use
// the same underlying buffer across successive leases. The pool lives
// on the controller rather than at package scope so swapping the
// default controller (as tests do) can never hand out a Producer bound
// to a different, possibly already-shut-down registry.
func (c *LifecycleController) leaseProducer() *Producer {
	if v := c.producerPool.Get(); v != nil {
		return v.(*Producer)
	}
	c.ensureWorker()
	p := &Producer{buf: c.registry.create(c.config.StagingBufferSize)}
	// Leased producers are never abandoned mid-process in the ordinary
	// case, but register the same finalizer backstop in case the pool
	// itself is dropped (e.g. during tests that discard the default
	// controller).
	runtime.SetFinalizer(p, (*Producer).finalize)
	return p
}

func (c *LifecycleController) returnProducer(p *Producer) {
	c.producerPool.Put(p)
}
