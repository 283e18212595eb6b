package nanolog

import (
	"runtime"
	"sync/atomic"
	"time"
)

// cacheLineSize separates producer-written and consumer-written fields
// so they never share a cache line.
const cacheLineSize = 64

// stagingBuffer is a fixed-capacity circular byte queue belonging to
// exactly one producer and drained by exactly one consumer (the
// CompressionWorker). The fast path never takes a lock and never enters
// the kernel.
type stagingBuffer struct {
	id       uint32
	capacity int
	storage  []byte

	// Producer-owned. producerPos/endOfRecordedSpace are atomic only so
	// the consumer can read them with acquire semantics; minFreeSpace
	// and lastReserveLen are private to the producer goroutine and need
	// no synchronization at all.
	producerPos           atomic.Uint64
	endOfRecordedSpace    atomic.Uint64
	wrapCount             atomic.Uint64
	minFreeSpace          uint64
	lastReserveLen        uint64
	cyclesProducerBlocked atomic.Uint64

	_ [cacheLineSize]byte // separate producer fields from consumer fields

	// Consumer-owned. consumerPos is atomic because the producer reads it
	// in reserveSlow; seenWrapCount is touched only by the consumer and
	// needs no synchronization.
	consumerPos   atomic.Uint64
	seenWrapCount uint64

	_ [cacheLineSize]byte

	// Set once by the owning Producer's teardown (explicit Release or
	// the finalizer backstop); read by the worker.
	shouldDeallocate atomic.Bool
}

func newStagingBuffer(id uint32, capacity int) *stagingBuffer {
	b := &stagingBuffer{
		id:       id,
		capacity: capacity,
		storage:  make([]byte, capacity),
	}
	b.minFreeSpace = uint64(capacity)
	b.endOfRecordedSpace.Store(uint64(capacity))
	return b
}

// reserve returns a writable region of exactly n contiguous bytes,
// blocking (spin + yield) until space is available. It never takes a
// mutex and never enters the kernel beyond the occasional scheduler
// yield while waiting on the consumer.
func (b *stagingBuffer) reserve(n int) ([]byte, error) {
	if n >= b.capacity {
		return nil, ErrRecordTooLarge
	}
	nb := uint64(n)

	// Fast path: cached lower bound on contiguous free space already
	// covers this request.
	if nb < b.minFreeSpace {
		pos := b.producerPos.Load()
		b.lastReserveLen = nb
		return b.storage[pos : pos+nb], nil
	}

	return b.reserveSlow(n, true)
}

// tryReserve is the non-blocking variant for callers that must not
// stall on a full buffer: it reports ok=false instead of waiting.
func (b *stagingBuffer) tryReserve(n int) ([]byte, bool, error) {
	if n >= b.capacity {
		return nil, false, ErrRecordTooLarge
	}
	nb := uint64(n)
	if nb < b.minFreeSpace {
		pos := b.producerPos.Load()
		b.lastReserveLen = nb
		return b.storage[pos : pos+nb], true, nil
	}
	buf, err := b.reserveSlow(n, false)
	if err != nil {
		return nil, false, err
	}
	if buf == nil {
		return nil, false, nil
	}
	return buf, true, nil
}

func (b *stagingBuffer) reserveSlow(n int, blocking bool) ([]byte, error) {
	nb := uint64(n)
	spins := 0
	for {
		pos := b.producerPos.Load()
		consumer := b.consumerPos.Load() // acquire read of consumer position

		var freeSpace uint64
		if consumer <= pos {
			// Free space is either the tail of storage, or (if the
			// tail is too small) the region from offset 0 up to the
			// consumer, reached via a wrap.
			tail := uint64(b.capacity) - pos
			if tail >= nb {
				freeSpace = tail
			} else if consumer >= nb {
				// Wrap: publish the old tail, restart at offset 0. The
				// wrap count becomes visible only after the new tail
				// boundary does, so a consumer that notices the count
				// change always sees the matching endOfRecordedSpace.
				b.endOfRecordedSpace.Store(pos) // release
				b.wrapCount.Add(1)
				b.producerPos.Store(0)
				b.minFreeSpace = consumer
				b.lastReserveLen = nb
				return b.storage[0:nb], nil
			} else {
				freeSpace = tail // not enough on either side yet
			}
		} else {
			// consumer > pos: a wrap already happened and the consumer
			// hasn't caught up to it yet. The producer is filling
			// [0, consumer) and free space shrinks as pos advances.
			freeSpace = consumer - pos
		}

		if freeSpace >= nb {
			b.minFreeSpace = freeSpace
			b.lastReserveLen = nb
			return b.storage[pos : pos+nb], nil
		}

		if !blocking {
			return nil, nil
		}

		b.cyclesProducerBlocked.Add(1)
		spins++
		if spins < 1000 {
			runtime.Gosched()
		} else {
			// Escalate to a real sleep so a genuinely stalled consumer
			// doesn't spin a core at 100%.
			time.Sleep(100 * time.Microsecond)
		}
	}
}

// commit publishes n bytes previously reserved. n must equal the length
// of the last reserve call on this buffer.
func (b *stagingBuffer) commit(n int) {
	nb := uint64(n)
	if nb != b.lastReserveLen {
		// A commit length that disagrees with the preceding reserve is a
		// programming error in the caller, not a recoverable condition.
		panic("nanolog: commit length does not match last reserve")
	}
	// Release fence: all of the producer's writes into the reserved
	// region must be globally visible before producerPos advances.
	// atomic.Uint64.Add already provides this on every Go-supported
	// architecture.
	b.minFreeSpace -= nb
	b.producerPos.Add(nb)
}

// peek returns the next contiguous run of committed bytes, or ok=false
// if the buffer is empty. Consumer-only.
//
// Wrap detection is driven by wrapCount rather than by comparing
// consumerPos against producerPos directly: after a wrap, producerPos
// restarts at 0 and can legitimately grow back up to the exact value
// consumerPos was left at in the old (pre-wrap) address space, so
// position equality alone cannot tell "buffer empty" apart from "tail
// drained, rollover still pending". wrapCount disambiguates the two.
//
// producerPos is read before wrapCount: a wrap publishes wrapCount
// before resetting producerPos, so a producer position read first
// always belongs to the epoch the wrapCount check then selects.
func (b *stagingBuffer) peek() ([]byte, bool) {
	producer := b.producerPos.Load() // acquire read of producer position
	if b.seenWrapCount != b.wrapCount.Load() {
		end := b.endOfRecordedSpace.Load()
		consumer := b.consumerPos.Load()
		if consumer < end {
			return b.storage[consumer:end], true
		}
		// The tail has been fully drained; roll over to the fresh data
		// the producer wrote starting at offset 0.
		b.consumerPos.Store(0)
		b.seenWrapCount++
		producer = b.producerPos.Load()
	}

	consumer := b.consumerPos.Load()
	if consumer == producer {
		return nil, false
	}
	return b.storage[consumer:producer], true
}

// consume advances consumerPos by n bytes, after an acquire fence
// ensuring all reads of those bytes have completed. n must not exceed
// the length of the run peek most recently returned, so it never
// crosses endOfRecordedSpace or producerPos; any rollover past that
// boundary is handled by the next peek call instead.
func (b *stagingBuffer) consume(n int) {
	b.consumerPos.Add(uint64(n))
}

// canReap reports whether the worker may safely remove and discard this
// buffer: its owning Producer is gone and every committed byte has been
// consumed.
func (b *stagingBuffer) canReap() bool {
	if !b.shouldDeallocate.Load() {
		return false
	}
	if b.seenWrapCount != b.wrapCount.Load() {
		// A wrap is pending: equal positions do not mean drained.
		return false
	}
	return b.consumerPos.Load() == b.producerPos.Load()
}
