package nanolog

import (
	"runtime"
	"testing"
	"time"
)

func TestProducerReserveCommitRelease(t *testing.T) {
	reg := newBufferRegistry()
	p := acquireFrom(reg, 128)

	buf, err := p.Reserve(5)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	copy(buf, []byte("hello"))
	p.Commit(5)

	data, ok := p.buf.peek()
	if !ok || string(data) != "hello" {
		t.Fatalf("peek after commit: got %q ok=%v", data, ok)
	}

	p.Release()
	if !p.buf.shouldDeallocate.Load() {
		t.Fatal("Release should set shouldDeallocate")
	}

	// Release is idempotent.
	p.Release()

	if _, err := p.Reserve(1); err != ErrReleased {
		t.Fatalf("Reserve after Release: got %v, want ErrReleased", err)
	}
}

// TestProducerFinalizerReapsAbandonedBuffer models "thread death
// mid-stream": a Producer committed bytes but was never explicitly
// released, and the goroutine holding it has gone away. The finalizer
// backstop must still flip shouldDeallocate once the garbage collector
// reclaims it.
func TestProducerFinalizerReapsAbandonedBuffer(t *testing.T) {
	reg := newBufferRegistry()

	var buf *stagingBuffer
	func() {
		p := acquireFrom(reg, 128)
		buf = p.buf
		region, err := p.Reserve(4)
		if err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		copy(region, []byte("done"))
		p.Commit(4)
		// p goes out of scope here with no explicit Release.
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !buf.shouldDeallocate.Load() && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}

	if !buf.shouldDeallocate.Load() {
		t.Fatal("finalizer never flipped shouldDeallocate on the abandoned buffer")
	}

	data, ok := buf.peek()
	if !ok || string(data) != "done" {
		t.Fatalf("committed bytes must survive until drained: got %q ok=%v", data, ok)
	}
	buf.consume(len(data))
	if !buf.canReap() {
		t.Fatal("buffer should be reapable once drained after finalizer fired")
	}
}

func TestLeaseProducerReuseIsSerialized(t *testing.T) {
	c := NewLifecycleController()
	defer c.Shutdown()

	p1 := c.leaseProducer()
	buf, err := p1.Reserve(3)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	copy(buf, []byte("abc"))
	p1.Commit(3)
	c.returnProducer(p1)

	p2 := c.leaseProducer()
	if p2 != p1 {
		// Not guaranteed by sync.Pool, but exercising the common case
		// where the pool hands back the item just returned is still a
		// useful smoke test of the lease/return cycle.
		t.Skip("pool returned a different producer; lease/return cycle still exercised")
	}
	c.returnProducer(p2)
}
