package nanolog

import "sync"

// bufferRegistry is the process-wide directory of live stagingBuffers.
// Every pointer reachable through it either belongs to a Producer that
// may still write to it, or has shouldDeallocate set and is waiting for
// the worker to drain and reap it.
type bufferRegistry struct {
	mu      sync.Mutex
	buffers []*stagingBuffer
	nextID  uint32
}

func newBufferRegistry() *bufferRegistry {
	return &bufferRegistry{nextID: 1}
}

// create draws the next id under the lock, allocates the (potentially
// multi-megabyte) buffer outside the lock, then re-acquires the lock
// only to append -- the double-lock pattern that keeps the mutex from
// being held across the expensive allocation.
func (r *bufferRegistry) create(capacity int) *stagingBuffer {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.mu.Unlock()

	b := newStagingBuffer(id, capacity)

	r.mu.Lock()
	r.buffers = append(r.buffers, b)
	r.mu.Unlock()

	return b
}

// snapshot returns a stable copy of the live buffer list for the worker
// to iterate without holding the registry lock during compression.
func (r *bufferRegistry) snapshot() []*stagingBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*stagingBuffer, len(r.buffers))
	copy(out, r.buffers)
	return out
}

// remove drops b from the registry. The caller must have already
// observed b.canReap().
func (r *bufferRegistry) remove(b *stagingBuffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.buffers {
		if cur == b {
			r.buffers = append(r.buffers[:i], r.buffers[i+1:]...)
			return
		}
	}
}

func (r *bufferRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers)
}
