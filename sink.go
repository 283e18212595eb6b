package nanolog

import (
	"encoding/binary"
	"os"
	"sync"
)

// checksumSize is the width of the per-block integrity checksum
// prepended to every on-disk block.
const checksumSize = 8

// outputSink owns the open output file and drives a single outstanding
// asynchronous write at a time. Callers submit raw compressed bytes;
// the sink lays them out as checksummed, block-aligned blocks.
type outputSink struct {
	mu        sync.Mutex
	file      *os.File
	blockSize int
	offset    int64

	writeCh  chan writeJob
	resultCh chan error
	busy     bool

	failedSticky bool
}

type writeJob struct {
	data   []byte
	offset int64
}

func newOutputSink(blockSize int) *outputSink {
	s := &outputSink{
		blockSize: blockSize,
		writeCh:   make(chan writeJob),
		resultCh:  make(chan error, 1),
	}
	go s.writerLoop()
	return s
}

// writerLoop is the dedicated sub-goroutine that performs blocking
// writes against the currently open file, one at a time. This satisfies
// "submit; poll-for-completion; one in flight" without needing a
// platform-specific async I/O primitive.
func (s *outputSink) writerLoop() {
	for job := range s.writeCh {
		s.resultCh <- s.writeBlock(job)
	}
}

// setFile installs a new destination file, serialized by the caller
// (the worker, via the LifecycleController's rotation path). Any
// outstanding write must already have completed before this is called.
func (s *outputSink) setFile(f *os.File) {
	s.mu.Lock()
	old := s.file
	s.file = f
	s.offset = 0
	s.failedSticky = false
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
}

// layout pads data to a whole number of blocks and prepends a checksum
// to each block's payload, returning the bytes ready to write and the
// number of pad bytes added.
func (s *outputSink) layout(data []byte) (out []byte, padBytes int) {
	payloadPerBlock := s.blockSize - checksumSize
	if len(data) == 0 {
		return nil, 0
	}
	nBlocks := (len(data) + payloadPerBlock - 1) / payloadPerBlock
	padded := nBlocks*payloadPerBlock - len(data)

	out = make([]byte, nBlocks*s.blockSize)
	for i := 0; i < nBlocks; i++ {
		start := i * payloadPerBlock
		end := start + payloadPerBlock
		if end > len(data) {
			end = len(data)
		}
		payload := out[i*s.blockSize+checksumSize : (i+1)*s.blockSize]
		copy(payload, data[start:end])
		sum := checksumBlock(payload)
		binary.LittleEndian.PutUint64(out[i*s.blockSize:], sum)
	}
	return out, padded
}

// submit lays out data into checksummed blocks and hands it to the
// writer goroutine. It does not block on the write completing -- only
// one write may be outstanding, so a caller that wants the new write to
// start must have already called waitOutstanding.
func (s *outputSink) submit(data []byte) (padBytes int, err error) {
	s.mu.Lock()
	file := s.file
	s.mu.Unlock()
	if file == nil {
		return 0, ErrFileOpenFailed
	}

	block, pad := s.layout(data)
	if block == nil {
		return 0, nil
	}

	s.mu.Lock()
	off := s.offset
	s.offset += int64(len(block))
	s.mu.Unlock()

	s.busy = true
	s.writeCh <- writeJob{data: block, offset: off}
	return pad, nil
}

// waitOutstanding blocks until the most recently submitted write
// completes, if any. hadWrite reports whether there was anything to
// wait for.
func (s *outputSink) waitOutstanding() (hadWrite bool, err error) {
	if !s.busy {
		return false, nil
	}
	s.busy = false
	err = <-s.resultCh
	return true, err
}

// writeBlock performs the write, retrying once at the same offset on
// failure before degrading to a sticky failed state (subsequent
// submits are dropped until the sink is reopened via setFile).
func (s *outputSink) writeBlock(job writeJob) error {
	s.mu.Lock()
	if s.failedSticky {
		s.mu.Unlock()
		return ErrWriteFailed
	}
	file := s.file
	s.mu.Unlock()
	if file == nil {
		return ErrFileOpenFailed
	}

	err := pwriteAll(file, job.data, job.offset)
	if err == nil {
		return nil
	}
	err = pwriteAll(file, job.data, job.offset) // retry once
	if err == nil {
		return nil
	}
	s.mu.Lock()
	s.failedSticky = true
	s.mu.Unlock()
	return err
}

func (s *outputSink) close() error {
	close(s.writeCh)
	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()
	if f != nil {
		return f.Close()
	}
	return nil
}
