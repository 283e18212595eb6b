package nanolog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOutputSinkSubmitAndWait(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	s := newOutputSink(64)
	s.setFile(f)
	defer s.close()

	payload := []byte("hello, sink")
	pad, err := s.submit(payload)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if pad == 0 {
		t.Fatal("expected padding to the block size")
	}

	hadWrite, err := s.waitOutstanding()
	if !hadWrite {
		t.Fatal("expected an outstanding write")
	}
	if err != nil {
		t.Fatalf("waitOutstanding: %v", err)
	}

	if hadWrite, _ := s.waitOutstanding(); hadWrite {
		t.Fatal("waitOutstanding should report nothing outstanding the second time")
	}
}

func TestOutputSinkLayoutChecksums(t *testing.T) {
	s := &outputSink{blockSize: 32}
	data := []byte("0123456789012345678901234567890123456789") // 40 bytes, spans 2 blocks

	out, pad := s.layout(data)
	if len(out)%32 != 0 {
		t.Fatalf("layout output not block-aligned: %d bytes", len(out))
	}
	if pad < 0 {
		t.Fatalf("unexpected negative pad: %d", pad)
	}

	nBlocks := len(out) / 32
	for i := 0; i < nBlocks; i++ {
		block := out[i*32 : (i+1)*32]
		sum := checksumBlock(block[checksumSize:])
		got := block[0:checksumSize]
		want := make([]byte, checksumSize)
		for j := 0; j < checksumSize; j++ {
			want[j] = byte(sum >> (8 * j))
		}
		for j := 0; j < checksumSize; j++ {
			if got[j] != want[j] {
				t.Fatalf("block %d checksum mismatch at byte %d", i, j)
			}
		}
	}
}

func TestOutputSinkWriteFailureDegradesAfterOneRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.Close() // closed fd: every pwrite against it now fails

	s := newOutputSink(32)
	s.setFile(f)
	defer s.close()

	err = s.writeBlock(writeJob{data: make([]byte, 32), offset: 0})
	if err == nil {
		t.Fatal("expected a write failure against a closed file")
	}
	if !s.failedSticky {
		t.Fatal("expected failedSticky after exhausting the single retry")
	}

	err2 := s.writeBlock(writeJob{data: make([]byte, 32), offset: 32})
	if err2 != ErrWriteFailed {
		t.Fatalf("subsequent writes should short-circuit with ErrWriteFailed, got %v", err2)
	}
}

func TestOutputSinkSetFileResetsFailedSticky(t *testing.T) {
	dir := t.TempDir()

	closedPath := filepath.Join(dir, "closed.log")
	closed, _ := os.OpenFile(closedPath, os.O_RDWR|os.O_CREATE, 0644)
	closed.Close()

	s := newOutputSink(32)
	s.setFile(closed)
	_ = s.writeBlock(writeJob{data: make([]byte, 32), offset: 0})
	_ = s.writeBlock(writeJob{data: make([]byte, 32), offset: 32})
	if !s.failedSticky {
		t.Fatal("expected failedSticky to be set")
	}

	goodPath := filepath.Join(dir, "good.log")
	good, err := os.OpenFile(goodPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.setFile(good)
	defer s.close()

	if s.failedSticky {
		t.Fatal("setFile should clear failedSticky")
	}
	if s.offset != 0 {
		t.Fatalf("setFile should reset offset, got %d", s.offset)
	}
}
