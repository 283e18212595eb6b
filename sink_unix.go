//go:build !windows
// +build !windows

package nanolog

import (
	"os"

	"golang.org/x/sys/unix"
)

// pwriteAll writes all of data to f at the given offset, retrying on
// short writes. Using Pwrite rather than Write+Seek keeps the sink's
// single writer goroutine free of any shared file cursor state.
func pwriteAll(f *os.File, data []byte, offset int64) error {
	for len(data) > 0 {
		n, err := unix.Pwrite(int(f.Fd()), data, offset)
		if err != nil {
			return err
		}
		if n == 0 {
			return os.ErrClosed
		}
		data = data[n:]
		offset += int64(n)
	}
	return nil
}

// openDirect opens path for direct-I/O-compatible writes where the
// platform supports it, falling back to a plain buffered file
// otherwise. Direct I/O is what motivates the 512-byte block alignment
// in the on-disk format.
func openDirect(path string) (*os.File, error) {
	flags := os.O_RDWR | os.O_CREATE
	if directIOFlag != 0 {
		flags |= directIOFlag
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil && directIOFlag != 0 {
		// O_DIRECT isn't supported by every filesystem (tmpfs, for
		// instance); fall back rather than fail outright.
		return os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	}
	return f, err
}

func fsync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
