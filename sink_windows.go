//go:build windows
// +build windows

package nanolog

import (
	"os"
	"syscall"
)

// pwriteAll writes all of data to f at the given offset, retrying on
// short writes. The offset is passed in an OVERLAPPED struct; the file
// is not opened for overlapped I/O, so each WriteFile call completes
// before it returns.
func pwriteAll(f *os.File, data []byte, offset int64) error {
	handle := syscall.Handle(f.Fd())
	for len(data) > 0 {
		var overlapped syscall.Overlapped
		overlapped.Offset = uint32(offset & 0xffffffff)
		overlapped.OffsetHigh = uint32(offset >> 32)

		var n uint32
		err := syscall.WriteFile(handle, data, &n, &overlapped)
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

// openDirect opens path for writing. Windows' FILE_FLAG_NO_BUFFERING
// requires sector-aligned buffers and offsets that the 512-byte block
// layout already satisfies, but plays poorly with os.File's buffering
// assumptions, so the file is opened plainly, without a direct-I/O
// flag; the block-aligned layout is written all the same.
func openDirect(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
}

func fsync(f *os.File) error {
	return f.Sync()
}
