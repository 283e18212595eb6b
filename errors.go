package nanolog

import "errors"

var (
	// ErrBufferFull names the full-buffer condition. No function in the
	// package returns it: Reserve spins until space frees up, and the
	// non-blocking tryReserve reports a full buffer with ok=false.
	ErrBufferFull = errors.New("nanolog: staging buffer full")

	// ErrRecordTooLarge is returned when a reservation would never fit,
	// even in an empty buffer. It is a programming error: the caller is
	// expected to abort rather than retry.
	ErrRecordTooLarge = errors.New("nanolog: record larger than buffer capacity")

	// ErrWriteFailed is recorded in metrics when the sink's retry also
	// fails. It never propagates to a producer.
	ErrWriteFailed = errors.New("nanolog: sink write failed")

	// ErrFileOpenFailed is returned by SetLogFile when the new output
	// file could not be opened; the previous file, if any, stays active.
	ErrFileOpenFailed = errors.New("nanolog: failed to open log file")

	// ErrReleased is returned by Reserve when called on a Producer that
	// has already been released.
	ErrReleased = errors.New("nanolog: producer already released")

	// ErrInvalidMetadataTable is returned by LoadMetadataTable when the
	// input does not start with the expected magic number.
	ErrInvalidMetadataTable = errors.New("nanolog: invalid metadata table")
)
