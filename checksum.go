package nanolog

import "github.com/minio/highwayhash"

// checksumKeySize is the key size highwayhash.New64 requires.
const checksumKeySize = 32

// blockChecksumKey is a fixed, process-wide key for the per-block
// integrity checksum. It only needs to guard against accidental
// corruption/truncation, not against a hostile writer, so a fixed key
// shared between the worker and the decoder is sufficient.
var blockChecksumKey = make([]byte, checksumKeySize)

// checksumBlock returns the highwayhash-64 checksum of a block's
// payload, used as the first 8 bytes of every on-disk block so the
// decoder can detect a truncated or corrupted tail.
func checksumBlock(payload []byte) uint64 {
	h, err := highwayhash.New64(blockChecksumKey)
	if err != nil {
		// Only fails if the key is the wrong length, which can't
		// happen with the fixed-size key above.
		panic(err)
	}
	_, _ = h.Write(payload)
	return h.Sum64()
}
