package nanolog

import "encoding/binary"

// Compressor digests a prefix of a contiguous run of committed record
// bytes and writes a compressed representation into out, returning the
// number of input bytes consumed and output bytes written. It must
// make forward progress (consumed >= 1) whenever in holds at least one
// complete record; a short out with no room for even one record is
// signalled by returning (0, 0). Call-site codegen supplies the real
// format-aware implementation; this package only invokes whatever
// Compressor the LifecycleController was configured with.
type Compressor func(in, out []byte) (consumed, written int)

// Decompressor is the offline-decoder counterpart to Compressor: it
// parses one record out of the front of in, returning the record and
// the number of bytes consumed. ok is false when in does not hold a
// complete record.
type Decompressor func(in []byte) (rec DecodedRecord, consumed int, ok bool)

// DecodedRecord is one reconstructed log event, ready for rendering by
// a metadata-aware decoder.
type DecodedRecord struct {
	ID        uint32
	TimeNanos uint64
	Args      []byte
}

// rawRecordHeaderSize is the fixed header every record carries on the
// producer side: a metadata table id, a timestamp, and an argument
// byte-length.
const rawRecordHeaderSize = 4 + 8 + 2

// MinRecordSize is the smallest legal record (header plus zero
// argument bytes). Compressors must make progress on any input run of
// at least this many bytes.
const MinRecordSize = rawRecordHeaderSize

// EncodeRecord writes a raw record (id, timestamp, args) into buf,
// returning the number of bytes written. It is exposed for callers
// that build records by hand -- generated call-site code normally
// does this packing itself before calling Commit.
func EncodeRecord(buf []byte, id uint32, timeNanos uint64, args []byte) int {
	binary.LittleEndian.PutUint32(buf[0:], id)
	binary.LittleEndian.PutUint64(buf[4:], timeNanos)
	binary.LittleEndian.PutUint16(buf[12:], uint16(len(args)))
	copy(buf[rawRecordHeaderSize:], args)
	return rawRecordHeaderSize + len(args)
}

// PassthroughCompressor copies whole raw records verbatim from in to
// out without any entropy coding. It exists so the worker has a
// working default when the host program has not wired in generated
// compression, and it doubles as the reference fixture for round-trip
// tests: decode(compress(x)) == x byte-for-byte.
func PassthroughCompressor(in, out []byte) (consumed, written int) {
	for {
		if len(in)-consumed < rawRecordHeaderSize {
			return consumed, written
		}
		argLen := int(binary.LittleEndian.Uint16(in[consumed+12:]))
		recLen := rawRecordHeaderSize + argLen
		if len(in)-consumed < recLen {
			return consumed, written
		}
		if len(out)-written < recLen {
			return consumed, written
		}
		copy(out[written:], in[consumed:consumed+recLen])
		consumed += recLen
		written += recLen
	}
}

// PassthroughDecompressor is the symmetric counterpart to
// PassthroughCompressor. A record with both a zero timestamp and zero
// argument length is treated as the zero padding layout appends to
// reach a block boundary, not a real record -- a genuine record's
// timestamp is a wall-clock nanosecond value and is never exactly zero
// in practice -- so decoding stops there rather than manufacturing
// spurious empty records out of padding.
func PassthroughDecompressor(in []byte) (rec DecodedRecord, consumed int, ok bool) {
	if len(in) < rawRecordHeaderSize {
		return DecodedRecord{}, 0, false
	}
	id := binary.LittleEndian.Uint32(in[0:])
	ts := binary.LittleEndian.Uint64(in[4:])
	argLen := int(binary.LittleEndian.Uint16(in[12:]))
	if ts == 0 && argLen == 0 {
		return DecodedRecord{}, 0, false
	}
	recLen := rawRecordHeaderSize + argLen
	if len(in) < recLen {
		return DecodedRecord{}, 0, false
	}
	args := make([]byte, argLen)
	copy(args, in[rawRecordHeaderSize:recLen])
	return DecodedRecord{ID: id, TimeNanos: ts, Args: args}, recLen, true
}
