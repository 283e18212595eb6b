package nanolog

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ReadBlocks reads every block-aligned, checksummed block written by an
// OutputSink and returns the concatenated payload bytes (with their
// checksum prefixes stripped). It is the decoder-side counterpart to
// outputSink.layout.
func ReadBlocks(r io.Reader, blockSize int) ([]byte, error) {
	block := make([]byte, blockSize)
	var out []byte
	for {
		_, err := io.ReadFull(r, block)
		if err == io.EOF {
			return out, nil
		}
		if err == io.ErrUnexpectedEOF {
			return out, fmt.Errorf("nanolog: truncated block at byte %d", len(out))
		}
		if err != nil {
			return out, err
		}

		want := binary.LittleEndian.Uint64(block[0:checksumSize])
		payload := block[checksumSize:]
		got := checksumBlock(payload)
		if got != want {
			return out, fmt.Errorf("nanolog: checksum mismatch in block at byte %d", len(out))
		}
		out = append(out, payload...)
	}
}

// DecodeStream runs decompress repeatedly over data, stopping at the
// first position it cannot parse a complete record from -- which in
// practice is the zero padding appended by layout to reach a block
// boundary.
func DecodeStream(data []byte, decompress Decompressor) []DecodedRecord {
	var records []DecodedRecord
	pos := 0
	for pos < len(data) {
		rec, consumed, ok := decompress(data[pos:])
		if !ok || consumed == 0 {
			break
		}
		records = append(records, rec)
		pos += consumed
	}
	return records
}

// RenderLogfmt writes records to w in the same logfmt style the
// original library's decoder used for its own binary format,
// resolving each record's message text via table when present.
func RenderLogfmt(w io.Writer, records []DecodedRecord, table *MetadataTable) error {
	for _, rec := range records {
		format := ""
		if table != nil {
			if e, ok := table.Lookup(rec.ID); ok {
				format = e.Format
			}
		}
		if _, err := fmt.Fprintf(w, "time=%d id=%d", rec.TimeNanos, rec.ID); err != nil {
			return err
		}
		if format != "" {
			if _, err := fmt.Fprintf(w, " format=%q", format); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, " msg=%q\n", string(rec.Args)); err != nil {
			return err
		}
	}
	return nil
}
