package nanolog

import (
	"bufio"
	"encoding/binary"
	"io"
)

// MetadataEntry describes one log-call site: where it came from in the
// source program and the format string to render its arguments with.
// The table itself is produced by an out-of-scope build-time generator;
// this package only loads and indexes it.
type MetadataEntry struct {
	ID     uint32
	File   string
	Line   int
	Format string
}

// MetadataTable is a read-only, load-once directory from record id to
// its call-site metadata, addressable by the decoder.
type MetadataTable struct {
	entries map[uint32]MetadataEntry
}

// Lookup returns the metadata for id, if present.
func (t *MetadataTable) Lookup(id uint32) (MetadataEntry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

// All returns every entry, ordered by id, for CLI listing purposes.
func (t *MetadataTable) All() []MetadataEntry {
	out := make([]MetadataEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].ID > out[j].ID; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// metadataMagic identifies a metadata table file, mirroring the way
// the on-disk log format is tagged.
const metadataMagic = uint32(0x4e4c4d54) // "NLMT"

// LoadMetadataTable reads a metadata table previously written by the
// build-time generator. The wire format is deliberately simple: a
// magic number, an entry count, then for each entry a uint32 id, a
// uint32 line number, and length-prefixed file and format strings.
func LoadMetadataTable(r io.Reader) (*MetadataTable, error) {
	br := bufio.NewReader(r)

	var magic uint32
	if err := binary.Read(br, binary.LittleEndian, &magic); err != nil {
		return nil, err
	}
	if magic != metadataMagic {
		return nil, ErrInvalidMetadataTable
	}

	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	table := &MetadataTable{entries: make(map[uint32]MetadataEntry, count)}
	for i := uint32(0); i < count; i++ {
		var id uint32
		var line uint32
		if err := binary.Read(br, binary.LittleEndian, &id); err != nil {
			return nil, err
		}
		if err := binary.Read(br, binary.LittleEndian, &line); err != nil {
			return nil, err
		}
		file, err := readLengthPrefixed(br)
		if err != nil {
			return nil, err
		}
		format, err := readLengthPrefixed(br)
		if err != nil {
			return nil, err
		}
		table.entries[id] = MetadataEntry{ID: id, File: file, Line: int(line), Format: format}
	}
	return table, nil
}

// WriteMetadataTable writes entries to w in the format LoadMetadataTable
// reads back. It is a small convenience for tests and for the
// convenience-logging registry's own table; the build-time generator
// for call-site metadata remains an external concern.
func WriteMetadataTable(w io.Writer, entries []MetadataEntry) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, metadataMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := binary.Write(bw, binary.LittleEndian, e.ID); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(e.Line)); err != nil {
			return err
		}
		if err := writeLengthPrefixed(bw, e.File); err != nil {
			return err
		}
		if err := writeLengthPrefixed(bw, e.Format); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeLengthPrefixed(bw *bufio.Writer, s string) error {
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := bw.WriteString(s)
	return err
}

func readLengthPrefixed(br *bufio.Reader) (string, error) {
	var n uint16
	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
