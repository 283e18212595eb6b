package nanolog

import (
	"bytes"
	"strings"
	"testing"
)

func TestReadBlocksAndDecodeStream(t *testing.T) {
	s := &outputSink{blockSize: 64}

	raw := make([]byte, 256)
	n1 := EncodeRecord(raw, 1, 10, []byte("first"))
	n2 := EncodeRecord(raw[n1:], 2, 20, []byte("second message"))
	blocks, _ := s.layout(raw[:n1+n2])

	payload, err := ReadBlocks(bytes.NewReader(blocks), 64)
	if err != nil {
		t.Fatalf("ReadBlocks: %v", err)
	}

	records := DecodeStream(payload, PassthroughDecompressor)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if string(records[0].Args) != "first" || string(records[1].Args) != "second message" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestReadBlocksDetectsCorruption(t *testing.T) {
	s := &outputSink{blockSize: 64}
	raw := make([]byte, 64)
	n := EncodeRecord(raw, 1, 10, []byte("payload"))
	blocks, _ := s.layout(raw[:n])

	blocks[len(blocks)-1] ^= 0xff // flip a payload byte without updating the checksum

	_, err := ReadBlocks(bytes.NewReader(blocks), 64)
	if err == nil {
		t.Fatal("expected a checksum mismatch error")
	}
}

func TestReadBlocksDetectsTruncation(t *testing.T) {
	s := &outputSink{blockSize: 64}
	raw := make([]byte, 64)
	n := EncodeRecord(raw, 1, 10, []byte("payload"))
	blocks, _ := s.layout(raw[:n])

	_, err := ReadBlocks(bytes.NewReader(blocks[:len(blocks)-5]), 64)
	if err == nil {
		t.Fatal("expected a truncation error")
	}
}

func TestRenderLogfmtResolvesFormat(t *testing.T) {
	records := []DecodedRecord{
		{ID: 5, TimeNanos: 123, Args: []byte("hello")},
	}
	table, err := func() (*MetadataTable, error) {
		var buf bytes.Buffer
		if err := WriteMetadataTable(&buf, []MetadataEntry{{ID: 5, File: "m.go", Line: 1, Format: "greeting: %s"}}); err != nil {
			return nil, err
		}
		return LoadMetadataTable(&buf)
	}()
	if err != nil {
		t.Fatalf("building table: %v", err)
	}

	var out bytes.Buffer
	if err := RenderLogfmt(&out, records, table); err != nil {
		t.Fatalf("RenderLogfmt: %v", err)
	}
	if !strings.Contains(out.String(), `format="greeting: %s"`) {
		t.Fatalf("expected resolved format string in output: %s", out.String())
	}
	if !strings.Contains(out.String(), `msg="hello"`) {
		t.Fatalf("expected message in output: %s", out.String())
	}
}
