package nanolog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLifecycleControllerSetLogFileAndSync(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	c := NewLifecycleController(WithIdlePollInterval(5 * time.Millisecond))
	defer c.Shutdown()

	if err := c.SetLogFile(path); err != nil {
		t.Fatalf("SetLogFile: %v", err)
	}

	p := acquireFrom(c.registry, c.config.StagingBufferSize)
	buf, err := p.Reserve(rawRecordHeaderSize + 3)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	n := EncodeRecord(buf, 1, 5, []byte("abc"))
	p.Commit(n)

	c.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty log file after Sync")
	}
}

func TestLifecycleControllerSetLogFileUnopenable(t *testing.T) {
	c := NewLifecycleController()
	defer c.Shutdown()

	err := c.SetLogFile(filepath.Join(t.TempDir(), "missing-dir", "app.log"))
	if err != ErrFileOpenFailed {
		t.Fatalf("got %v, want ErrFileOpenFailed", err)
	}
}

func TestLifecycleControllerPreallocate(t *testing.T) {
	c := NewLifecycleController()
	defer c.Shutdown()

	before := c.registry.count()
	p := c.Preallocate()
	defer p.Release()

	if c.registry.count() != before+1 {
		t.Fatalf("Preallocate should create a buffer immediately, count went %d -> %d", before, c.registry.count())
	}
}

func TestLifecycleControllerPrintStatsAndConfig(t *testing.T) {
	c := NewLifecycleController()
	defer c.Shutdown()

	var statsBuf, cfgBuf bytes.Buffer
	c.PrintStats(&statsBuf)
	c.PrintConfig(&cfgBuf)

	if !strings.Contains(statsBuf.String(), "scan_passes=") {
		t.Fatalf("PrintStats missing scan_passes: %s", statsBuf.String())
	}
	if !strings.Contains(cfgBuf.String(), "block_size=512") {
		t.Fatalf("PrintConfig missing block_size: %s", cfgBuf.String())
	}
}

func TestConvenienceLoggingRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	original := Default()
	defer SetDefault(original)

	c := NewLifecycleController()
	SetDefault(c)
	defer c.Shutdown()

	if err := c.SetLogFile(path); err != nil {
		t.Fatalf("SetLogFile: %v", err)
	}

	Info("hello %s", "world")
	Debug("a debug line")
	c.Sync()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	data, err := ReadBlocks(f, c.config.BlockSize)
	if err != nil {
		t.Fatalf("ReadBlocks: %v", err)
	}
	records := DecodeStream(data, PassthroughDecompressor)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	table := ConvenienceMetadataTable()
	if _, ok := table.Lookup(records[0].ID); !ok {
		t.Fatal("expected convenience registry to have metadata for the logged record")
	}
}
