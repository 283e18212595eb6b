package nanolog

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Level is the severity of a convenience-API call. It is part of the
// key under which callSiteRegistry assigns record ids, so the same
// message logged at two levels gets two ids. The level itself is not
// written into the record or into its MetadataEntry.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// callSiteRegistry lazily assigns a stable id to each distinct message
// string seen by the convenience API, mirroring -- at much smaller
// scale and entirely at runtime -- what the build-time metadata
// generator does for generated call sites. It lets Debug/Info/Warn/
// Error/Fatal round-trip through the same StagingBuffer/Compressor
// pipeline as generated call sites without requiring a build step.
type callSiteRegistry struct {
	mu      sync.Mutex
	ids     map[string]uint32
	entries []MetadataEntry
	next    uint32
}

var convenienceRegistry = &callSiteRegistry{ids: make(map[string]uint32)}

func (r *callSiteRegistry) idFor(level Level, format string) uint32 {
	key := fmt.Sprintf("%d:%s", level, format)
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[key]; ok {
		return id
	}
	id := r.next
	r.next++
	r.ids[key] = id
	r.entries = append(r.entries, MetadataEntry{ID: id, Format: format})
	return id
}

// Table returns a snapshot MetadataTable covering every message string
// logged through the convenience API so far, suitable for handing to a
// decoder without a separate build-time generation step.
func (r *callSiteRegistry) Table() *MetadataTable {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make(map[uint32]MetadataEntry, len(r.entries))
	for _, e := range r.entries {
		entries[e.ID] = e
	}
	return &MetadataTable{entries: entries}
}

// ConvenienceMetadataTable exposes convenienceRegistry's accumulated
// table, for a host program that wants to pair the default log file
// with a matching table without running a separate generator.
func ConvenienceMetadataTable() *MetadataTable {
	return convenienceRegistry.Table()
}

func logConvenience(level Level, msg string, args ...any) {
	text := msg
	if len(args) > 0 {
		text = fmt.Sprint(append([]any{msg}, args...)...)
	}
	id := convenienceRegistry.idFor(level, msg)

	c := Default()
	p := c.leaseProducer()
	defer c.returnProducer(p)

	argBytes := []byte(text)
	n := rawRecordHeaderSize + len(argBytes)
	buf, err := p.Reserve(n)
	if err != nil {
		if err == ErrRecordTooLarge {
			panic(err)
		}
		return
	}
	written := EncodeRecord(buf, id, uint64(time.Now().UnixNano()), argBytes)
	p.Commit(written)
}

// Debug records a debug-level message through the default controller.
func Debug(msg string, args ...any) { logConvenience(LevelDebug, msg, args...) }

// Info records an info-level message through the default controller.
func Info(msg string, args ...any) { logConvenience(LevelInfo, msg, args...) }

// Warn records a warning-level message through the default controller.
func Warn(msg string, args ...any) { logConvenience(LevelWarn, msg, args...) }

// Error records an error-level message through the default controller.
func Error(msg string, args ...any) { logConvenience(LevelError, msg, args...) }

// Fatal records a fatal-level message, blocks until it is durably
// submitted, and then terminates the process.
func Fatal(msg string, args ...any) {
	logConvenience(LevelFatal, msg, args...)
	Default().Sync()
	os.Exit(1)
}
