// Package nanolog provides the runtime core of a nanosecond-scale
// structured logging system. Call sites append a small binary record to
// a per-goroutine staging queue; a single background worker drains every
// queue, compresses the records, and writes them to a file. Formatting
// never happens on a producer's path.
package nanolog
