package nanolog

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/google/gops/agent"
)

// LifecycleController is the process-wide singleton that owns the
// background compression worker, the output sink, and the registry
// they both operate on. It constructs them lazily on first use so a
// program that never logs pays no background-thread cost.
type LifecycleController struct {
	config   Config
	registry *bufferRegistry
	sink     *outputSink
	worker   *compressionWorker
	diag     *diagWriter
	compress Compressor

	initOnce sync.Once

	producerPool sync.Pool

	gopsOnce    sync.Once
	gopsStarted bool
}

var defaultController unsafe.Pointer

func init() {
	c := newLifecycleController(newConfig())
	atomic.StorePointer(&defaultController, unsafe.Pointer(c))
}

func newLifecycleController(cfg Config) *LifecycleController {
	return &LifecycleController{
		config:   cfg,
		registry: newBufferRegistry(),
		diag:     defaultDiagWriter(),
		compress: PassthroughCompressor,
	}
}

// Default returns the current process-wide controller.
func Default() *LifecycleController {
	return (*LifecycleController)(atomic.LoadPointer(&defaultController))
}

// SetDefault installs c as the process-wide controller. Intended for
// tests that want an isolated registry/worker pair; production code
// should configure the existing Default controller instead of
// replacing it mid-flight.
func SetDefault(c *LifecycleController) {
	atomic.StorePointer(&defaultController, unsafe.Pointer(c))
}

// NewLifecycleController builds a standalone controller with its own
// registry, worker, and sink, useful for tests that need isolation
// from the package-level Default.
func NewLifecycleController(opts ...Option) *LifecycleController {
	return newLifecycleController(newConfig(opts...))
}

// ensureWorker performs first-use initialization of the sink and
// worker. Safe to call repeatedly; only the first call has effect.
func (c *LifecycleController) ensureWorker() {
	c.initOnce.Do(func() {
		c.sink = newOutputSink(c.config.BlockSize)
		if path := c.config.LogFilePath; path != "" {
			if f, err := openDirect(path); err != nil {
				c.diag.reportFileOpenFailure(path, err)
			} else {
				c.sink.setFile(f)
			}
		}
		c.worker = newCompressionWorker(c.config, c.registry, c.sink, c.compress, c.diag)
	})
}

// SetCompressor overrides the Compressor used by the background
// worker. Must be called before the first log record is produced;
// once the worker has started it is fixed for the controller's
// lifetime.
func (c *LifecycleController) SetCompressor(fn Compressor) {
	c.compress = fn
}

// SetLogFile opens path as the active output destination. Any write
// outstanding against the previous file completes first; the old file
// is then closed and the new one takes over. Returns ErrFileOpenFailed
// if path cannot be opened, leaving the previous file (if any) active.
func (c *LifecycleController) SetLogFile(path string) error {
	c.ensureWorker()

	f, err := openDirect(path)
	if err != nil {
		c.diag.reportFileOpenFailure(path, err)
		return ErrFileOpenFailed
	}

	if hadWrite, werr := c.sink.waitOutstanding(); hadWrite {
		c.worker.recordWriteResult(werr)
	}
	c.sink.setFile(f)
	c.diag.reportReopen(path)
	return nil
}

// Sync blocks until every record committed to any buffer before this
// call has been submitted to the output sink.
func (c *LifecycleController) Sync() {
	c.ensureWorker()
	c.worker.requestSync()
}

// Preallocate forces a StagingBuffer into existence for the calling
// goroutine immediately, eliminating first-log latency. The returned
// Producer should be retained and released like any other.
func (c *LifecycleController) Preallocate() *Producer {
	c.ensureWorker()
	return acquireFrom(c.registry, c.config.StagingBufferSize)
}

// PrintStats writes the worker's aggregate metrics to w in a simple
// key=value form, one metric per line.
func (c *LifecycleController) PrintStats(w io.Writer) {
	c.ensureWorker()
	m := c.worker.metrics.snapshot()
	fmt.Fprintf(w, "scan_passes=%d\n", m.ScanPasses)
	fmt.Fprintf(w, "bytes_in=%d\n", m.BytesIn)
	fmt.Fprintf(w, "bytes_out=%d\n", m.BytesOut)
	fmt.Fprintf(w, "pad_bytes=%d\n", m.PadBytes)
	fmt.Fprintf(w, "events_processed=%d\n", m.EventsProcessed)
	fmt.Fprintf(w, "writes_completed=%d\n", m.WritesCompleted)
	fmt.Fprintf(w, "writes_failed=%d\n", m.WritesFailed)
	fmt.Fprintf(w, "time_awake=%s\n", m.TimeAwake)
	fmt.Fprintf(w, "time_compressing=%s\n", m.TimeCompressing)
	fmt.Fprintf(w, "live_buffers=%d\n", c.registry.count())
}

// PrintConfig writes the active Config to w in the same key=value form
// as PrintStats.
func (c *LifecycleController) PrintConfig(w io.Writer) {
	fmt.Fprintf(w, "staging_buffer_size=%d\n", c.config.StagingBufferSize)
	fmt.Fprintf(w, "output_buffer_size=%d\n", c.config.OutputBufferSize)
	fmt.Fprintf(w, "block_size=%d\n", c.config.BlockSize)
	fmt.Fprintf(w, "idle_poll_interval=%s\n", c.config.IdlePollInterval)
	fmt.Fprintf(w, "log_file_path=%s\n", c.config.LogFilePath)
}

// EnableRemoteDiagnostics starts a github.com/google/gops agent
// listener so an operator can attach with the gops CLI to inspect this
// process's goroutines, memory stats, and GC trace while the worker is
// running. Safe to call multiple times; only the first call starts the
// listener.
func (c *LifecycleController) EnableRemoteDiagnostics() error {
	var err error
	c.gopsOnce.Do(func() {
		err = agent.Listen(agent.Options{ShutdownCleanup: true})
		c.gopsStarted = err == nil
	})
	return err
}

// Shutdown drains every buffer, flushes and closes the output file,
// and joins the background worker. Intended to run once at process
// exit; Default's controller is not automatically shut down.
func (c *LifecycleController) Shutdown() {
	c.ensureWorker()
	c.worker.shutdown()
}

// Close is an alias for Shutdown so LifecycleController satisfies
// io.Closer for callers that defer Close on the controller returned by
// NewLifecycleController.
func (c *LifecycleController) Close() error {
	c.Shutdown()
	return nil
}
