package nanolog

import (
	"sync"
	"sync/atomic"
	"time"
)

// reserveMargin is the headroom a flush decision keeps free in the
// active compress buffer -- once less than this remains, the worker
// flushes rather than risk a record not fitting.
const reserveMargin = 4096

// WorkerMetrics is a point-in-time snapshot of the background worker's
// aggregate counters, printed by PrintStats.
type WorkerMetrics struct {
	ScanPasses      uint64
	BytesIn         uint64
	BytesOut        uint64
	PadBytes        uint64
	EventsProcessed uint64
	WritesCompleted uint64
	WritesFailed    uint64
	TimeAwake       time.Duration
	TimeCompressing time.Duration
}

type workerMetrics struct {
	scanPasses      atomic.Uint64
	bytesIn         atomic.Uint64
	bytesOut        atomic.Uint64
	padBytes        atomic.Uint64
	eventsProcessed atomic.Uint64
	writesCompleted atomic.Uint64
	writesFailed    atomic.Uint64
	timeAwake       atomic.Int64
	timeCompressing atomic.Int64
}

func (m *workerMetrics) snapshot() WorkerMetrics {
	return WorkerMetrics{
		ScanPasses:      m.scanPasses.Load(),
		BytesIn:         m.bytesIn.Load(),
		BytesOut:        m.bytesOut.Load(),
		PadBytes:        m.padBytes.Load(),
		EventsProcessed: m.eventsProcessed.Load(),
		WritesCompleted: m.writesCompleted.Load(),
		WritesFailed:    m.writesFailed.Load(),
		TimeAwake:       time.Duration(m.timeAwake.Load()),
		TimeCompressing: time.Duration(m.timeCompressing.Load()),
	}
}

// compressionWorker multiplexes across every live StagingBuffer,
// invokes the external Compressor on each available run of bytes, and
// drives the OutputSink. It runs on exactly one background goroutine.
type compressionWorker struct {
	cfg      Config
	registry *bufferRegistry
	sink     *outputSink
	compress Compressor

	active  []byte // compress_buf: currently being filled
	standby []byte // output_buf: most recently submitted (or reusable)

	wake          chan struct{}
	exitCh        chan struct{}
	doneCh        chan struct{}
	syncRequested atomic.Bool
	shouldExit    atomic.Bool

	syncMu sync.Mutex
	syncCh chan struct{}

	metrics workerMetrics
	diag    *diagWriter
}

func newCompressionWorker(cfg Config, reg *bufferRegistry, sink *outputSink, compress Compressor, diag *diagWriter) *compressionWorker {
	w := &compressionWorker{
		cfg:      cfg,
		registry: reg,
		sink:     sink,
		compress: compress,
		active:   make([]byte, 0, cfg.OutputBufferSize),
		standby:  make([]byte, 0, cfg.OutputBufferSize),
		wake:     make(chan struct{}, 1),
		exitCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		syncCh:   make(chan struct{}),
		diag:     diag,
	}
	go w.run()
	return w
}

func (w *compressionWorker) wakeUp() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *compressionWorker) shutdown() {
	w.shouldExit.Store(true)
	close(w.exitCh)
	<-w.doneCh
}

func (w *compressionWorker) requestSync() {
	w.syncRequested.Store(true)
	w.wakeUp()
	for {
		w.syncMu.Lock()
		ch := w.syncCh
		w.syncMu.Unlock()
		<-ch
		if !w.syncRequested.Load() {
			return
		}
		w.wakeUp()
	}
}

func (w *compressionWorker) signalSynced() {
	w.syncMu.Lock()
	old := w.syncCh
	w.syncCh = make(chan struct{})
	w.syncMu.Unlock()
	close(old)
}

// run is the worker's main loop: scan, reap, decide whether to flush,
// and idle on the wake channel when there was nothing to do.
func (w *compressionWorker) run() {
	defer close(w.doneCh)
	started := time.Now()
	for {
		if w.shouldExit.Load() {
			w.drainAndExit()
			w.metrics.timeAwake.Store(int64(time.Since(started)))
			return
		}

		progressed := w.scanOnce()
		w.reapOnce()

		if w.syncRequested.Swap(false) {
			// Scan at least once after observing the request: records
			// committed just before it may have missed the scan above.
			for {
				progressed = w.scanOnce()
				w.reapOnce()
				if !progressed {
					break
				}
			}
			w.flush()
			if hadWrite, err := w.sink.waitOutstanding(); hadWrite {
				w.recordWriteResult(err)
			}
			w.signalSynced()
			continue
		}

		if len(w.active) >= cap(w.active)-reserveMargin {
			w.flush()
		}

		if !progressed {
			if len(w.active) > 0 {
				w.flush()
			}
			w.signalSynced()
			select {
			case <-w.wake:
			case <-time.After(w.cfg.IdlePollInterval):
			case <-w.exitCh:
			}
		}
	}
}

func (w *compressionWorker) drainAndExit() {
	for w.scanOnce() {
	}
	w.reapOnce()
	w.flush()
	if hadWrite, err := w.sink.waitOutstanding(); hadWrite {
		w.recordWriteResult(err)
	}
	w.sink.close()
}

// scanOnce makes one round-robin pass over every live buffer, feeding
// available bytes through the Compressor. It returns true if any bytes
// were consumed.
func (w *compressionWorker) scanOnce() bool {
	start := time.Now()
	defer func() { w.metrics.timeCompressing.Add(int64(time.Since(start))) }()

	w.metrics.scanPasses.Add(1)
	progressed := false
	for _, b := range w.registry.snapshot() {
		data, ok := b.peek()
		if !ok || len(data) == 0 {
			continue
		}
		if cap(w.active)-len(w.active) < reserveMargin {
			w.flush()
		}
		out := w.active[len(w.active):cap(w.active)]
		consumed, written := w.compress(data, out)
		if consumed == 0 {
			continue
		}
		b.consume(consumed)
		w.active = w.active[:len(w.active)+written]
		w.metrics.bytesIn.Add(uint64(consumed))
		w.metrics.bytesOut.Add(uint64(written))
		w.metrics.eventsProcessed.Add(1)
		progressed = true
	}
	return progressed
}

func (w *compressionWorker) reapOnce() {
	for _, b := range w.registry.snapshot() {
		if b.canReap() {
			w.registry.remove(b)
		}
	}
}

// flush swaps the active buffer with the standby buffer and submits it
// to the sink, which takes care of block padding and checksumming. If
// a write of the current standby buffer (about to become the active
// buffer again) is still outstanding, flush waits for it to complete
// first.
func (w *compressionWorker) flush() {
	if len(w.active) == 0 {
		return
	}

	if hadWrite, err := w.sink.waitOutstanding(); hadWrite {
		w.recordWriteResult(err)
	}
	w.active, w.standby = w.standby, w.active

	pad, err := w.sink.submit(w.standby)
	w.metrics.padBytes.Add(uint64(pad))
	if err != nil {
		w.recordWriteResult(err)
	}
	w.active = w.active[:0]
}

func (w *compressionWorker) recordWriteResult(err error) {
	if err != nil {
		w.metrics.writesFailed.Add(1)
		if w.diag != nil {
			w.diag.reportWriteFailure(err)
		}
		return
	}
	w.metrics.writesCompleted.Add(1)
}
