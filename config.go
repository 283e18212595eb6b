package nanolog

import "time"

// Config holds the knobs the core itself needs. It is not a
// configuration-file loader (that remains an external concern) -- just
// the Go analogue of the source's Config.h constants.
type Config struct {
	// StagingBufferSize is the fixed capacity, in bytes, of every
	// per-producer StagingBuffer. Does not need to be a power of two.
	StagingBufferSize int

	// OutputBufferSize is the size, in bytes, of each of the worker's
	// two compress/output double buffers.
	OutputBufferSize int

	// BlockSize is the alignment, in bytes, the OutputSink pads writes
	// up to. 512 matches the direct-I/O block size on most platforms.
	BlockSize int

	// IdlePollInterval bounds how long the worker waits on its wake channel
	// when every buffer was empty on the last scan.
	IdlePollInterval time.Duration

	// LogFilePath is the initial output destination. Empty means no
	// file is open until SetLogFile is called.
	LogFilePath string
}

// Option configures a Config via functional options.
type Option func(*Config)

// DefaultConfig returns the core's default knob values.
func DefaultConfig() Config {
	return Config{
		StagingBufferSize: 1 << 20, // 1 MiB
		OutputBufferSize:  1 << 21, // 2 MiB
		BlockSize:         512,
		IdlePollInterval:  50 * time.Millisecond,
	}
}

// WithStagingBufferSize overrides the per-producer buffer capacity.
func WithStagingBufferSize(n int) Option {
	return func(c *Config) { c.StagingBufferSize = n }
}

// WithOutputBufferSize overrides the worker's double-buffer size.
func WithOutputBufferSize(n int) Option {
	return func(c *Config) { c.OutputBufferSize = n }
}

// WithBlockSize overrides the output alignment block size.
func WithBlockSize(n int) Option {
	return func(c *Config) { c.BlockSize = n }
}

// WithIdlePollInterval overrides the worker's idle wait timeout.
func WithIdlePollInterval(d time.Duration) Option {
	return func(c *Config) { c.IdlePollInterval = d }
}

// WithLogFilePath sets the initial output file.
func WithLogFilePath(path string) Option {
	return func(c *Config) { c.LogFilePath = path }
}

func newConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
