package meltsenv

import "time"

// Timing constants for the polling reloader.
const (
	MinPollInterval     = 100 * time.Millisecond // Hard floor for file stat polling
	ShutdownTimeout     = 100 * time.Millisecond // Graceful watcher termination window
	DefaultDebounce     = 500 * time.Millisecond // File change coalescence period
	DefaultPollInterval = time.Second            // Standard file monitoring frequency
)
