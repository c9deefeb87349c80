package meltsenv

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// DefaultMaxSubscribers bounds reload notification channels.
const DefaultMaxSubscribers = 100

// WatchOptions configures environment file watching behavior
type WatchOptions struct {
	// PollInterval for file stat checks (minimum 100ms)
	PollInterval time.Duration

	// Debounce duration to avoid rapid reloads
	Debounce time.Duration

	// MaxSubscribers limits concurrent notification channels
	MaxSubscribers int
}

// DefaultWatchOptions returns the standard watch options
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		PollInterval:   DefaultPollInterval,
		Debounce:       DefaultDebounce,
		MaxSubscribers: DefaultMaxSubscribers,
	}
}

// watcher manages file watching state
type watcher struct {
	ctx           context.Context
	cancel        context.CancelFunc
	opts          WatchOptions
	filePath      string
	lastModTime   time.Time
	lastSize      int64
	mu            sync.Mutex
	subscribers   map[int64]chan string
	nextID        int64
	debounceTimer *time.Timer
}

// AutoReload starts watching the previously loaded environment file and
// reapplies the file source when it changes.
func (s *Settings) AutoReload() error {
	return s.AutoReloadWithOptions(DefaultWatchOptions())
}

// AutoReloadWithOptions starts watching with custom options
func (s *Settings) AutoReloadWithOptions(opts WatchOptions) error {
	if opts.PollInterval < MinPollInterval {
		opts.PollInterval = MinPollInterval
	}
	if opts.MaxSubscribers <= 0 {
		opts.MaxSubscribers = DefaultMaxSubscribers
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.filePath == "" {
		return fmt.Errorf("no environment file loaded, nothing to watch")
	}

	if s.watcher != nil {
		if s.watcher.filePath == s.filePath {
			return nil // Already watching this file
		}
		s.watcher.stop()
		s.watcher = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		ctx:         ctx,
		cancel:      cancel,
		opts:        opts,
		filePath:    s.filePath,
		subscribers: make(map[int64]chan string),
	}
	if info, err := os.Stat(w.filePath); err == nil {
		w.lastModTime = info.ModTime()
		w.lastSize = info.Size()
	}
	s.watcher = w

	go w.run(s)
	return nil
}

// StopReload stops the active watcher, if any.
func (s *Settings) StopReload() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.watcher != nil {
		s.watcher.stop()
		s.watcher = nil
	}
}

// Subscribe returns a channel receiving the file path after each reload,
// plus a cancel function. The channel is buffered; slow consumers miss
// intermediate notifications rather than blocking the watcher.
func (s *Settings) Subscribe() (<-chan string, func(), error) {
	s.mutex.RLock()
	w := s.watcher
	s.mutex.RUnlock()

	if w == nil {
		return nil, nil, fmt.Errorf("watcher not running, call AutoReload first")
	}
	return w.subscribe()
}

func (w *watcher) subscribe() (<-chan string, func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.subscribers) >= w.opts.MaxSubscribers {
		return nil, nil, fmt.Errorf("subscriber limit reached (%d)", w.opts.MaxSubscribers)
	}

	id := w.nextID
	w.nextID++
	ch := make(chan string, 1)
	w.subscribers[id] = ch

	cancel := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if existing, ok := w.subscribers[id]; ok {
			delete(w.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel, nil
}

func (w *watcher) stop() {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	for id, ch := range w.subscribers {
		delete(w.subscribers, id)
		close(ch)
	}
}

// run polls the file until the watcher is stopped.
func (w *watcher) run(s *Settings) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.check(s)
		}
	}
}

// check stats the file and schedules a debounced reload on change.
func (w *watcher) check(s *Settings) {
	info, err := os.Stat(w.filePath)
	if err != nil {
		// File temporarily missing (editors replace via rename); wait for
		// it to reappear.
		return
	}

	if info.ModTime().Equal(w.lastModTime) && info.Size() == w.lastSize {
		return
	}
	w.lastModTime = info.ModTime()
	w.lastSize = info.Size()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Reset(w.opts.Debounce)
		return
	}
	w.debounceTimer = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		w.debounceTimer = nil
		w.mu.Unlock()
		w.reload(s)
	})
}

// reload reapplies the file source and notifies subscribers.
func (w *watcher) reload(s *Settings) {
	if w.ctx.Err() != nil {
		return
	}
	if err := s.LoadFile(w.filePath); err != nil {
		// A malformed or vanished file never clobbers the current table;
		// keep serving the last good state.
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subscribers {
		select {
		case ch <- w.filePath:
		default:
		}
	}
}
