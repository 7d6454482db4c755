package jobs

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks.
type TaskFn func()

// Runner manages the server's periodic and delayed background tasks,
// such as ranking rebuilds and stalled-battle sweeps.
type Runner struct {
	mu      sync.Mutex
	tickers map[string]*tickerEntry
	timers  map[string]*time.Timer
	logger  *zap.Logger
	stopCh  chan struct{}
}

type tickerEntry struct {
	ticker *time.Ticker
	stopCh chan struct{}
}

// New creates a new Runner.
func New(logger *zap.Logger) *Runner {
	return &Runner{
		tickers: make(map[string]*tickerEntry),
		timers:  make(map[string]*time.Timer),
		stopCh:  make(chan struct{}),
		logger:  logger,
	}
}

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced.
func (r *Runner) AddTicker(name string, interval time.Duration, fn TaskFn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.tickers[name]; ok {
		close(old.stopCh)
		delete(r.tickers, name)
	}

	entry := &tickerEntry{
		ticker: time.NewTicker(interval),
		stopCh: make(chan struct{}),
	}
	r.tickers[name] = entry

	go func() {
		for {
			select {
			case <-entry.ticker.C:
				r.runSafely(name, fn)
			case <-entry.stopCh:
				entry.ticker.Stop()
				return
			case <-r.stopCh:
				entry.ticker.Stop()
				return
			}
		}
	}()
	r.logger.Info("background task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// AddDelay runs fn once after the given delay.
func (r *Runner) AddDelay(name string, delay time.Duration, fn TaskFn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.timers[name]; ok {
		old.Stop()
	}
	r.timers[name] = time.AfterFunc(delay, func() {
		defer func() {
			r.mu.Lock()
			delete(r.timers, name)
			r.mu.Unlock()
		}()
		r.runSafely(name, fn)
	})
}

func (r *Runner) runSafely(name string, fn TaskFn) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("background task panicked",
				zap.String("task", name),
				zap.Any("recover", rec))
		}
	}()
	fn()
}

// Remove stops and removes a ticker or delay task by name.
func (r *Runner) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.tickers[name]; ok {
		close(entry.stopCh)
		delete(r.tickers, name)
	}
	if t, ok := r.timers[name]; ok {
		t.Stop()
		delete(r.timers, name)
	}
}

// Stop stops all tasks.
func (r *Runner) Stop() {
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
}

// ListTickers returns the names of all registered ticker tasks.
func (r *Runner) ListTickers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tickers))
	for name := range r.tickers {
		names = append(names, name)
	}
	return names
}
