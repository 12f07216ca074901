package volume

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Nudger delivers hints that the set of mounted devices may have changed.
type Nudger interface {
	Nudges(ctx context.Context) (<-chan struct{}, error)
}

// Watcher tracks presence of the labelled volume and calls OnPresent each
// time it goes from absent to present.
type Watcher struct {
	locator   *Locator
	label     func() string
	onPresent func(root string)
	nudger    Nudger
	logger    *zap.Logger

	interval time.Duration
	settle   time.Duration

	mu      sync.Mutex
	present bool
	root    string
}

// WatcherConfig holds Watcher settings.
type WatcherConfig struct {
	Locator   *Locator
	Label     func() string
	OnPresent func(root string)
	// Nudger is optional; without it presence is only polled.
	Nudger Nudger
	Logger *zap.Logger
	// Interval is the presence poll period; zero disables polling.
	Interval time.Duration
	// Settle is the delay between a device event and the re-check, giving
	// the automounter time to mount.
	Settle time.Duration
}

// NewWatcher creates a Watcher.
func NewWatcher(cfg WatcherConfig) *Watcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	settle := cfg.Settle
	if settle <= 0 {
		settle = 1500 * time.Millisecond
	}
	return &Watcher{
		locator:   cfg.Locator,
		label:     cfg.Label,
		onPresent: cfg.OnPresent,
		nudger:    cfg.Nudger,
		logger:    logger,
		interval:  cfg.Interval,
		settle:    settle,
	}
}

// Present reports the last observed presence and root.
func (w *Watcher) Present() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root, w.present
}

// Run blocks until ctx is done. The presence at start is taken as the
// baseline and does not fire OnPresent.
func (w *Watcher) Run(ctx context.Context) {
	w.observe(false)

	var nudges <-chan struct{}
	if w.nudger != nil {
		ch, err := w.nudger.Nudges(ctx)
		if err != nil {
			w.logger.Warn("Device event monitor unavailable, relying on polling", zap.Error(err))
		} else {
			nudges = ch
		}
	}

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	// Mounting lags the device event; re-check once after the settle
	// delay and once more after a longer one.
	recheck := time.NewTimer(time.Hour)
	recheck.Stop()
	defer recheck.Stop()
	late := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			w.observe(true)
		case _, ok := <-nudges:
			if !ok {
				nudges = nil
				continue
			}
			w.logger.Debug("Device event received, scheduling presence check")
			late = false
			recheck.Reset(w.settle)
		case <-recheck.C:
			w.observe(true)
			if !late {
				late = true
				recheck.Reset(3 * w.settle)
			}
		}
	}
}

// Check re-evaluates presence immediately and fires OnPresent on an
// absent to present transition.
func (w *Watcher) Check() {
	w.observe(true)
}

func (w *Watcher) observe(fire bool) {
	label := ""
	if w.label != nil {
		label = w.label()
	}
	root, ok := w.locator.Locate(label)

	w.mu.Lock()
	was := w.present
	w.present = ok
	w.root = root
	w.mu.Unlock()

	switch {
	case ok && !was:
		w.logger.Info("Volume detected", zap.String("label", label), zap.String("root", root))
		if fire && w.onPresent != nil {
			w.onPresent(root)
		}
	case !ok && was:
		w.logger.Info("Volume removed", zap.String("label", label))
	}
}
