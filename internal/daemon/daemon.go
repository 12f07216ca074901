// Package daemon wires the clipboard, the engine, volume presence and the
// control socket into one long-running process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/berrythewa/clipdrive/internal/config"
	"github.com/berrythewa/clipdrive/internal/engine"
	"github.com/berrythewa/clipdrive/internal/ipc"
	"github.com/berrythewa/clipdrive/internal/notify"
	"github.com/berrythewa/clipdrive/internal/platform"
	"github.com/berrythewa/clipdrive/internal/storage"
	"github.com/berrythewa/clipdrive/internal/types"
	"github.com/berrythewa/clipdrive/internal/volume"
)

// ErrAlreadyRunning is returned when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another clipdrive instance is already running")

// Option overrides a collaborator, mostly for tests.
type Option func(*Daemon)

// WithClipboard sets the system clipboard implementation.
func WithClipboard(c platform.Clipboard) Option { return func(d *Daemon) { d.clip = c } }

// WithSource sets the clipboard change source.
func WithSource(s notify.Source) Option { return func(d *Daemon) { d.source = s } }

// WithEnumerator sets the mounted volume enumerator.
func WithEnumerator(e volume.Enumerator) Option { return func(d *Daemon) { d.enum = e } }

// WithNudger sets the device event source.
func WithNudger(n volume.Nudger) Option { return func(d *Daemon) { d.nudger = n } }

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *zap.Logger

	clip   platform.Clipboard
	source notify.Source
	enum   volume.Enumerator
	nudger volume.Nudger

	lock    *flock.Flock
	label   *config.LabelWatcher
	locator *volume.Locator
	journal *storage.BoltJournal
	engine  *engine.Engine
	notify  *notify.Service
	watcher *volume.Watcher

	// One-slot queues: a pending request absorbs further ones until the
	// worker picks it up.
	persistQ chan struct{}
	restoreQ chan struct{}

	startedAt time.Time
	running   atomic.Bool
	wg        sync.WaitGroup
}

// New constructs a daemon. Nothing is started until Run.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		lock:     flock.New(cfg.SystemPaths.LockFile),
		label:    config.NewLabelWatcher(cfg.SystemPaths.ConfigFile, cfg.VolumeLabel),
		persistQ: make(chan struct{}, 1),
		restoreQ: make(chan struct{}, 1),
	}
	if cfg.Volume.WatchDevices {
		d.nudger = volume.DefaultNudger(logger.Named("udev"))
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run starts every service, performs the startup restore and blocks until
// ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.release()

	if err := d.open(); err != nil {
		return err
	}
	defer d.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.startedAt = time.Now()
	d.running.Store(true)
	defer d.running.Store(false)
	d.logger.Info("clipdrive daemon started",
		zap.Int("pid", os.Getpid()),
		zap.String("label", d.label.Label()),
		zap.String("lock", d.cfg.SystemPaths.LockFile))

	d.engine.Restore(ctx)

	if err := d.startNotifier(ctx); err != nil {
		d.logger.Error("Clipboard change notifications unavailable", zap.Error(err))
	}
	defer d.notify.Stop()

	d.watcher = volume.NewWatcher(volume.WatcherConfig{
		Locator:   d.locator,
		Label:     d.label.Label,
		OnPresent: func(string) { enqueue(d.restoreQ) },
		Nudger:    d.nudger,
		Logger:    d.logger.Named("watcher"),
		Interval:  d.cfg.PresencePoll(),
		Settle:    d.cfg.Settle(),
	})

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.watcher.Run(ctx)
	}()
	go func() {
		defer d.wg.Done()
		d.work(ctx)
	}()

	srv := ipc.NewServer(d.cfg.SystemPaths.SocketPath, d.handle, d.logger.Named("ipc"))
	ln, err := srv.Listen()
	if err != nil {
		cancel()
		d.wg.Wait()
		return err
	}
	serveErr := srv.Serve(ctx, ln)

	d.engine.Close()
	cancel()
	d.wg.Wait()
	d.logger.Info("clipdrive daemon stopped")
	return serveErr
}

func (d *Daemon) acquire() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

func (d *Daemon) release() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("Failed to release daemon lock", zap.Error(err))
	}
}

func (d *Daemon) openJournal() error {
	journal, err := storage.NewBoltJournal(storage.JournalConfig{
		DBPath: d.cfg.SystemPaths.DBFile,
		Keep:   d.cfg.Journal.Keep,
		Logger: d.logger.Named("journal"),
	})
	if err != nil {
		return err
	}
	d.journal = journal
	return nil
}

// open builds the journal, clipboard and engine.
func (d *Daemon) open() error {
	if err := d.openJournal(); err != nil {
		return err
	}
	journal := d.journal

	if d.clip == nil {
		clip, err := platform.New(d.cfg.Clipboard.Backend, d.logger.Named("platform"))
		if err != nil {
			journal.Close()
			return fmt.Errorf("open clipboard: %w", err)
		}
		d.clip = clip
	}
	if d.enum == nil {
		d.enum = volume.DefaultEnumerator()
	}
	d.locator = volume.NewLocator(d.enum, d.logger.Named("volume"),
		volume.WithRequireRemovable(d.cfg.Sync.RequireRemovable))

	eng, err := engine.New(engine.Options{
		Locator:       d.locator,
		Label:         d.label.Label,
		Clipboard:     d.clip,
		Recorder:      journal,
		Logger:        d.logger.Named("engine"),
		RetryAttempts: d.cfg.Sync.RetryAttempts,
		RetryBackoff:  d.cfg.RetryBackoff(),
		EchoWindow:    d.cfg.EchoWindow(),
	})
	if err != nil {
		journal.Close()
		return err
	}
	d.engine = eng
	return nil
}

func (d *Daemon) close() {
	if err := d.journal.Close(); err != nil {
		d.logger.Warn("Failed to close journal", zap.Error(err))
	}
}

// startNotifier subscribes to clipboard changes, falling back to polling
// when the native source cannot start.
func (d *Daemon) startNotifier(ctx context.Context) error {
	source := d.source
	if source == nil {
		src, err := notify.Detect(d.cfg.Clipboard.Backend, d.clip.Fingerprint, d.cfg.PollInterval(), d.logger.Named("notify"))
		if err != nil {
			d.logger.Warn("Clipboard notifier unavailable, polling", zap.Error(err))
			src = notify.NewPollSource(d.clip.Fingerprint, d.cfg.PollInterval(), d.logger.Named("notify"))
		}
		source = src
	}

	d.notify = notify.NewService(source, d.logger.Named("notify"))
	d.notify.Subscribe(d)
	err := d.notify.Start(ctx)
	if err == nil || source.Name() == notify.BackendPoll {
		return err
	}

	d.logger.Warn("Clipboard notifier failed to start, polling instead",
		zap.String("source", source.Name()), zap.Error(err))
	d.notify = notify.NewService(notify.NewPollSource(d.clip.Fingerprint, d.cfg.PollInterval(), d.logger.Named("notify")), d.logger.Named("notify"))
	d.notify.Subscribe(d)
	return d.notify.Start(ctx)
}

// ClipboardChanged queues a persist of the current clipboard.
func (d *Daemon) ClipboardChanged() {
	enqueue(d.persistQ)
}

func enqueue(q chan struct{}) {
	select {
	case q <- struct{}{}:
	default:
	}
}

// work drains the queues. Restores go first: they follow a volume being
// plugged in and the clipboard should reflect it before further copies.
func (d *Daemon) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.restoreQ:
			d.engine.Restore(ctx)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-d.restoreQ:
			d.engine.Restore(ctx)
		case <-d.persistQ:
			d.persistCurrent(ctx)
		}
	}
}

// persistCurrent snapshots the clipboard and persists it.
func (d *Daemon) persistCurrent(ctx context.Context) engine.Outcome {
	payload, err := d.clip.Snapshot(ctx)
	if err != nil {
		level := d.logger.Warn
		if errors.Is(err, platform.ErrUnsupported) {
			level = d.logger.Debug
		}
		level("Failed to read clipboard", zap.Error(err))
		return engine.Outcome{Op: engine.OpPersist, Status: engine.StatusFailed, Err: err}
	}
	return d.engine.Persist(ctx, payload, nil)
}

// Status reports the daemon's runtime state.
func (d *Daemon) Status() types.DaemonStatus {
	st := types.DaemonStatus{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		StartedAt:     d.startedAt,
		VolumeLabel:   d.label.Label(),
		DeviceWatch:   d.nudger != nil,
		PendingEvents: len(d.persistQ) + len(d.restoreQ),
	}
	if d.engine != nil {
		st.EngineState = d.engine.State().String()
		if out, ok := d.engine.LastOutcome(); ok {
			entry := out.Entry()
			st.LastOutcome = &entry
		}
	}
	if d.notify != nil {
		st.Notifier = d.notify.SourceName()
	}
	if d.watcher != nil {
		if root, ok := d.watcher.Present(); ok {
			st.VolumeRoot = root
		}
	}
	return st
}
