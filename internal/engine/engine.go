// Package engine mirrors clipboard content onto a removable volume and
// restores it from there.
//
// Every entry point returns an Outcome; nothing here panics or returns an
// error to the caller for clipboard or filesystem faults.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/berrythewa/clipdrive/internal/clipboard"
	"github.com/berrythewa/clipdrive/internal/manifest"
	"github.com/berrythewa/clipdrive/internal/platform"
	"github.com/berrythewa/clipdrive/internal/types"
)

// ErrGateClosed is reported once the engine has been closed.
var ErrGateClosed = errors.New("engine is closed")

// Defaults applied by New for zero Options fields.
const (
	DefaultRetryAttempts   = 3
	DefaultRetryBackoff    = 500 * time.Millisecond
	DefaultProgressTimeout = 250 * time.Millisecond
)

// State is the engine's current activity.
type State int32

const (
	Idle State = iota
	Persisting
	Restoring
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Persisting:
		return "persisting"
	case Restoring:
		return "restoring"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Locator resolves a volume label to a mounted root.
type Locator interface {
	Locate(label string) (string, bool)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(label string) (string, bool)

func (f LocatorFunc) Locate(label string) (string, bool) { return f(label) }

// Recorder stores outcomes, typically in the local journal.
type Recorder interface {
	Record(entry types.JournalEntry) error
}

// ProgressFunc observes bulk file copies as (current item, total items).
type ProgressFunc func(current, total int)

// Options configures an Engine.
type Options struct {
	Locator   Locator
	Label     func() string
	Clipboard platform.Writer

	Classifier *clipboard.Classifier
	Recorder   Recorder
	Logger     *zap.Logger

	RetryAttempts   int
	RetryBackoff    time.Duration
	EchoWindow      time.Duration
	ProgressTimeout time.Duration
}

// Engine serializes persist, restore and clear operations through a
// single-slot gate.
type Engine struct {
	locator    Locator
	label      func() string
	clipboard  platform.Writer
	classifier *clipboard.Classifier
	recorder   Recorder
	logger     *zap.Logger

	attempts        int
	backoff         time.Duration
	echoWindow      time.Duration
	progressTimeout time.Duration

	gate      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	state     atomic.Int32

	mu         sync.Mutex
	cancel     context.CancelFunc
	restored   *types.ClipboardContent
	restoredAt time.Time
	last       *Outcome
}

// New creates an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Locator == nil {
		return nil, errors.New("engine: no volume locator")
	}
	if opts.Clipboard == nil {
		return nil, errors.New("engine: no clipboard writer")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		locator:         opts.Locator,
		label:           opts.Label,
		clipboard:       opts.Clipboard,
		classifier:      opts.Classifier,
		recorder:        opts.Recorder,
		logger:          logger,
		attempts:        opts.RetryAttempts,
		backoff:         opts.RetryBackoff,
		echoWindow:      opts.EchoWindow,
		progressTimeout: opts.ProgressTimeout,
		gate:            make(chan struct{}, 1),
		closed:          make(chan struct{}),
	}
	if e.label == nil {
		e.label = func() string { return "" }
	}
	if e.classifier == nil {
		e.classifier = clipboard.NewClassifier(logger.Named("classifier"))
	}
	if e.attempts <= 0 {
		e.attempts = DefaultRetryAttempts
	}
	if e.backoff < 0 {
		e.backoff = 0
	} else if e.backoff == 0 {
		e.backoff = DefaultRetryBackoff
	}
	if e.progressTimeout <= 0 {
		e.progressTimeout = DefaultProgressTimeout
	}
	return e, nil
}

// State returns the current activity.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// LastOutcome returns the most recent non-routine outcome, if any.
func (e *Engine) LastOutcome() (Outcome, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return Outcome{}, false
	}
	return *e.last, true
}

// Close cancels any in-flight persist and makes later calls return
// ErrGateClosed outcomes.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.closed) })
	e.CancelInFlight()
}

// CancelInFlight cancels the persist currently copying, if any. It
// reports whether there was one.
func (e *Engine) CancelInFlight() bool {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel == nil {
		return false
	}
	e.logger.Info("Cancelling in-flight persist")
	cancel()
	return true
}

func (e *Engine) acquire(ctx context.Context) error {
	select {
	case <-e.closed:
		return ErrGateClosed
	default:
	}
	select {
	case e.gate <- struct{}{}:
		return nil
	case <-e.closed:
		return ErrGateClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) release() {
	<-e.gate
}

// Persist stores what p holds on the volume, replacing the previous
// snapshot. A persist started while another operation runs waits for it.
func (e *Engine) Persist(ctx context.Context, p clipboard.Payload, progress ProgressFunc) (out Outcome) {
	out = Outcome{Op: OpPersist, Started: time.Now()}
	defer e.guard(&out)

	if err := e.acquire(ctx); err != nil {
		out.Status, out.Err = StatusCancelled, err
		return out
	}
	defer e.release()

	e.state.Store(int32(Persisting))
	defer e.state.Store(int32(Idle))

	ctx, cancel := context.WithCancel(ctx)
	e.setCancel(cancel)
	defer func() {
		e.setCancel(nil)
		cancel()
	}()

	root, ok := e.locator.Locate(e.label())
	if !ok {
		out.Status = StatusVolumeAbsent
		return out
	}
	out.Volume = root

	content := e.classifier.Classify(p)
	out.Format = content.Format
	if e.isEcho(content) {
		out.Status = StatusSuppressed
		return out
	}

	return e.persist(ctx, root, content, newProgressRelay(progress, e.progressTimeout, e.logger), out)
}

func (e *Engine) persist(ctx context.Context, root string, content *types.ClipboardContent, progress *progressRelay, out Outcome) Outcome {
	var items []item
	if content.Format == types.FormatFileList {
		var skipped []error
		items, skipped = planItems(root, content.Files)
		for _, err := range skipped {
			e.logger.Warn("Skipping clipboard file", zap.Error(err))
		}
	}

	prev, err := e.loadPrevious(root)
	if err != nil {
		e.logger.Warn("Previous snapshot manifest is unreadable, removing auxiliary files only", zap.Error(err))
	}
	out.Cleanup = e.removeSnapshot(root, prev, protectSources(items))

	if err := ctx.Err(); err != nil {
		out.Status, out.Err = StatusCancelled, err
		return out
	}

	var m manifest.Manifest
	switch content.Format {
	case types.FormatText:
		m = manifest.Text(content.Text)
	case types.FormatHTML, types.FormatRTF:
		if content.Format == types.FormatHTML {
			m = manifest.HTML()
		} else {
			m = manifest.RTF()
		}
		aux, _ := m.AuxFile()
		if err := os.WriteFile(filepath.Join(root, aux), []byte(content.Text), 0o644); err != nil {
			out.Status, out.Err = StatusFailed, fmt.Errorf("write %s: %w", aux, err)
			return out
		}
	case types.FormatFileList:
		names, failed, err := e.copyItems(ctx, root, items, progress)
		if err != nil {
			out.Status, out.Err = StatusCancelled, err
			return out
		}
		out.Items = len(names)
		if len(failed) > 0 {
			out.Err = errors.Join(failed...)
			if len(names) == 0 {
				// Cleanup already removed the old manifest; the volume is
				// left without a snapshot.
				out.Status = StatusFailed
				return out
			}
		}
		m = manifest.FileList(names)
	default:
		m = manifest.Unsupported()
	}

	if err := manifest.Save(root, m); err != nil {
		out.Status, out.Err = StatusFailed, err
		return out
	}
	if out.Status == "" {
		out.Status = StatusPersisted
	}
	return out
}

// Restore pushes the stored snapshot back onto the system clipboard when
// the labelled volume is mounted.
func (e *Engine) Restore(ctx context.Context) (out Outcome) {
	out = Outcome{Op: OpRestore, Started: time.Now()}
	defer e.guard(&out)

	if err := e.acquire(ctx); err != nil {
		out.Status, out.Err = StatusCancelled, err
		return out
	}
	defer e.release()

	e.state.Store(int32(Restoring))
	defer e.state.Store(int32(Idle))

	root, ok := e.locator.Locate(e.label())
	if !ok {
		out.Status = StatusVolumeAbsent
		return out
	}
	out.Volume = root

	m, err := manifest.Load(root)
	switch {
	case errors.Is(err, os.ErrNotExist):
		out.Status = StatusNoSnapshot
		return out
	case err != nil:
		var perr *manifest.ParseError
		if errors.As(err, &perr) {
			out.Status = StatusCorruptSnapshot
		} else {
			out.Status = StatusFailed
		}
		out.Err = err
		return out
	}
	out.Format = m.Format

	var (
		push     func(context.Context) error
		restored = &types.ClipboardContent{Format: m.Format}
	)
	switch m.Format {
	case types.FormatText:
		restored.Text = m.Payload
		push = func(ctx context.Context) error { return e.clipboard.WriteText(ctx, m.Payload) }
	case types.FormatHTML, types.FormatRTF:
		aux, _ := m.AuxFile()
		data, err := os.ReadFile(filepath.Join(root, aux))
		if errors.Is(err, os.ErrNotExist) {
			out.Status, out.Err = StatusAuxMissing, fmt.Errorf("%s referenced by manifest is missing", aux)
			return out
		}
		if err != nil {
			out.Status, out.Err = StatusFailed, fmt.Errorf("read %s: %w", aux, err)
			return out
		}
		restored.Text = string(data)
		push = func(ctx context.Context) error { return e.clipboard.WriteRich(ctx, m.Format, restored.Text) }
	case types.FormatFileList:
		paths := resolveNames(root, m.Names(), e.logger)
		if len(paths) == 0 {
			out.Status = StatusNothingToRestore
			return out
		}
		out.Items = len(paths)
		restored.Files = paths
		push = func(ctx context.Context) error { return e.clipboard.WriteFiles(ctx, paths) }
	default:
		out.Status = StatusNothingToRestore
		return out
	}

	attempts, err := e.retry(ctx, push)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			out.Status = StatusCancelled
		case errors.Is(err, platform.ErrUnsupported):
			out.Status = StatusFailed
		default:
			out.Status = StatusClipboardBusy
		}
		out.Err = fmt.Errorf("set clipboard after %d attempt(s): %w", attempts, err)
		return out
	}

	e.mu.Lock()
	e.restored = restored
	e.restoredAt = time.Now()
	e.mu.Unlock()

	out.Status = StatusRestored
	return out
}

// Clear removes the stored snapshot and the files it lists.
func (e *Engine) Clear(ctx context.Context) (out Outcome) {
	out = Outcome{Op: OpClear, Started: time.Now()}
	defer e.guard(&out)

	if err := e.acquire(ctx); err != nil {
		out.Status, out.Err = StatusCancelled, err
		return out
	}
	defer e.release()

	root, ok := e.locator.Locate(e.label())
	if !ok {
		out.Status = StatusVolumeAbsent
		return out
	}
	out.Volume = root

	prev, err := e.loadPrevious(root)
	if err != nil {
		e.logger.Warn("Snapshot manifest is unreadable, removing auxiliary files only", zap.Error(err))
	}
	if prev != nil {
		out.Format = prev.Format
		out.Items = len(prev.Names())
	}
	out.Cleanup = e.removeSnapshot(root, prev, nil)
	out.Status = StatusCleared
	return out
}

// loadPrevious returns nil without error when no manifest exists.
func (e *Engine) loadPrevious(root string) (*manifest.Manifest, error) {
	m, err := manifest.Load(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (e *Engine) setCancel(cancel context.CancelFunc) {
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
}

func (e *Engine) isEcho(content *types.ClipboardContent) bool {
	if e.echoWindow <= 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.restored == nil || time.Since(e.restoredAt) > e.echoWindow {
		return false
	}
	return content.Equal(e.restored)
}

// guard turns a panic into a failed outcome, then logs and records out.
func (e *Engine) guard(out *Outcome) {
	if r := recover(); r != nil {
		e.logger.Error("Recovered from panic",
			zap.String("op", string(out.Op)),
			zap.Any("panic", r),
			zap.Stack("stack"))
		out.Status = StatusFailed
		out.Err = fmt.Errorf("panic: %v", r)
	}
	out.Duration = time.Since(out.Started)

	if ce := e.logger.Check(out.level(), "Clipboard sync "+string(out.Op)); ce != nil {
		ce.Write(out.fields()...)
	}
	for _, err := range out.Cleanup {
		e.logger.Debug("Cleanup failure", zap.Error(err))
	}

	if out.Status.Routine() && out.Op == OpPersist {
		return
	}

	e.mu.Lock()
	last := *out
	e.last = &last
	e.mu.Unlock()

	if e.recorder != nil {
		if err := e.recorder.Record(out.Entry()); err != nil {
			e.logger.Warn("Failed to record outcome", zap.Error(err))
		}
	}
}
