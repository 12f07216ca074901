package engine

import (
	"errors"
	"time"

	"github.com/berrythewa/clipdrive/internal/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Op names an engine entry point.
type Op string

const (
	OpPersist Op = "persist"
	OpRestore Op = "restore"
	OpClear   Op = "clear"
)

// Status is the result category of one operation.
type Status string

const (
	StatusPersisted        Status = "persisted"
	StatusRestored         Status = "restored"
	StatusCleared          Status = "cleared"
	StatusVolumeAbsent     Status = "volume_absent"
	StatusNoSnapshot       Status = "no_snapshot"
	StatusCorruptSnapshot  Status = "corrupt_snapshot"
	StatusAuxMissing       Status = "aux_missing"
	StatusNothingToRestore Status = "nothing_to_restore"
	StatusSuppressed       Status = "suppressed"
	StatusClipboardBusy    Status = "clipboard_busy"
	StatusCancelled        Status = "cancelled"
	StatusFailed           Status = "failed"
)

// OK reports whether the status means the operation did its work.
func (s Status) OK() bool {
	switch s {
	case StatusPersisted, StatusRestored, StatusCleared:
		return true
	}
	return false
}

// Routine reports whether the status is a normal no-op rather than a
// problem.
func (s Status) Routine() bool {
	switch s {
	case StatusVolumeAbsent, StatusNoSnapshot, StatusNothingToRestore, StatusSuppressed:
		return true
	}
	return false
}

// Outcome is what every entry point returns instead of an error.
type Outcome struct {
	Op       Op
	Status   Status
	Format   types.Format
	Items    int
	Volume   string
	Err      error
	Cleanup  []error
	Started  time.Time
	Duration time.Duration
}

// CleanupErr joins the individual cleanup failures.
func (o Outcome) CleanupErr() error {
	return errors.Join(o.Cleanup...)
}

// Entry converts o for the journal.
func (o Outcome) Entry() types.JournalEntry {
	e := types.JournalEntry{
		Time:     o.Started,
		Op:       string(o.Op),
		Status:   string(o.Status),
		Format:   o.Format,
		Items:    o.Items,
		Volume:   o.Volume,
		Cleanup:  len(o.Cleanup),
		Duration: o.Duration,
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	return e
}

func (o Outcome) level() zapcore.Level {
	switch {
	case o.Status.OK():
		if len(o.Cleanup) > 0 || o.Err != nil {
			return zapcore.WarnLevel
		}
		return zapcore.InfoLevel
	case o.Status.Routine():
		return zapcore.DebugLevel
	case o.Status == StatusFailed:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

func (o Outcome) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("op", string(o.Op)),
		zap.String("status", string(o.Status)),
		zap.Duration("duration", o.Duration),
	}
	if o.Format != "" {
		fields = append(fields, zap.String("format", o.Format.Short()))
	}
	if o.Items > 0 {
		fields = append(fields, zap.Int("items", o.Items))
	}
	if o.Volume != "" {
		fields = append(fields, zap.String("volume", o.Volume))
	}
	if o.Err != nil {
		fields = append(fields, zap.Error(o.Err))
	}
	if len(o.Cleanup) > 0 {
		fields = append(fields, zap.Int("cleanup_failures", len(o.Cleanup)))
	}
	return fields
}
