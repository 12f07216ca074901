package daemon

import (
	"context"
	"fmt"

	"github.com/berrythewa/clipdrive/internal/engine"
	"github.com/berrythewa/clipdrive/internal/types"
)

// RunOnce performs a single engine operation in this process. It takes the
// daemon lock for the duration, so it fails with ErrAlreadyRunning while a
// daemon is up; callers should go through the socket in that case.
func RunOnce(ctx context.Context, d *Daemon, op engine.Op) (engine.Outcome, error) {
	if err := d.acquire(); err != nil {
		return engine.Outcome{}, err
	}
	defer d.release()

	if err := d.open(); err != nil {
		return engine.Outcome{}, err
	}
	defer d.close()
	defer d.engine.Close()

	switch op {
	case engine.OpRestore:
		return d.engine.Restore(ctx), nil
	case engine.OpPersist:
		return d.persistCurrent(ctx), nil
	case engine.OpClear:
		return d.engine.Clear(ctx), nil
	default:
		return engine.Outcome{}, fmt.Errorf("unknown operation %q", op)
	}
}

// History reads the journal directly. It needs the lock because bbolt
// allows a single writer process.
func History(d *Daemon, limit int) ([]types.JournalEntry, error) {
	if err := d.acquire(); err != nil {
		return nil, err
	}
	defer d.release()
	if err := d.openJournal(); err != nil {
		return nil, err
	}
	defer d.close()
	return d.journal.Recent(limit)
}
