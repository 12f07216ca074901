package daemon

import (
	"context"

	"go.uber.org/zap"

	"github.com/berrythewa/clipdrive/internal/engine"
	"github.com/berrythewa/clipdrive/internal/ipc"
)

const defaultHistoryLimit = 20

// handle serves control socket requests.
func (d *Daemon) handle(ctx context.Context, req *ipc.Request) *ipc.Response {
	switch req.Command {
	case ipc.CmdStatus:
		return ipc.OK("", d.Status())
	case ipc.CmdRestore:
		return outcomeResponse(d.engine.Restore(ctx))
	case ipc.CmdPersist:
		return outcomeResponse(d.persistCurrent(ctx))
	case ipc.CmdClear:
		return outcomeResponse(d.engine.Clear(ctx))
	case ipc.CmdCancel:
		if d.engine.CancelInFlight() {
			return ipc.OK("cancelled in-flight persist", nil)
		}
		return ipc.OK("nothing to cancel", nil)
	case ipc.CmdHistory:
		entries, err := d.journal.Recent(req.IntArg("limit", defaultHistoryLimit))
		if err != nil {
			d.logger.Warn("Failed to read journal", zap.Error(err))
			return ipc.Errorf("%v", err)
		}
		return ipc.OK("", entries)
	default:
		return ipc.Errorf("unknown command %q", req.Command)
	}
}

// outcomeResponse reports the outcome as data; routine no-ops are not errors.
func outcomeResponse(out engine.Outcome) *ipc.Response {
	resp := ipc.OK(string(out.Status), out.Entry())
	if !out.Status.OK() && !out.Status.Routine() {
		resp.Status = ipc.StatusError
		if out.Err != nil {
			resp.Message = out.Err.Error()
		}
	}
	return resp
}
