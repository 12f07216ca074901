//go:build linux

package volume

import (
	"context"

	"github.com/pilebones/go-udev/netlink"
	"go.uber.org/zap"
)

// UdevNudger turns kernel block device uevents into presence nudges.
type UdevNudger struct {
	logger *zap.Logger
}

// NewUdevNudger creates a nudger on the udev netlink socket.
func NewUdevNudger(logger *zap.Logger) *UdevNudger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UdevNudger{logger: logger}
}

// Nudges connects to the netlink socket and emits one signal per matching
// event. The channel is closed when ctx is done.
func (n *UdevNudger) Nudges(ctx context.Context) (<-chan struct{}, error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, err
	}

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	quit := conn.Monitor(queue, errs, blockMatcher())
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer conn.Close()
		defer close(quit)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-queue:
				n.logger.Debug("Block device event",
					zap.String("action", string(ev.Action)),
					zap.String("devname", ev.Env["DEVNAME"]))
				select {
				case out <- struct{}{}:
				default:
				}
			case err := <-errs:
				n.logger.Warn("Device event monitor error", zap.Error(err))
			}
		}
	}()

	n.logger.Info("Device event monitor started")
	return out, nil
}

// blockMatcher accepts add, change and remove events for block devices.
func blockMatcher() netlink.Matcher {
	action := "add|change|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
		},
	})
	return rules
}

// DefaultNudger returns the platform device event source.
func DefaultNudger(logger *zap.Logger) Nudger {
	return NewUdevNudger(logger)
}
