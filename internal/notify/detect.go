package notify

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// Backends accepted by Detect.
const (
	BackendAuto    = "auto"
	BackendX11     = "x11"
	BackendWayland = "wayland"
	BackendPoll    = "poll"
)

// Detect picks a Source for backend. In auto mode Wayland wins when
// wl-paste is installed, then X11, then polling via fp.
func Detect(backend string, fp FingerprintFunc, interval time.Duration, logger *zap.Logger) (Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch backend {
	case BackendWayland:
		return NewWaylandSource(logger), nil
	case BackendX11:
		return newX11Source(logger)
	case BackendPoll:
		return NewPollSource(fp, interval, logger), nil
	case "", BackendAuto:
	default:
		return nil, fmt.Errorf("unknown clipboard backend %q", backend)
	}

	if os.Getenv("WAYLAND_DISPLAY") != "" && hasCommand("wl-paste") {
		return NewWaylandSource(logger), nil
	}
	if os.Getenv("DISPLAY") != "" {
		if src, err := newX11Source(logger); err == nil {
			return src, nil
		}
	}
	logger.Info("No native clipboard notifications available, polling", zap.Duration("interval", interval))
	return NewPollSource(fp, interval, logger), nil
}

func hasCommand(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
