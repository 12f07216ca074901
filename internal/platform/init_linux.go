//go:build linux

package platform

import (
	"fmt"
	"os"
	"os/exec"

	cliplib "github.com/atotto/clipboard"
	"go.uber.org/zap"
)

func init() {
	RegisterFactory(newLinuxClipboard)
}

func newLinuxClipboard(backend string, logger *zap.Logger) (Clipboard, error) {
	switch backend {
	case "x11":
		return commandClipboard(XClip, logger)
	case "wayland":
		return commandClipboard(WlClipboard, logger)
	case "", "auto", "poll":
	default:
		return nil, fmt.Errorf("unknown clipboard backend %q", backend)
	}

	if os.Getenv("WAYLAND_DISPLAY") != "" && hasCommand(WlClipboard.ReadBin) && hasCommand(WlClipboard.WriteBin) {
		return commandClipboard(WlClipboard, logger)
	}
	if os.Getenv("DISPLAY") != "" && hasCommand(XClip.ReadBin) {
		return commandClipboard(XClip, logger)
	}
	if cliplib.Unsupported {
		return nil, fmt.Errorf("%w: install xclip or wl-clipboard", ErrNoBackend)
	}
	logger.Warn("Neither xclip nor wl-clipboard found, only plain text is supported")
	return NewTextClipboard(logger), nil
}

func commandClipboard(tool Tool, logger *zap.Logger) (Clipboard, error) {
	for _, bin := range []string{tool.ReadBin, tool.WriteBin} {
		if !hasCommand(bin) {
			return nil, fmt.Errorf("%w: %s not found in PATH", ErrNoBackend, bin)
		}
	}
	c := NewCommandClipboard(tool, ExecRunner{}, logger)
	c.DirectRead = cliplib.ReadAll
	c.FallbackWrite = cliplib.WriteAll
	return c, nil
}

func hasCommand(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
