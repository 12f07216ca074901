package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf16"

	"github.com/berrythewa/clipdrive/internal/clipboard"
	"github.com/berrythewa/clipdrive/internal/types"
	"github.com/berrythewa/clipdrive/pkg/utils"
	"go.uber.org/zap"
)

// Runner executes clipboard helper tools.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// Input feeds stdin to the command. Stdout is not captured: xclip and
	// wl-copy fork a child that keeps serving the selection.
	Input(ctx context.Context, stdin string, name string, args ...string) error
}

// ExecRunner runs real processes.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (ExecRunner) Input(ctx context.Context, stdin string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	return cmd.Run()
}

// Tool describes a pair of clipboard helper commands.
type Tool struct {
	Name     string
	ReadBin  string
	WriteBin string
	List     []string
	Read     func(target string) []string
	Write    func(target string) []string
}

// XClip drives the X11 CLIPBOARD selection through xclip.
var XClip = Tool{
	Name:     "x11",
	ReadBin:  "xclip",
	WriteBin: "xclip",
	List:     []string{"-selection", "clipboard", "-t", "TARGETS", "-o"},
	Read: func(target string) []string {
		return []string{"-selection", "clipboard", "-t", target, "-o"}
	},
	Write: func(target string) []string {
		if target == "" {
			return []string{"-selection", "clipboard", "-i"}
		}
		return []string{"-selection", "clipboard", "-t", target, "-i"}
	},
}

// WlClipboard drives the Wayland clipboard through wl-clipboard.
var WlClipboard = Tool{
	Name:     "wayland",
	ReadBin:  "wl-paste",
	WriteBin: "wl-copy",
	List:     []string{"--list-types"},
	Read: func(target string) []string {
		return []string{"--no-newline", "--type", target}
	},
	Write: func(target string) []string {
		if target == "" {
			return nil
		}
		return []string{"--type", target}
	},
}

// CommandClipboard reads and writes the clipboard through helper tools.
type CommandClipboard struct {
	tool   Tool
	runner Runner
	logger *zap.Logger

	// DirectRead is tried before the tool for plain text. FallbackWrite is
	// used when the tool cannot write text.
	DirectRead    func() (string, error)
	FallbackWrite func(string) error
}

// NewCommandClipboard creates a clipboard over tool.
func NewCommandClipboard(tool Tool, runner Runner, logger *zap.Logger) *CommandClipboard {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandClipboard{tool: tool, runner: runner, logger: logger}
}

func (c *CommandClipboard) Name() string { return c.tool.Name }

func (c *CommandClipboard) targets(ctx context.Context) ([]string, error) {
	out, err := c.runner.Output(ctx, c.tool.ReadBin, c.tool.List...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Both tools exit non-zero when nothing owns the clipboard.
			return nil, nil
		}
		return nil, fmt.Errorf("list clipboard targets: %w", err)
	}
	return parseTargets(out), nil
}

func (c *CommandClipboard) read(ctx context.Context, target string) (string, error) {
	out, err := c.runner.Output(ctx, c.tool.ReadBin, c.tool.Read(target)...)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", target, err)
	}
	return decodeText(out), nil
}

// Snapshot lists the offered targets; content is read on demand.
func (c *CommandClipboard) Snapshot(ctx context.Context) (clipboard.Payload, error) {
	offered, err := c.targets(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Clipboard targets", zap.Strings("targets", offered))
	return &commandPayload{ctx: ctx, c: c, offered: offered}, nil
}

// Fingerprint hashes the target list and, when offered, the file list or
// the plain text.
func (c *CommandClipboard) Fingerprint(ctx context.Context) (string, error) {
	offered, err := c.targets(ctx)
	if err != nil {
		return "", err
	}
	parts := append([]string{}, offered...)
	for _, f := range []types.Format{types.FormatFileList, types.FormatText} {
		if target, ok := targetFor(f, offered); ok {
			data, err := c.read(ctx, target)
			if err != nil {
				return "", err
			}
			parts = append(parts, data)
			break
		}
	}
	return utils.HashStrings(parts...), nil
}

// WriteText offers text under the tool's default text targets.
func (c *CommandClipboard) WriteText(ctx context.Context, text string) error {
	err := c.runner.Input(ctx, text, c.tool.WriteBin, c.tool.Write("")...)
	if err == nil {
		return nil
	}
	if c.FallbackWrite != nil {
		c.logger.Debug("Clipboard tool failed, using fallback text writer", zap.Error(err))
		if ferr := c.FallbackWrite(text); ferr == nil {
			return nil
		}
	}
	return fmt.Errorf("write text: %w", err)
}

// WriteRich offers data under the HTML or RTF target.
func (c *CommandClipboard) WriteRich(ctx context.Context, format types.Format, data string) error {
	target, ok := richTarget(format)
	if !ok {
		return fmt.Errorf("%w: rich format %q", ErrUnsupported, format)
	}
	if err := c.runner.Input(ctx, data, c.tool.WriteBin, c.tool.Write(target)...); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

// WriteFiles offers paths as a text/uri-list file drop.
func (c *CommandClipboard) WriteFiles(ctx context.Context, paths []string) error {
	if err := c.runner.Input(ctx, formatURIList(paths), c.tool.WriteBin, c.tool.Write(mimeURI)...); err != nil {
		return fmt.Errorf("write file list: %w", err)
	}
	return nil
}

// commandPayload is a lazily read clipboard snapshot.
type commandPayload struct {
	ctx     context.Context
	c       *CommandClipboard
	offered []string
}

func (p *commandPayload) Has(f types.Format) bool {
	_, ok := targetFor(f, p.offered)
	return ok
}

func (p *commandPayload) Text(f types.Format) (string, error) {
	if f == types.FormatText && p.c.DirectRead != nil {
		if s, err := p.c.DirectRead(); err == nil {
			return s, nil
		}
	}
	target, ok := targetFor(f, p.offered)
	if !ok {
		return "", fmt.Errorf("clipboard does not offer %s", f)
	}
	return p.c.read(p.ctx, target)
}

func (p *commandPayload) Files() ([]string, error) {
	target, ok := targetFor(types.FormatFileList, p.offered)
	if !ok {
		return nil, fmt.Errorf("clipboard does not offer a file list")
	}
	data, err := p.c.read(p.ctx, target)
	if err != nil {
		return nil, err
	}
	return parseFileList(data), nil
}

// decodeText converts UTF-16 data with a byte order mark to UTF-8. Some
// browsers offer text/html that way.
func decodeText(data []byte) string {
	if len(data) >= 2 && len(data)%2 == 0 {
		var order func(b []byte) uint16
		switch {
		case data[0] == 0xFF && data[1] == 0xFE:
			order = func(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
		case data[0] == 0xFE && data[1] == 0xFF:
			order = func(b []byte) uint16 { return uint16(b[1]) | uint16(b[0])<<8 }
		}
		if order != nil {
			units := make([]uint16, 0, len(data)/2-1)
			for i := 2; i+1 < len(data); i += 2 {
				units = append(units, order(data[i:i+2]))
			}
			return string(utf16.Decode(units))
		}
	}
	return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
}
