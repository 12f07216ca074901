package notify

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// FingerprintFunc summarises the current clipboard content. Equal values
// mean unchanged content.
type FingerprintFunc func(ctx context.Context) (string, error)

// PollSource detects changes by comparing fingerprints. The interval
// doubles after consecutive idle polls, up to Max, and drops back to Base
// on the first change.
type PollSource struct {
	Fingerprint FingerprintFunc
	Base        time.Duration
	Max         time.Duration
	Logger      *zap.Logger
}

// NewPollSource creates a polling source.
func NewPollSource(fp FingerprintFunc, base time.Duration, logger *zap.Logger) *PollSource {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollSource{Fingerprint: fp, Base: base, Max: 8 * base, Logger: logger}
}

func (p *PollSource) Name() string { return "poll" }

// Watch takes the current fingerprint as baseline and reports every
// subsequent change.
func (p *PollSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	if p.Fingerprint == nil {
		return nil, fmt.Errorf("poll source has no fingerprint function")
	}
	last, err := p.Fingerprint(ctx)
	if err != nil {
		p.Logger.Debug("Initial clipboard fingerprint failed", zap.Error(err))
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)

		interval := p.Base
		maxInterval := p.Max
		if maxInterval < interval {
			maxInterval = interval
		}
		idle := 0
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			fp, err := p.Fingerprint(ctx)
			switch {
			case err != nil:
				p.Logger.Debug("Failed to fingerprint clipboard", zap.Error(err))
			case fp != last:
				last = fp
				idle = 0
				interval = p.Base
				select {
				case out <- struct{}{}:
				default:
				}
			default:
				idle++
				if idle >= 2 && interval < maxInterval {
					interval *= 2
					if interval > maxInterval {
						interval = maxInterval
					}
				}
			}
			timer.Reset(interval)
		}
	}()
	return out, nil
}

// CommandSource runs a helper that prints one line per clipboard change,
// such as `wl-paste --watch echo CHANGED`.
type CommandSource struct {
	name   string
	argv   []string
	logger *zap.Logger
}

// NewCommandSource creates a source around argv.
func NewCommandSource(name string, argv []string, logger *zap.Logger) *CommandSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandSource{name: name, argv: argv, logger: logger}
}

// NewWaylandSource watches the Wayland clipboard with wl-paste.
func NewWaylandSource(logger *zap.Logger) *CommandSource {
	return NewCommandSource("wayland", []string{"wl-paste", "--watch", "echo", "CHANGED"}, logger)
}

func (c *CommandSource) Name() string { return c.name }

// Watch starts the helper; the channel closes when the helper exits or
// ctx is done.
func (c *CommandSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	if len(c.argv) == 0 {
		return nil, fmt.Errorf("%s source has no command", c.name)
	}
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe %s: %w", c.argv[0], err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.argv[0], err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			select {
			case out <- struct{}{}:
			default:
			}
		}
		err := cmd.Wait()
		if ctx.Err() == nil {
			c.logger.Warn("Clipboard watch helper exited", zap.String("command", c.argv[0]), zap.Error(err))
		}
	}()
	return out, nil
}
