//go:build linux

package notify

import (
	"context"
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"go.uber.org/zap"
)

// XFixesSource receives CLIPBOARD owner changes from the X server.
type XFixesSource struct {
	display string
	logger  *zap.Logger
}

// NewXFixesSource connects to display; an empty display uses $DISPLAY.
func NewXFixesSource(display string, logger *zap.Logger) *XFixesSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XFixesSource{display: display, logger: logger}
}

func (x *XFixesSource) Name() string { return "x11" }

// Watch selects XFixes selection events on an input-only window.
func (x *XFixesSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	conn, err := xgb.NewConnDisplay(x.display)
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}

	win, err := x.selectInput(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(out)
		for {
			ev, xerr := conn.WaitForEvent()
			if ev == nil && xerr == nil {
				return
			}
			if xerr != nil {
				x.logger.Debug("X11 error while watching clipboard", zap.String("error", xerr.Error()))
				continue
			}
			if n, ok := ev.(xfixes.SelectionNotifyEvent); ok {
				x.logger.Debug("Clipboard owner changed",
					zap.Uint32("owner", uint32(n.Owner)),
					zap.Uint32("window", uint32(win)))
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}

func (x *XFixesSource) selectInput(conn *xgb.Conn) (xproto.Window, error) {
	if err := xfixes.Init(conn); err != nil {
		return 0, fmt.Errorf("init xfixes: %w", err)
	}
	if _, err := xfixes.QueryVersion(conn, 5, 0).Reply(); err != nil {
		return 0, fmt.Errorf("query xfixes version: %w", err)
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)
	win, err := xproto.NewWindowId(conn)
	if err != nil {
		return 0, fmt.Errorf("allocate window: %w", err)
	}
	err = xproto.CreateWindowChecked(conn, 0, win, screen.Root,
		0, 0, 1, 1, 0, xproto.WindowClassInputOnly, screen.RootVisual, 0, nil).Check()
	if err != nil {
		return 0, fmt.Errorf("create window: %w", err)
	}

	const selection = "CLIPBOARD"
	atom, err := xproto.InternAtom(conn, false, uint16(len(selection)), selection).Reply()
	if err != nil {
		return 0, fmt.Errorf("intern %s: %w", selection, err)
	}

	mask := uint32(xfixes.SelectionEventMaskSetSelectionOwner |
		xfixes.SelectionEventMaskSelectionWindowDestroy |
		xfixes.SelectionEventMaskSelectionClientClose)
	if err := xfixes.SelectSelectionInputChecked(conn, win, atom.Atom, mask).Check(); err != nil {
		return 0, fmt.Errorf("select selection input: %w", err)
	}
	return win, nil
}

func newX11Source(logger *zap.Logger) (Source, error) {
	return NewXFixesSource("", logger), nil
}
