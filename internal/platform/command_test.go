package platform

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/berrythewa/clipdrive/internal/clipboard"
	"github.com/berrythewa/clipdrive/internal/types"
)

type call struct {
	name  string
	args  []string
	stdin string
}

type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string][]byte
	errs    map[string]error
	calls   []call
	inErr   error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string][]byte{}, errs: map[string]error{}}
}

func (f *fakeRunner) key(name string, args []string) string {
	return name + " " + strings.Join(args, " ")
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(name, args)
	f.calls = append(f.calls, call{name: name, args: args})
	if err, ok := f.errs[k]; ok {
		return nil, err
	}
	out, ok := f.outputs[k]
	if !ok {
		return nil, errors.New("unexpected command: " + k)
	}
	return out, nil
}

func (f *fakeRunner) Input(_ context.Context, stdin string, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: args, stdin: stdin})
	return f.inErr
}

func (f *fakeRunner) lastInput() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].stdin != "" {
			return f.calls[i]
		}
	}
	return call{}
}

func TestXClipSnapshotPrefersHTML(t *testing.T) {
	r := newFakeRunner()
	r.outputs["xclip -selection clipboard -t TARGETS -o"] = []byte("TARGETS\ntext/html\nUTF8_STRING\n")
	r.outputs["xclip -selection clipboard -t text/html -o"] = []byte("<b>bold</b>")
	r.outputs["xclip -selection clipboard -t UTF8_STRING -o"] = []byte("bold")

	cb := NewCommandClipboard(XClip, r, zap.NewNop())
	payload, err := cb.Snapshot(context.Background())
	require.NoError(t, err)

	content := clipboard.NewClassifier(zap.NewNop()).Classify(payload)
	assert.Equal(t, types.FormatHTML, content.Format)
	assert.Equal(t, "<b>bold</b>", content.Text)
}

func TestWaylandSnapshotFiles(t *testing.T) {
	r := newFakeRunner()
	r.outputs["wl-paste --list-types"] = []byte("text/uri-list\ntext/plain;charset=utf-8\n")
	r.outputs["wl-paste --no-newline --type text/uri-list"] = []byte("file:///home/u/a.txt\nfile:///home/u/sub/b.txt\n")

	cb := NewCommandClipboard(WlClipboard, r, zap.NewNop())
	payload, err := cb.Snapshot(context.Background())
	require.NoError(t, err)

	assert.True(t, payload.Has(types.FormatFileList))
	assert.True(t, payload.Has(types.FormatText))
	assert.False(t, payload.Has(types.FormatHTML))

	files, err := payload.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"/home/u/a.txt", "/home/u/sub/b.txt"}, files)
}

func TestSnapshotEmptyClipboard(t *testing.T) {
	r := newFakeRunner()
	r.errs["xclip -selection clipboard -t TARGETS -o"] = &exec.ExitError{}

	cb := NewCommandClipboard(XClip, r, zap.NewNop())
	payload, err := cb.Snapshot(context.Background())
	require.NoError(t, err)

	content := clipboard.NewClassifier(zap.NewNop()).Classify(payload)
	assert.Equal(t, types.FormatUnsupported, content.Format)
}

func TestSnapshotToolMissing(t *testing.T) {
	r := newFakeRunner()
	r.errs["xclip -selection clipboard -t TARGETS -o"] = exec.ErrNotFound

	cb := NewCommandClipboard(XClip, r, zap.NewNop())
	_, err := cb.Snapshot(context.Background())
	assert.ErrorIs(t, err, exec.ErrNotFound)
}

func TestDirectReadUsedForText(t *testing.T) {
	r := newFakeRunner()
	r.outputs["xclip -selection clipboard -t TARGETS -o"] = []byte("UTF8_STRING\n")

	cb := NewCommandClipboard(XClip, r, zap.NewNop())
	cb.DirectRead = func() (string, error) { return "direct", nil }

	payload, err := cb.Snapshot(context.Background())
	require.NoError(t, err)
	text, err := payload.Text(types.FormatText)
	require.NoError(t, err)
	assert.Equal(t, "direct", text)
}

func TestWrites(t *testing.T) {
	tests := []struct {
		name     string
		tool     Tool
		write    func(c *CommandClipboard) error
		wantBin  string
		wantArgs []string
		stdin    string
	}{
		{
			name:     "xclip text",
			tool:     XClip,
			wantBin:  "xclip",
			wantArgs: []string{"-selection", "clipboard", "-i"},
			stdin:    "hello",
			write: func(c *CommandClipboard) error {
				return c.WriteText(context.Background(), "hello")
			},
		},
		{
			name:     "wl-copy html",
			tool:     WlClipboard,
			wantBin:  "wl-copy",
			wantArgs: []string{"--type", "text/html"},
			stdin:    "<p>x</p>",
			write: func(c *CommandClipboard) error {
				return c.WriteRich(context.Background(), types.FormatHTML, "<p>x</p>")
			},
		},
		{
			name:     "xclip rtf",
			tool:     XClip,
			wantBin:  "xclip",
			wantArgs: []string{"-selection", "clipboard", "-t", "text/rtf", "-i"},
			stdin:    `{\rtf1 x}`,
			write: func(c *CommandClipboard) error {
				return c.WriteRich(context.Background(), types.FormatRTF, `{\rtf1 x}`)
			},
		},
		{
			name:     "xclip files",
			tool:     XClip,
			wantBin:  "xclip",
			wantArgs: []string{"-selection", "clipboard", "-t", "text/uri-list", "-i"},
			stdin:    "file:///m/a.txt\r\nfile:///m/sub/b.txt\r\n",
			write: func(c *CommandClipboard) error {
				return c.WriteFiles(context.Background(), []string{"/m/a.txt", "/m/sub/b.txt"})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRunner()
			require.NoError(t, tt.write(NewCommandClipboard(tt.tool, r, zap.NewNop())))
			got := r.lastInput()
			assert.Equal(t, tt.wantBin, got.name)
			assert.Equal(t, tt.wantArgs, got.args)
			assert.Equal(t, tt.stdin, got.stdin)
		})
	}
}

func TestWriteRichRejectsPlainFormats(t *testing.T) {
	cb := NewCommandClipboard(XClip, newFakeRunner(), zap.NewNop())
	err := cb.WriteRich(context.Background(), types.FormatText, "x")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestWriteTextFallback(t *testing.T) {
	r := newFakeRunner()
	r.inErr = errors.New("xclip: cannot open display")
	cb := NewCommandClipboard(XClip, r, zap.NewNop())

	var got string
	cb.FallbackWrite = func(s string) error { got = s; return nil }
	require.NoError(t, cb.WriteText(context.Background(), "hello"))
	assert.Equal(t, "hello", got)

	cb.FallbackWrite = func(string) error { return errors.New("also broken") }
	assert.Error(t, cb.WriteText(context.Background(), "hello"))
}

func TestFingerprintTracksContent(t *testing.T) {
	r := newFakeRunner()
	r.outputs["wl-paste --list-types"] = []byte("text/plain\n")
	r.outputs["wl-paste --no-newline --type text/plain"] = []byte("one")
	cb := NewCommandClipboard(WlClipboard, r, zap.NewNop())

	a, err := cb.Fingerprint(context.Background())
	require.NoError(t, err)
	b, err := cb.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	r.mu.Lock()
	r.outputs["wl-paste --no-newline --type text/plain"] = []byte("two")
	r.mu.Unlock()
	c, err := cb.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestTextClipboard(t *testing.T) {
	var stored string
	tc := &TextClipboard{
		read:   func() (string, error) { return stored, nil },
		write:  func(s string) error { stored = s; return nil },
		logger: zap.NewNop(),
	}

	p, err := tc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, p.Has(types.FormatText))

	require.NoError(t, tc.WriteText(context.Background(), "hello"))
	p, err = tc.Snapshot(context.Background())
	require.NoError(t, err)
	text, err := p.Text(types.FormatText)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	assert.ErrorIs(t, tc.WriteRich(context.Background(), types.FormatHTML, "x"), ErrUnsupported)
	assert.ErrorIs(t, tc.WriteFiles(context.Background(), []string{"/a"}), ErrUnsupported)
}
