package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/berrythewa/clipdrive/internal/clipboard"
	"github.com/berrythewa/clipdrive/internal/config"
	"github.com/berrythewa/clipdrive/internal/engine"
	"github.com/berrythewa/clipdrive/internal/ipc"
	"github.com/berrythewa/clipdrive/internal/manifest"
	"github.com/berrythewa/clipdrive/internal/platform"
	"github.com/berrythewa/clipdrive/internal/types"
	"github.com/berrythewa/clipdrive/internal/volume"
)

// memClipboard is a text-only system clipboard.
type memClipboard struct {
	mu   sync.Mutex
	text string
}

func (m *memClipboard) Name() string { return "memory" }

func (m *memClipboard) Snapshot(context.Context) (clipboard.Payload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.text == "" {
		return nil, platform.ErrUnsupported
	}
	return clipboard.NewMemoryPayload().WithText(types.FormatText, m.text), nil
}

func (m *memClipboard) Fingerprint(context.Context) (string, error) {
	return m.get(), nil
}

func (m *memClipboard) WriteText(_ context.Context, text string) error {
	m.set(text)
	return nil
}

func (m *memClipboard) WriteRich(context.Context, types.Format, string) error {
	return platform.ErrUnsupported
}

func (m *memClipboard) WriteFiles(context.Context, []string) error {
	return platform.ErrUnsupported
}

func (m *memClipboard) get() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

func (m *memClipboard) set(text string) {
	m.mu.Lock()
	m.text = text
	m.mu.Unlock()
}

// chanSource raises a change whenever fire is called.
type chanSource struct {
	events chan struct{}
}

func newChanSource() *chanSource { return &chanSource{events: make(chan struct{}, 4)} }

func (c *chanSource) Name() string { return "test" }

func (c *chanSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	out := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.events:
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *chanSource) fire() { c.events <- struct{}{} }

type harness struct {
	cfg     *config.Config
	root    string
	present atomic.Bool
	clip    *memClipboard
	source  *chanSource
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("CLIPDRIVE_VOLUME_LABEL", "")
	os.Unsetenv("CLIPDRIVE_VOLUME_LABEL")

	// Unix socket paths are length limited; keep them short.
	base, err := os.MkdirTemp("", "cdd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(base) })

	cfg := config.DefaultConfig()
	cfg.VolumeLabel = "CLIP"
	cfg.Volume.WatchDevices = false
	cfg.Volume.PresencePollMs = 20
	cfg.Sync.RetryBackoffMs = 1
	cfg.SystemPaths = config.ConfigPaths{
		ConfigFile: filepath.Join(base, "config.yaml"),
		DataDir:    base,
		DBFile:     filepath.Join(base, "clipdrive.db"),
		SocketPath: filepath.Join(base, "d.sock"),
		LockFile:   filepath.Join(base, "clipdrive.lock"),
	}

	h := &harness{
		cfg:    cfg,
		root:   t.TempDir(),
		clip:   &memClipboard{},
		source: newChanSource(),
	}
	h.present.Store(true)
	return h
}

func (h *harness) enumerator() volume.Enumerator {
	return volume.EnumeratorFunc(func() ([]volume.Volume, error) {
		if !h.present.Load() {
			return nil, nil
		}
		return []volume.Volume{{Device: "/dev/sdz1", Label: "CLIP", Root: h.root, Removable: true, Ready: true}}, nil
	})
}

func (h *harness) daemon(t *testing.T) *Daemon {
	d, err := New(h.cfg, zap.NewNop(),
		WithClipboard(h.clip),
		WithSource(h.source),
		WithEnumerator(h.enumerator()))
	require.NoError(t, err)
	return d
}

// start runs a daemon until the test ends and waits for its socket.
func (h *harness) start(t *testing.T) *Daemon {
	t.Helper()
	d := h.daemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	require.Eventually(t, func() bool {
		_, err := h.request(statusRequest())
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	return d
}

func statusRequest() *ipc.Request { return &ipc.Request{Command: ipc.CmdStatus} }

func (h *harness) request(req *ipc.Request) (*ipc.Response, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return ipc.SendRequest(ctx, h.cfg.SystemPaths.SocketPath, req)
}

func (h *harness) manifestText() string {
	m, err := manifest.Load(h.root)
	if err != nil || m.Format != types.FormatText {
		return ""
	}
	return m.Payload
}

func TestStartupRestore(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, manifest.Save(h.root, manifest.Text("from volume")))

	h.start(t)

	assert.Equal(t, "from volume", h.clip.get())
}

func TestClipboardChangePersists(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.clip.set("hello drive")
	h.source.fire()

	require.Eventually(t, func() bool { return h.manifestText() == "hello drive" }, 5*time.Second, 10*time.Millisecond)
}

func TestVolumeArrivalRestores(t *testing.T) {
	h := newHarness(t)
	h.present.Store(false)
	h.start(t)

	require.NoError(t, manifest.Save(h.root, manifest.Text("plugged in")))
	h.present.Store(true)

	require.Eventually(t, func() bool { return h.clip.get() == "plugged in" }, 5*time.Second, 10*time.Millisecond)
}

func TestIPCCommands(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	resp, err := h.request(statusRequest())
	require.NoError(t, err)
	require.NoError(t, resp.Err())
	var st types.DaemonStatus
	require.NoError(t, resp.Decode(&st))
	assert.True(t, st.Running)
	assert.Equal(t, os.Getpid(), st.PID)
	assert.Equal(t, "CLIP", st.VolumeLabel)
	assert.Equal(t, "test", st.Notifier)
	assert.Equal(t, "idle", st.EngineState)
	assert.False(t, st.DeviceWatch)

	h.clip.set("via socket")
	resp, err = h.request(&ipc.Request{Command: ipc.CmdPersist})
	require.NoError(t, err)
	require.NoError(t, resp.Err())
	assert.Equal(t, string(engine.StatusPersisted), resp.Message)
	assert.Equal(t, "via socket", h.manifestText())

	resp, err = h.request(&ipc.Request{Command: ipc.CmdRestore})
	require.NoError(t, err)
	require.NoError(t, resp.Err())
	var entry types.JournalEntry
	require.NoError(t, resp.Decode(&entry))
	assert.Equal(t, string(engine.StatusRestored), entry.Status)

	resp, err = h.request(&ipc.Request{Command: ipc.CmdCancel})
	require.NoError(t, err)
	assert.Equal(t, "nothing to cancel", resp.Message)

	resp, err = h.request(&ipc.Request{Command: ipc.CmdHistory, Args: map[string]any{"limit": 2}})
	require.NoError(t, err)
	require.NoError(t, resp.Err())
	var entries []types.JournalEntry
	require.NoError(t, resp.Decode(&entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "restore", entries[0].Op)
	assert.Equal(t, "persist", entries[1].Op)

	resp, err = h.request(&ipc.Request{Command: ipc.CmdClear})
	require.NoError(t, err)
	require.NoError(t, resp.Err())
	assert.NoFileExists(t, manifest.Path(h.root))

	resp, err = h.request(&ipc.Request{Command: "explode"})
	require.NoError(t, err)
	assert.Error(t, resp.Err())
}

func TestRoutineOutcomeIsNotAnError(t *testing.T) {
	h := newHarness(t)
	h.present.Store(false)
	h.start(t)

	resp, err := h.request(&ipc.Request{Command: ipc.CmdRestore})
	require.NoError(t, err)
	assert.NoError(t, resp.Err())
	assert.Equal(t, string(engine.StatusVolumeAbsent), resp.Message)
}

func TestSingleInstance(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	second := h.daemon(t)
	err := second.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	_, err = RunOnce(context.Background(), second, engine.OpRestore)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRunOnce(t *testing.T) {
	h := newHarness(t)

	h.clip.set("offline persist")
	out, err := RunOnce(context.Background(), h.daemon(t), engine.OpPersist)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPersisted, out.Status)
	assert.Equal(t, "offline persist", h.manifestText())

	h.clip.set("")
	out, err = RunOnce(context.Background(), h.daemon(t), engine.OpRestore)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusRestored, out.Status)
	assert.Equal(t, "offline persist", h.clip.get())

	entries, err := History(h.daemon(t), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "restore", entries[0].Op)

	out, err = RunOnce(context.Background(), h.daemon(t), engine.OpClear)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusCleared, out.Status)

	_, err = RunOnce(context.Background(), h.daemon(t), engine.Op("bogus"))
	assert.Error(t, err)
}

func TestEnqueueCoalesces(t *testing.T) {
	q := make(chan struct{}, 1)
	for i := 0; i < 5; i++ {
		enqueue(q)
	}
	assert.Len(t, q, 1)
}
