package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fingerprints struct {
	mu  sync.Mutex
	val string
}

func (f *fingerprints) set(v string) {
	f.mu.Lock()
	f.val = v
	f.mu.Unlock()
}

func (f *fingerprints) get(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val, nil
}

func TestPollSourceReportsChanges(t *testing.T) {
	fp := &fingerprints{val: "a"}
	src := NewPollSource(fp.get, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := src.Watch(ctx)
	require.NoError(t, err)

	select {
	case <-events:
		require.Fail(t, "baseline must not be reported")
	case <-time.After(50 * time.Millisecond):
	}

	fp.set("b")
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		require.Fail(t, "change was not reported")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, time.Second, 5*time.Millisecond)
}

func TestPollSourceRequiresFingerprint(t *testing.T) {
	_, err := (&PollSource{}).Watch(context.Background())
	assert.Error(t, err)
}

func TestCommandSource(t *testing.T) {
	src := NewCommandSource("sh", []string{"sh", "-c", "echo CHANGED"}, zap.NewNop())
	events, err := src.Watch(context.Background())
	require.NoError(t, err)

	got := 0
	for range events {
		got++
	}
	assert.Equal(t, 1, got)
}

func TestCommandSourceMissingBinary(t *testing.T) {
	src := NewCommandSource("x", []string{"clipdrive-no-such-helper"}, zap.NewNop())
	_, err := src.Watch(context.Background())
	assert.Error(t, err)
}

func TestDetectExplicitBackends(t *testing.T) {
	fp := (&fingerprints{}).get

	src, err := Detect(BackendPoll, fp, time.Second, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "poll", src.Name())

	src, err = Detect(BackendWayland, fp, time.Second, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "wayland", src.Name())

	_, err = Detect("carrier-pigeon", fp, time.Second, zap.NewNop())
	assert.Error(t, err)
}

func TestDetectAutoFallsBackToPolling(t *testing.T) {
	t.Setenv("WAYLAND_DISPLAY", "")
	t.Setenv("DISPLAY", "")

	src, err := Detect(BackendAuto, (&fingerprints{}).get, time.Second, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "poll", src.Name())
}
