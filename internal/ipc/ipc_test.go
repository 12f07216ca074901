package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func socketPath(t *testing.T) string {
	dir, err := os.MkdirTemp("", "cdipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "d.sock")
}

func serve(t *testing.T, handler Handler) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	path := socketPath(t)
	srv := NewServer(path, handler, nil)
	ln, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return path, cancel, done
}

func TestRoundTrip(t *testing.T) {
	path, _, _ := serve(t, func(ctx context.Context, req *Request) *Response {
		switch req.Command {
		case CmdHistory:
			return OK("", map[string]int{"limit": req.IntArg("limit", 10)})
		default:
			return Errorf("unknown command %q", req.Command)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := SendRequest(ctx, path, &Request{Command: CmdHistory, Args: map[string]any{"limit": 3}})
	require.NoError(t, err)
	require.NoError(t, resp.Err())
	var data map[string]int
	require.NoError(t, resp.Decode(&data))
	assert.Equal(t, 3, data["limit"])

	resp, err = SendRequest(ctx, path, &Request{Command: "bogus"})
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
	assert.ErrorContains(t, resp.Err(), `unknown command "bogus"`)
}

func TestHandlerPanicBecomesError(t *testing.T) {
	path, _, _ := serve(t, func(ctx context.Context, req *Request) *Response {
		panic("boom")
	})

	resp, err := SendRequest(context.Background(), path, &Request{Command: CmdStatus})
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
}

func TestNilResponse(t *testing.T) {
	path, _, _ := serve(t, func(ctx context.Context, req *Request) *Response { return nil })

	resp, err := SendRequest(context.Background(), path, &Request{Command: CmdStatus})
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
}

func TestInvalidRequest(t *testing.T) {
	path, _, _ := serve(t, func(ctx context.Context, req *Request) *Response { return OK("", nil) })

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, jsonDecode(conn, &resp))
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Message, "invalid request")
}

func TestNoDaemon(t *testing.T) {
	_, err := SendRequest(context.Background(), socketPath(t), &Request{Command: CmdStatus})
	assert.True(t, errors.Is(err, ErrNoDaemon), "got %v", err)
}

func TestStaleSocketIsReplaced(t *testing.T) {
	path := socketPath(t)
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	// Simulate a crashed daemon that left its socket file behind.
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	ln.Close()
	require.FileExists(t, path)

	_, err = SendRequest(context.Background(), path, &Request{Command: CmdStatus})
	assert.ErrorIs(t, err, ErrNoDaemon)

	srv := NewServer(path, func(ctx context.Context, req *Request) *Response { return OK("pong", nil) }, nil)
	ln2, err := srv.Listen()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln2) }()

	resp, err := SendRequest(context.Background(), path, &Request{Command: CmdStatus})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Message)

	cancel()
	require.NoError(t, <-done)
	assert.NoFileExists(t, path)
}

func TestSendRequestHonoursContext(t *testing.T) {
	release := make(chan struct{})
	path, _, _ := serve(t, func(ctx context.Context, req *Request) *Response {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return OK("", nil)
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := SendRequest(ctx, path, &Request{Command: CmdRestore})
	assert.Error(t, err)
}

func TestIntArg(t *testing.T) {
	req := &Request{Args: map[string]any{"f": float64(7), "i": 4, "s": "x"}}
	assert.Equal(t, 7, req.IntArg("f", 0))
	assert.Equal(t, 4, req.IntArg("i", 0))
	assert.Equal(t, 9, req.IntArg("s", 9))
	assert.Equal(t, 2, req.IntArg("missing", 2))
}

func jsonDecode(conn net.Conn, v any) error {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return json.NewDecoder(conn).Decode(v)
}
