//go:build e2e

package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	serverCmd "github.com/atlanticdynamic/lynxserve/cmd/lynxserve/server"
	"github.com/atlanticdynamic/lynxserve/internal/build"
	"github.com/atlanticdynamic/lynxserve/internal/config"
	"github.com/atlanticdynamic/lynxserve/internal/server/orchestrator"
	"github.com/atlanticdynamic/lynxserve/internal/server/runnables/hotchannel"
	"github.com/atlanticdynamic/lynxserve/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 15 * time.Second

// project is a copy of an example project served on random ports.
type project struct {
	dir    string
	port   int
	stdout *testutil.ThreadSafeBuffer
}

// copyExample copies examples/<name> into a temp dir so tests can edit it.
func copyExample(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.CopyFS(dir, os.DirFS(filepath.Join("..", "..", "..", "examples", name))))
	return dir
}

// startProject runs the server for dir and stops it when the test ends.
func startProject(t *testing.T, dir string, overrides config.Overrides) *project {
	t.Helper()
	p := &project{dir: dir, port: testutil.GetPortPair(t), stdout: &testutil.ThreadSafeBuffer{}}
	host := "127.0.0.1"
	overrides.Host = &host
	overrides.Port = &p.port
	level := "debug"
	overrides.LogLevel = &level

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() {
		errCh <- serverCmd.Run(ctx, serverCmd.Options{
			WorkingDir: dir,
			Overrides:  overrides,
			Stdout:     p.stdout,
			Stderr:     io.Discard,
			OrchestratorOptions: []orchestrator.Option{
				orchestrator.WithSignalHandling(false),
			},
		})
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(waitFor):
			t.Error("server did not shut down")
		}
		if t.Failed() {
			t.Logf("server output:\n%s", p.stdout.String())
		}
	})
	return p
}

func (p *project) url(path string) string {
	return "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(p.port)) + path
}

func (p *project) hotURL() string {
	return "ws://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(p.port+1))
}

func (p *project) waitReady(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(p.url("/__lynx/status"))
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		var st struct {
			Ready bool `json:"ready"`
		}
		return json.NewDecoder(resp.Body).Decode(&st) == nil && st.Ready
	}, waitFor, 50*time.Millisecond)
}

func (p *project) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(p.url(path))
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { assert.NoError(t, resp.Body.Close()) }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func (p *project) write(t *testing.T, rel, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, rel), []byte(content), 0o600))
}

func dialHot(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// nextTerminal skips building notifications and returns the next outcome.
func nextTerminal(t *testing.T, conn *websocket.Conn) hotchannel.Message {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg hotchannel.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type != build.KindBuilding {
			return msg
		}
	}
}
