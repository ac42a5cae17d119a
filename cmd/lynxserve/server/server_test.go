package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/build"
	"github.com/atlanticdynamic/lynxserve/internal/config"
	"github.com/atlanticdynamic/lynxserve/internal/config/errz"
	"github.com/atlanticdynamic/lynxserve/internal/server/orchestrator"
	"github.com/atlanticdynamic/lynxserve/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor   = 10 * time.Second
	entryCode = `document.title = "lynx " + (40 + 2);` + "\n"
)

type fixture struct {
	dir        string
	configPath string
	port       int
}

// newFixture writes a project with one entry module. An empty entry source
// leaves the entry file missing.
func newFixture(t *testing.T, entrySource string, serveExtra string) fixture {
	t.Helper()
	dir := t.TempDir()
	port := testutil.GetPortPair(t)

	if entrySource != "" {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "index.js"), []byte(entrySource), 0o600))
	}

	cfg := fmt.Sprintf(`[serve]
host = "127.0.0.1"
port = %d
%s
[build]
entry = ["src/index.js"]
`, port, serveExtra)
	path := filepath.Join(dir, "lynxserve.toml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return fixture{dir: dir, configPath: path, port: port}
}

func (f fixture) options(stdout io.Writer) Options {
	return Options{
		ConfigPath: f.configPath,
		Stdout:     stdout,
		Stderr:     io.Discard,
		OrchestratorOptions: []orchestrator.Option{
			orchestrator.WithSignalHandling(false),
		},
	}
}

// serverRun is a Run call in the background. done is closed once Run has
// returned; err is only valid after that.
type serverRun struct {
	t      *testing.T
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// runServer starts Run and stops it when the test ends.
func runServer(t *testing.T, opts Options) *serverRun {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	srv := &serverRun{t: t, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(srv.done)
		srv.err = Run(ctx, opts)
	}()
	t.Cleanup(func() { _ = srv.stop() })
	return srv
}

// wait returns Run's result, failing the test if Run does not return.
func (s *serverRun) wait() error {
	s.t.Helper()
	select {
	case <-s.done:
		return s.err
	case <-time.After(waitFor):
		s.t.Fatal("server did not stop")
		return nil
	}
}

// stop cancels Run and returns its result. It may be called more than once.
func (s *serverRun) stop() error {
	s.t.Helper()
	s.cancel()
	return s.wait()
}

func url(port int, path string) string {
	return "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + path
}

// waitReady polls until the transport answers 200, failing if any content
// response other than 503 shows up first.
func waitReady(t *testing.T, port int) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url(port, "/"))
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
			return false
		}
		return true
	}, waitFor, 20*time.Millisecond)
}

func get(t *testing.T, port int, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(url(port, path))
	require.NoError(t, err)
	defer func() { assert.NoError(t, resp.Body.Close()) }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func assertRefused(t *testing.T, port int) {
	t.Helper()
	_, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), time.Second)
	assert.Error(t, err, "port %d should refuse connections", port)
}

func TestRun_ServesAfterFirstCompile(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the bundler")
	}
	t.Parallel()

	f := newFixture(t, entryCode, "")
	srv := runServer(t, f.options(io.Discard))

	waitReady(t, f.port)
	code, body := get(t, f.port, "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `<script src="/index.js"></script>`)

	code, body = get(t, f.port, "/index.js")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "lynx ")
	assert.Contains(t, body, "WebSocket", "hot client is injected by default")

	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(f.port+1)), time.Second)
	require.NoError(t, err, "hot channel listens on port+1")
	require.NoError(t, conn.Close())

	require.NoError(t, srv.stop())
	assertRefused(t, f.port)
	assertRefused(t, f.port+1)
	_, err = os.Stat(filepath.Join(f.dir, "dist"))
	assert.ErrorIs(t, err, os.ErrNotExist, "artifacts stay in memory")
}

func TestRun_PortOverride(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the bundler")
	}
	t.Parallel()

	f := newFixture(t, entryCode, "")
	override := testutil.GetPortPair(t)
	opts := f.options(io.Discard)
	opts.Overrides = config.Overrides{Port: &override}
	srv := runServer(t, opts)

	waitReady(t, override)
	code, _ := get(t, override, "/index.js")
	assert.Equal(t, http.StatusOK, code)
	assertRefused(t, f.port)

	require.NoError(t, srv.stop())
}

func TestRun_NoHotClient(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the bundler")
	}
	t.Parallel()

	f := newFixture(t, entryCode, "")
	opts := f.options(io.Discard)
	opts.Overrides = config.Overrides{NoHotClient: true}
	srv := runServer(t, opts)

	waitReady(t, f.port)
	assertRefused(t, f.port+1)
	_, body := get(t, f.port, "/index.js")
	assert.NotContains(t, body, "WebSocket")

	require.NoError(t, srv.stop())
}

func TestRun_MissingEntryIsFatal(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the bundler")
	}
	t.Parallel()

	f := newFixture(t, "", `log_level = "silent"`)
	var stdout testutil.ThreadSafeBuffer
	srv := runServer(t, f.options(&stdout))

	deadline := time.After(waitFor)
wait:
	for {
		select {
		case <-srv.done:
			break wait
		case <-deadline:
			t.Fatal("server did not exit after a fatal compiler error")
		case <-time.After(20 * time.Millisecond):
			if resp, err := http.Get(url(f.port, "/")); err == nil {
				_ = resp.Body.Close()
				assert.NotEqual(t, http.StatusOK, resp.StatusCode)
			}
		}
	}

	runErr := srv.wait()
	require.ErrorIs(t, runErr, build.ErrCompileFatal)
	assert.Equal(t, 0, stdout.Len(), "silent level writes nothing")
	assertRefused(t, f.port)
}

func TestRun_SilentWritesNothing(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the bundler")
	}
	t.Parallel()

	f := newFixture(t, entryCode, "")
	var stdout testutil.ThreadSafeBuffer
	opts := f.options(&stdout)
	level := "silent"
	opts.Overrides = config.Overrides{LogLevel: &level}
	srv := runServer(t, opts)

	waitReady(t, f.port)
	require.NoError(t, srv.stop())
	assert.Equal(t, 0, stdout.Len())
}

func TestRun_LogTimestamps(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the bundler")
	}
	t.Parallel()

	f := newFixture(t, entryCode, "")
	var stdout testutil.ThreadSafeBuffer
	opts := f.options(&stdout)
	on := true
	opts.Overrides = config.Overrides{LogTime: &on}
	srv := runServer(t, opts)

	waitReady(t, f.port)
	require.NoError(t, srv.stop())

	lines := stdout.Lines()
	require.NotEmpty(t, lines)
	stamp := regexp.MustCompile(`^\[\d{1,2}:\d{1,2}:\d{1,2}\]`)
	for _, line := range lines {
		assert.Regexp(t, stamp, line)
	}
	assert.Contains(t, stdout.String(), "Compiled successfully")
}

func TestRun_JSONLogs(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the bundler")
	}
	t.Parallel()

	f := newFixture(t, entryCode, `log_format = "json"`)
	var stdout testutil.ThreadSafeBuffer
	srv := runServer(t, f.options(&stdout))

	waitReady(t, f.port)
	require.NoError(t, srv.stop())

	lines := stdout.Lines()
	require.NotEmpty(t, lines)
	for _, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		assert.Contains(t, rec, "msg")
		assert.NotContains(t, rec, "time")
	}
}

func TestRun_ConfigErrors(t *testing.T) {
	t.Parallel()

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		err := Run(t.Context(), Options{WorkingDir: t.TempDir(), Stderr: io.Discard})
		require.ErrorIs(t, err, errz.ErrConfigNotFound)
	})

	t.Run("http2 without tls", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, entryCode, "http2 = true")
		var stdout testutil.ThreadSafeBuffer
		err := Run(t.Context(), f.options(&stdout))
		require.ErrorIs(t, err, errz.ErrConfigLoad)
		require.ErrorIs(t, err, errz.ErrConflict)
		assert.Equal(t, 0, stdout.Len())
		assertRefused(t, f.port)
	})

	t.Run("unsupported log output", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, entryCode, `log_output = "syslog"`)
		err := Run(t.Context(), f.options(io.Discard))
		require.ErrorIs(t, err, errz.ErrConfigLoad)
	})
}

func TestRun_PortInUse(t *testing.T) {
	t.Parallel()

	f := newFixture(t, entryCode, "")
	taken, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(f.port)))
	require.NoError(t, err)
	defer func() { assert.NoError(t, taken.Close()) }()

	err = Run(t.Context(), f.options(io.Discard))
	require.Error(t, err)
	assert.Contains(t, err.Error(), strconv.Itoa(f.port))
}
