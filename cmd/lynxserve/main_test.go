package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/atlanticdynamic/lynxserve/internal/config"
	"github.com/atlanticdynamic/lynxserve/internal/config/errz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

// parseServe runs the serve flags against args and returns what the serve
// action would receive.
func parseServe(t *testing.T, args ...string) (config.Overrides, string) {
	t.Helper()
	var overrides config.Overrides
	var path string
	cmd := &cli.Command{
		Name:  "lynxserve",
		Flags: serveFlags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			overrides = overridesFromCommand(cmd)
			path = configPath(cmd)
			return nil
		},
	}
	require.NoError(t, cmd.Run(t.Context(), append([]string{"lynxserve"}, args...)))
	return overrides, path
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lynxserve.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `[serve]
port = 3000

[build]
entry = ["src/index.js"]
`

func TestOverridesFromCommand(t *testing.T) {
	t.Parallel()

	t.Run("unset flags stay nil", func(t *testing.T) {
		t.Parallel()
		o, path := parseServe(t)
		assert.Empty(t, path)
		assert.Nil(t, o.Host)
		assert.Nil(t, o.Port)
		assert.Nil(t, o.HTTP2)
		assert.Nil(t, o.LogLevel)
		assert.Nil(t, o.LogTime)
		assert.Nil(t, o.StalePolicy)
		assert.False(t, o.NoHotClient)
		assert.Empty(t, o.Content)
		assert.Empty(t, o.Require)
	})

	t.Run("every flag", func(t *testing.T) {
		t.Parallel()
		o, path := parseServe(t,
			"--host", "0.0.0.0",
			"--port", "1337",
			"--content", "public", "--content", "assets",
			"--http2",
			"--https-cert", "cert.pem", "--https-key", "key.pem", "--https-pass", "secret",
			"--log-level", "debug", "--log-time", "--log-format", "json", "--log-output", "stderr",
			"--no-hot-client",
			"--require", "env.star", "--require", "more.risor",
			"--status-listen", "unix:/tmp/lynx.sock",
			"--stale-policy", "show-error",
			"site.toml",
		)
		assert.Equal(t, "site.toml", path)
		require.NotNil(t, o.Host)
		assert.Equal(t, "0.0.0.0", *o.Host)
		require.NotNil(t, o.Port)
		assert.Equal(t, 1337, *o.Port)
		assert.Equal(t, []string{"public", "assets"}, o.Content)
		require.NotNil(t, o.HTTP2)
		assert.True(t, *o.HTTP2)
		assert.Equal(t, "cert.pem", *o.HTTPSCert)
		assert.Equal(t, "key.pem", *o.HTTPSKey)
		assert.Equal(t, "secret", *o.HTTPSPass)
		assert.Nil(t, o.HTTPSPFX)
		assert.Equal(t, "debug", *o.LogLevel)
		assert.True(t, *o.LogTime)
		assert.Equal(t, "json", *o.LogFormat)
		assert.Equal(t, "stderr", *o.LogOutput)
		assert.True(t, o.NoHotClient)
		assert.Equal(t, []string{"env.star", "more.risor"}, o.Require)
		assert.Equal(t, "unix:/tmp/lynx.sock", *o.StatusListen)
		assert.Equal(t, "show-error", *o.StalePolicy)
	})

	t.Run("config flag wins over positional", func(t *testing.T) {
		t.Parallel()
		_, path := parseServe(t, "-c", "flag.toml", "positional.toml")
		assert.Equal(t, "flag.toml", path)
	})

	t.Run("explicit false is kept", func(t *testing.T) {
		t.Parallel()
		o, _ := parseServe(t, "--log-time=false")
		require.NotNil(t, o.LogTime)
		assert.False(t, *o.LogTime)
	})
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, args ...string) (string, error) {
		t.Helper()
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out
		err := app.Run(t.Context(), append([]string{"lynxserve", "validate"}, args...))
		return out.String(), err
	}

	t.Run("summary", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, validConfig)
		out, err := run(t, path)
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration file "+path+" is valid")
		assert.Contains(t, out, "Config Summary:")
		assert.Contains(t, out, "- URL: http://localhost:3000")
		assert.Contains(t, out, "- Hot channel: ws://localhost:3001")
	})

	t.Run("tree", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, validConfig)
		out, err := run(t, "--tree", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "lynxserve config")
		assert.Contains(t, out, "Hot channel")
		assert.NotContains(t, out, "Config Summary:")
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "[serve]\nport = 70000\n")
		_, err := run(t, path)
		require.ErrorIs(t, err, errz.ErrConfigLoad)
		require.ErrorIs(t, err, errz.ErrMissingRequiredField)
		require.ErrorIs(t, err, errz.ErrInvalidValue)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		_, err := run(t, filepath.Join(t.TempDir(), "nope.toml"))
		require.ErrorIs(t, err, errz.ErrConfigNotFound)
	})
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run(t.Context(), []string{"lynxserve", "version"}))
	assert.Equal(t, "lynxserve version dev\n", out.String())
}
