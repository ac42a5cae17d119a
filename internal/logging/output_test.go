package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenOutput(t *testing.T) {
	t.Parallel()

	t.Run("standard streams", func(t *testing.T) {
		for _, name := range []string{"", "stdout", "stderr"} {
			w, err := OpenOutput(name)
			require.NoError(t, err, name)
			require.NoError(t, w.Close())
		}
	})

	t.Run("file path creates directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "server.log")
		w, err := OpenOutput(path)
		require.NoError(t, err)
		_, err = w.Write([]byte("line\n"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "line\n", string(data))
	})

	t.Run("file scheme", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "server.log")
		w, err := OpenOutput("file://" + path)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		assert.FileExists(t, path)
	})

	t.Run("unsupported", func(t *testing.T) {
		for _, name := range []string{"syslog", "redis://localhost:6379"} {
			_, err := OpenOutput(name)
			require.Error(t, err, name)
		}
	})
}
