package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/atlanticdynamic/lynxserve/internal/config/errz"
)

// DiscoveryNames are the file names searched, in order, when no explicit
// config path is given.
var DiscoveryNames = []string{
	"lynxserve.toml",
	"lynxserve.yaml",
	"lynxserve.yml",
	".lynxserve.toml",
}

// Locate returns the absolute config path to use. An explicit path is taken
// verbatim, relative to workingDir; otherwise workingDir is searched for
// DiscoveryNames. A missing file yields errz.ErrConfigNotFound.
func Locate(explicit, workingDir string) (string, error) {
	if explicit != "" {
		path := absFrom(workingDir, explicit)
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("%w: %s", errz.ErrConfigNotFound, path)
		case err != nil:
			return "", fmt.Errorf("%w: %w", errz.ErrConfigLoad, err)
		case info.IsDir():
			return "", fmt.Errorf("%w: %s is a directory", errz.ErrConfigLoad, path)
		}
		return path, nil
	}

	for _, name := range DiscoveryNames {
		path := filepath.Join(workingDir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: none of %v in %s", errz.ErrConfigNotFound, DiscoveryNames, workingDir)
}

func absFrom(base, path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

func absAll(base string, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, absFrom(base, p))
	}
	return out
}
