package esbuild

import (
	"log/slog"
)

type Option func(*Compiler)

// WithLogger sets a custom logger for the Compiler instance.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Compiler instance.
func WithLogHandler(handler slog.Handler) Option {
	return func(c *Compiler) {
		c.logger = slog.New(handler)
	}
}

// WithWorkingDir sets the directory esbuild resolves relative imports and
// node_modules from. Defaults to the directory of the first entry point.
func WithWorkingDir(dir string) Option {
	return func(c *Compiler) {
		c.workingDir = dir
	}
}

// WithHotClient injects the live reload client, connecting to url, at the
// top of every JavaScript output.
func WithHotClient(url string) Option {
	return func(c *Compiler) {
		c.hotURL = url
	}
}
