// Package server wires the resolved configuration, the log output and the
// orchestrator together for the lynxserve command.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/atlanticdynamic/lynxserve/internal/config"
	"github.com/atlanticdynamic/lynxserve/internal/config/errz"
	"github.com/atlanticdynamic/lynxserve/internal/logging"
	"github.com/atlanticdynamic/lynxserve/internal/server/orchestrator"
)

// Options describes one server invocation.
type Options struct {
	ConfigPath string
	// WorkingDir anchors config discovery. Defaults to the process cwd.
	WorkingDir string
	Overrides  config.Overrides

	// Stdout replaces os.Stdout as the log destination when the config does
	// not name another output.
	Stdout io.Writer
	// Stderr receives startup diagnostics when the config cannot be resolved.
	Stderr io.Writer

	// OrchestratorOptions are appended after the defaults.
	OrchestratorOptions []orchestrator.Option
}

// Run resolves the configuration, sets up logging and runs the server until
// ctx is canceled, an interrupt arrives or the compiler fails fatally.
func Run(ctx context.Context, opts Options) error {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	startup := logging.NewStartup()
	cfg, err := config.Resolve(ctx, config.ResolveOptions{
		ExplicitPath: opts.ConfigPath,
		WorkingDir:   opts.WorkingDir,
		Overrides:    opts.Overrides,
		Logger:       startup.Logger(),
	})
	if err != nil {
		diag := logging.NewHandler(logging.Options{Level: slog.LevelWarn, Writer: opts.Stderr})
		_ = startup.Replay(ctx, diag)
		return err
	}

	out, err := openOutput(cfg.LogOutput, opts.Stdout)
	if err != nil {
		return fmt.Errorf("%w: %w", errz.ErrConfigLoad, err)
	}
	defer func() { _ = out.Close() }()

	handler := logging.NewHandler(logging.Options{
		Level:     cfg.LogLevel,
		Timestamp: cfg.LogTimestamp,
		Format:    cfg.LogFormat,
		Writer:    out,
	})
	if err := startup.Replay(ctx, handler); err != nil {
		return fmt.Errorf("failed to write startup logs: %w", err)
	}
	slog.SetDefault(slog.New(handler))

	o, err := orchestrator.New(cfg, append(
		[]orchestrator.Option{orchestrator.WithLogHandler(handler)},
		opts.OrchestratorOptions...,
	)...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return o.Run(ctx)
}

func openOutput(output string, stdout io.Writer) (io.WriteCloser, error) {
	if output == "" && stdout != nil {
		return nopCloser{stdout}, nil
	}
	return logging.OpenOutput(output)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
