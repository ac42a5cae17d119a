package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/atlanticdynamic/lynxserve/internal/config"
	"github.com/urfave/cli/v3"
)

func newValidateCmd() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"lint"},
		Usage:     "Validate a configuration file",
		ArgsUsage: "[config]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "tree",
				Aliases: []string{"t"},
				Usage:   "Show detailed tree view of the resolved configuration",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the configuration file",
			},
		},
		Suggest: true,
		Action:  validateAction,
	}
}

func validateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Resolve(ctx, config.ResolveOptions{
		ExplicitPath: configPath(cmd),
		Logger:       slog.New(slog.DiscardHandler),
	})
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	w := cmd.Root().Writer
	if _, err := fmt.Fprintf(w, "Configuration file %s is valid\n", cfg.ConfigPath); err != nil {
		return err
	}
	if cmd.Bool("tree") {
		_, err := fmt.Fprintln(w, cfg)
		return err
	}
	return writeSummary(w, cfg)
}

// writeSummary prints the handful of settings most often checked.
func writeSummary(w io.Writer, cfg *config.Resolved) error {
	var summary strings.Builder

	summary.WriteString("\nConfig Summary:\n")
	fmt.Fprintf(&summary, "- Path: %s\n", cfg.ConfigPath)
	fmt.Fprintf(&summary, "- URL: %s\n", cfg.URL())
	if cfg.Hot.Enabled {
		fmt.Fprintf(&summary, "- Hot channel: %s\n", cfg.HotURL())
	} else {
		summary.WriteString("- Hot channel: disabled\n")
	}
	fmt.Fprintf(&summary, "- Entry points: %d\n", len(cfg.Build.EntryPoints))
	fmt.Fprintf(&summary, "- Content roots: %d\n", len(cfg.ContentRoots))
	summary.WriteString("\nUse --tree for a more detailed view of the config.\n")

	_, err := io.WriteString(w, summary.String())
	return err
}
