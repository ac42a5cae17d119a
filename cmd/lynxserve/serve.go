package main

import (
	"context"

	"github.com/atlanticdynamic/lynxserve/cmd/lynxserve/server"
	"github.com/atlanticdynamic/lynxserve/internal/config"
	"github.com/urfave/cli/v3"
)

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the config file (default: lynxserve.toml or lynxserve.yaml in the working directory)",
		},
		&cli.StringSliceFlag{
			Name:  "content",
			Usage: "Directory to serve static files from, in lookup order (repeatable)",
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "Address to listen on",
		},
		&cli.IntFlag{
			Name:  "port",
			Usage: "Port to listen on; the hot channel uses the next port unless configured",
		},
		&cli.BoolFlag{
			Name:  "http2",
			Usage: "Serve HTTP/2 (requires TLS material)",
		},
		&cli.StringFlag{
			Name:  "https-cert",
			Usage: "PEM certificate file",
		},
		&cli.StringFlag{
			Name:  "https-key",
			Usage: "PEM private key file",
		},
		&cli.StringFlag{
			Name:  "https-pass",
			Usage: "Passphrase for an encrypted key or PFX bundle",
		},
		&cli.StringFlag{
			Name:  "https-pfx",
			Usage: "PKCS#12 bundle holding the certificate and key",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "One of silent, error, warn, info, debug",
		},
		&cli.BoolFlag{
			Name:  "log-time",
			Usage: "Prefix every log line with [HH:MM:SS]",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: text or json",
		},
		&cli.StringFlag{
			Name:  "log-output",
			Usage: "Log destination: stdout, stderr or a file path",
		},
		&cli.BoolFlag{
			Name:  "no-hot-client",
			Usage: "Disable the hot reload channel and the browser client",
		},
		&cli.StringSliceFlag{
			Name:  "require",
			Usage: "Module to run before the config is evaluated (repeatable)",
		},
		&cli.StringFlag{
			Name:  "status-listen",
			Usage: "Address for the gRPC health endpoint (host:port or unix:/path/to/socket)",
		},
		&cli.StringFlag{
			Name:  "stale-policy",
			Usage: "What to serve after a failed rebuild: serve-stale or show-error",
		},
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	return server.Run(ctx, server.Options{
		ConfigPath: configPath(cmd),
		Overrides:  overridesFromCommand(cmd),
	})
}

// configPath prefers --config over the first positional argument.
func configPath(cmd *cli.Command) string {
	if path := cmd.String("config"); path != "" {
		return path
	}
	return cmd.Args().First()
}

// overridesFromCommand copies only the flags that were set, so the config
// file keeps precedence over flag defaults.
func overridesFromCommand(cmd *cli.Command) config.Overrides {
	o := config.Overrides{
		Content:     cmd.StringSlice("content"),
		Require:     cmd.StringSlice("require"),
		NoHotClient: cmd.Bool("no-hot-client"),
	}
	o.Host = stringFlag(cmd, "host")
	if cmd.IsSet("port") {
		port := int(cmd.Int("port"))
		o.Port = &port
	}
	o.HTTP2 = boolFlag(cmd, "http2")
	o.HTTPSCert = stringFlag(cmd, "https-cert")
	o.HTTPSKey = stringFlag(cmd, "https-key")
	o.HTTPSPass = stringFlag(cmd, "https-pass")
	o.HTTPSPFX = stringFlag(cmd, "https-pfx")
	o.LogLevel = stringFlag(cmd, "log-level")
	o.LogTime = boolFlag(cmd, "log-time")
	o.LogFormat = stringFlag(cmd, "log-format")
	o.LogOutput = stringFlag(cmd, "log-output")
	o.StatusListen = stringFlag(cmd, "status-listen")
	o.StalePolicy = stringFlag(cmd, "stale-policy")
	return o
}

func stringFlag(cmd *cli.Command, name string) *string {
	if !cmd.IsSet(name) {
		return nil
	}
	v := cmd.String(name)
	return &v
}

func boolFlag(cmd *cli.Command, name string) *bool {
	if !cmd.IsSet(name) {
		return nil
	}
	v := cmd.Bool(name)
	return &v
}
