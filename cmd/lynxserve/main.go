package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:      "lynxserve",
		Version:   Version,
		Usage:     "Compile a JavaScript bundle, serve it and reload browsers on change",
		ArgsUsage: "[config]",
		Flags:     serveFlags(),
		Action:    serveAction,
		Commands: []*cli.Command{
			newValidateCmd(),
			newVersionCmd(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
