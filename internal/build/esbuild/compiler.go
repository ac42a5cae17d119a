// Package esbuild implements build.Compiler on top of esbuild's Go API.
// Output is kept in memory; nothing is written to disk.
package esbuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/build"
	"github.com/atlanticdynamic/lynxserve/internal/config"
	"github.com/evanw/esbuild/pkg/api"
)

var _ build.Compiler = (*Compiler)(nil)

var (
	ErrEntryNotFound = errors.New("entry point not found")
	ErrNotSetUp      = errors.New("compiler is not set up")
)

// Compiler is an incremental esbuild context.
type Compiler struct {
	cfg        config.Build
	workingDir string
	hotURL     string
	logger     *slog.Logger

	buildCtx api.BuildContext
}

// New creates a Compiler for cfg. Setup must be called before Compile.
func New(cfg config.Build, opts ...Option) *Compiler {
	c := &Compiler{
		cfg:    cfg,
		logger: slog.Default().WithGroup("esbuild.Compiler"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workingDir == "" && len(cfg.EntryPoints) > 0 {
		c.workingDir = filepath.Dir(cfg.EntryPoints[0])
	}
	return c
}

func (c *Compiler) String() string {
	return "esbuild.Compiler"
}

// Setup verifies the entry points and creates the esbuild context.
func (c *Compiler) Setup(_ context.Context) error {
	if len(c.cfg.EntryPoints) == 0 {
		return fmt.Errorf("%w: no entry points configured", ErrEntryNotFound)
	}
	for _, entry := range c.cfg.EntryPoints {
		info, err := os.Stat(entry)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, entry)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", ErrEntryNotFound, entry)
		}
	}

	opts, err := c.buildOptions()
	if err != nil {
		return err
	}
	buildCtx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return fmt.Errorf("failed to create esbuild context: %s", joinMessages(ctxErr.Errors))
	}
	c.buildCtx = buildCtx
	c.logger.Debug("esbuild context ready", "entries", c.cfg.EntryPoints, "outdir", c.cfg.Outdir)
	return nil
}

// Compile runs an incremental rebuild. Canceling ctx cancels the rebuild.
func (c *Compiler) Compile(ctx context.Context) (*build.Result, error) {
	if c.buildCtx == nil {
		return nil, ErrNotSetUp
	}

	done := make(chan api.BuildResult, 1)
	start := time.Now()
	go func() {
		done <- c.buildCtx.Rebuild()
	}()

	var result api.BuildResult
	select {
	case result = <-done:
	case <-ctx.Done():
		c.buildCtx.Cancel()
		<-done
		return nil, ctx.Err()
	}
	c.logger.Debug("Rebuild finished",
		"duration", time.Since(start),
		"outputs", len(result.OutputFiles),
		"errors", len(result.Errors),
		"warnings", len(result.Warnings))

	res := &build.Result{
		Warnings: convertMessages(result.Warnings, c.workingDir),
		Errors:   convertMessages(result.Errors, c.workingDir),
	}
	if len(res.Errors) > 0 {
		return res, nil
	}
	for _, f := range result.OutputFiles {
		urlPath, err := c.urlPath(f.Path)
		if err != nil {
			return nil, err
		}
		res.Artifacts = append(res.Artifacts, build.Artifact{URLPath: urlPath, Contents: f.Contents})
	}
	return res, nil
}

// WatchPaths returns the configured watch roots.
func (c *Compiler) WatchPaths() []string {
	return c.cfg.Watch
}

// Close disposes the esbuild context.
func (c *Compiler) Close() error {
	if c.buildCtx != nil {
		c.buildCtx.Dispose()
		c.buildCtx = nil
	}
	return nil
}

// urlPath maps an output file to the URL it is served under: the public
// path followed by the file's location relative to outdir.
func (c *Compiler) urlPath(outputPath string) (string, error) {
	rel, err := filepath.Rel(c.cfg.Outdir, outputPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("output %s is outside outdir %s", outputPath, c.cfg.Outdir)
	}
	prefix := strings.TrimSuffix(c.cfg.PublicPath, "/")
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimSuffix(prefix, "/") + "/" + filepath.ToSlash(rel), nil
}

func (c *Compiler) buildOptions() (api.BuildOptions, error) {
	format, err := parseFormat(c.cfg.Format)
	if err != nil {
		return api.BuildOptions{}, err
	}
	platform, err := parsePlatform(c.cfg.Platform)
	if err != nil {
		return api.BuildOptions{}, err
	}
	target, err := parseTarget(c.cfg.Target)
	if err != nil {
		return api.BuildOptions{}, err
	}
	loaders, err := parseLoaders(c.cfg.Loader)
	if err != nil {
		return api.BuildOptions{}, err
	}

	opts := api.BuildOptions{
		EntryPoints:       c.cfg.EntryPoints,
		Outdir:            c.cfg.Outdir,
		AbsWorkingDir:     c.workingDir,
		Bundle:            true,
		Write:             false,
		LogLevel:          api.LogLevelSilent,
		Format:            format,
		Platform:          platform,
		Target:            target,
		Loader:            loaders,
		Define:            c.cfg.Define,
		External:          c.cfg.External,
		PublicPath:        c.cfg.PublicPath,
		MinifyWhitespace:  c.cfg.Minify,
		MinifyIdentifiers: c.cfg.Minify,
		MinifySyntax:      c.cfg.Minify,
		Sourcemap:         api.SourceMapNone,
	}
	if c.cfg.Sourcemap {
		opts.Sourcemap = api.SourceMapLinked
	}
	if c.hotURL != "" && platform == api.PlatformBrowser {
		opts.Banner = map[string]string{"js": hotClientBanner(c.hotURL)}
	}
	return opts, nil
}
