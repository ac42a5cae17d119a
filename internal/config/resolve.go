// Package config turns command line values and an optional config file into
// the single Resolved configuration a server process runs with.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/atlanticdynamic/lynxserve/internal/config/errz"
	"github.com/atlanticdynamic/lynxserve/internal/config/loader"
	"github.com/atlanticdynamic/lynxserve/internal/config/preload"
	"github.com/atlanticdynamic/lynxserve/internal/interpolation"
	"github.com/atlanticdynamic/lynxserve/internal/logging"
)

// ResolveOptions are the inputs to Resolve.
type ResolveOptions struct {
	// ExplicitPath is the --config flag or positional argument, if any.
	ExplicitPath string
	// WorkingDir anchors discovery and relative command line paths. Defaults to the process cwd.
	WorkingDir string
	Overrides  Overrides
	// Logger receives diagnostics produced while resolving.
	Logger *slog.Logger
}

// Resolve locates and loads the config file, runs the preload modules,
// expands environment references, applies command line overrides and
// validates the result.
//
// Errors wrap errz.ErrConfigNotFound or errz.ErrConfigLoad.
func Resolve(ctx context.Context, opts ResolveOptions) (*Resolved, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.WithGroup("config")

	wd, err := workingDir(opts.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errz.ErrConfigLoad, err)
	}

	path, err := Locate(opts.ExplicitPath, wd)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loading config file", "path", path)

	var file File
	if err := loader.LoadFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", errz.ErrConfigLoad, err)
	}
	configDir := filepath.Dir(path)

	modules, err := preloadModules(opts.Overrides.Require, file.Serve.Require, wd, configDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errz.ErrConfigLoad, err)
	}
	if err := preload.Run(ctx, modules, preload.Vars{WorkingDir: wd, ConfigPath: path}, logger.Handler()); err != nil {
		return nil, fmt.Errorf("%w: %w", errz.ErrConfigLoad, err)
	}

	if err := interpolation.InterpolateStruct(&file); err != nil {
		return nil, fmt.Errorf("%w: %w", errz.ErrConfigLoad, err)
	}

	resolved, mergeErrs := merge(&file, &opts.Overrides, wd, configDir)
	resolved.ConfigPath = path
	resolved.WorkingDir = wd
	resolved.PreloadModules = modules

	if err := joinErrors(append(mergeErrs, validate(resolved)...)); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errz.ErrConfigLoad, path, err)
	}

	for _, root := range resolved.ContentRoots {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			logger.Warn("Content root is not a directory", "path", root)
		}
	}
	return resolved, nil
}

func workingDir(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	return filepath.Abs(dir)
}

// preloadModules picks the command line list when given, otherwise the
// file's list. Entries are expanded individually since modules run before
// the rest of the file is interpolated.
func preloadModules(cli, fromFile []string, wd, configDir string) ([]string, error) {
	base, list := wd, cli
	if len(list) == 0 {
		base, list = configDir, fromFile
	}
	out := make([]string, 0, len(list))
	for _, m := range list {
		expanded, err := interpolation.ExpandEnvVars(m)
		if err != nil {
			return nil, fmt.Errorf("preload module %q: %w", m, err)
		}
		out = append(out, absFrom(base, expanded))
	}
	return out, nil
}

// merge applies precedence: command line, then file, then defaults.
func merge(f *File, o *Overrides, wd, configDir string) (*Resolved, []error) {
	var errs []error
	r := &Resolved{}

	r.Host = pick(o.Host, f.Serve.Host)
	if r.Host == "" {
		r.Host = DefaultHost
	}
	r.Port = pick(o.Port, f.Serve.Port)
	if o.Port == nil && f.Serve.Port == 0 {
		r.Port = DefaultPort
	}

	switch {
	case len(o.Content) > 0:
		r.ContentRoots = absAll(wd, o.Content)
	case len(f.Serve.Content) > 0:
		r.ContentRoots = absAll(configDir, f.Serve.Content)
	default:
		r.ContentRoots = []string{configDir}
	}
	r.Headers = maps.Clone(f.Serve.Headers)

	tls := &TLS{
		CertFile:   pathPick(o.HTTPSCert, f.Serve.HTTPS.Cert, wd, configDir),
		KeyFile:    pathPick(o.HTTPSKey, f.Serve.HTTPS.Key, wd, configDir),
		PFXFile:    pathPick(o.HTTPSPFX, f.Serve.HTTPS.PFX, wd, configDir),
		Passphrase: pick(o.HTTPSPass, f.Serve.HTTPS.Pass),
	}
	if tls.CertFile != "" || tls.KeyFile != "" || tls.PFXFile != "" {
		r.TLS = tls
	}
	r.HTTP2 = pick(o.HTTP2, f.Serve.HTTP2)

	r.Hot.Enabled = true
	if f.Serve.Hot.Enabled != nil {
		r.Hot.Enabled = *f.Serve.Hot.Enabled
	}
	if o.NoHotClient {
		r.Hot.Enabled = false
	}
	r.Hot.Host = f.Serve.Hot.Host
	if r.Hot.Host == "" {
		r.Hot.Host = r.Host
	}
	r.Hot.Port = f.Serve.Hot.Port
	if r.Hot.Port == 0 {
		r.Hot.Port = r.Port + 1
	}

	r.StalePolicy = StalePolicy(pick(o.StalePolicy, f.Serve.StalePolicy))
	if r.StalePolicy == "" {
		r.StalePolicy = DefaultStalePolicy
	}
	r.StatusListen = pick(o.StatusListen, f.Serve.StatusListen)

	level, err := logging.ParseLevel(pick(o.LogLevel, f.Serve.LogLevel))
	if err != nil {
		errs = append(errs, err)
	}
	r.LogLevel = level
	r.LogTimestamp = pick(o.LogTime, f.Serve.LogTime)
	r.LogFormat = pick(o.LogFormat, f.Serve.LogFormat)
	if r.LogFormat == "" {
		r.LogFormat = logging.FormatText
	}
	r.LogOutput = pick(o.LogOutput, f.Serve.LogOutput)

	r.Build = mergeBuild(&f.Build, configDir)
	if f.Build.Debounce < 0 {
		errs = append(errs, fmt.Errorf("%w: build.debounce must not be negative", errz.ErrInvalidValue))
	}
	return r, errs
}

func mergeBuild(b *BuildSection, configDir string) Build {
	out := Build{
		EntryPoints: absAll(configDir, b.Entry),
		Outdir:      absFrom(configDir, b.Outdir),
		PublicPath:  normalizePublicPath(b.PublicPath),
		Format:      strings.ToLower(b.Format),
		Platform:    strings.ToLower(b.Platform),
		Target:      strings.ToLower(b.Target),
		Sourcemap:   true,
		Minify:      b.Minify,
		Define:      maps.Clone(b.Define),
		Loader:      maps.Clone(b.Loader),
		External:    slices.Clone(b.External),
		Watch:       absAll(configDir, b.Watch),
		Debounce:    b.Debounce.AsDuration(),
	}
	if out.Outdir == "" {
		out.Outdir = filepath.Join(configDir, DefaultOutdir)
	}
	if out.Format == "" {
		out.Format = DefaultFormat
	}
	if out.Platform == "" {
		out.Platform = DefaultPlatform
	}
	if out.Target == "" {
		out.Target = DefaultTarget
	}
	if b.Sourcemap != nil {
		out.Sourcemap = *b.Sourcemap
	}
	if out.Debounce == 0 {
		out.Debounce = DefaultDebounce
	}
	if len(out.Watch) == 0 {
		for _, entry := range out.EntryPoints {
			dir := filepath.Dir(entry)
			if !slices.Contains(out.Watch, dir) {
				out.Watch = append(out.Watch, dir)
			}
		}
	}
	return out
}

func pathPick(override *string, fileValue, wd, configDir string) string {
	if override != nil {
		return absFrom(wd, *override)
	}
	return absFrom(configDir, fileValue)
}

func normalizePublicPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultPublicPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}
