package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/atlanticdynamic/lynxserve/internal/config/errz"
	"github.com/atlanticdynamic/lynxserve/internal/logging"
	"golang.org/x/net/http/httpguts"
)

var (
	validFormats   = []string{"iife", "esm", "cjs"}
	validPlatforms = []string{"browser", "node", "neutral"}
	validTargets   = []string{
		"esnext", "es5", "es2015", "es2016", "es2017", "es2018", "es2019", "es2020", "es2021", "es2022",
	}
	validLoaders = []string{
		"js", "jsx", "ts", "tsx", "json", "css", "text", "base64", "binary", "dataurl", "file", "copy", "empty",
	}
)

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}

// validate checks the merged configuration and returns every problem found.
func validate(r *Resolved) []error {
	var errs []error

	if len(r.Build.EntryPoints) == 0 {
		errs = append(errs, fmt.Errorf("%w: build.entry", errz.ErrMissingRequiredField))
	}
	if r.Port < 1 || r.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: port %d out of range 1-65535", errz.ErrInvalidValue, r.Port))
	}
	if r.Hot.Enabled {
		if r.Hot.Port < 1 || r.Hot.Port > 65535 {
			errs = append(errs, fmt.Errorf("%w: hot port %d out of range 1-65535", errz.ErrInvalidValue, r.Hot.Port))
		}
		if r.Hot.Port == r.Port && r.Hot.Host == r.Host {
			errs = append(errs, fmt.Errorf("%w: hot channel and transport share %s", errz.ErrConflict, r.Addr()))
		}
	}

	errs = append(errs, validateTLS(r)...)
	errs = append(errs, validateHeaders(r.Headers)...)

	if r.StalePolicy != StaleServe && r.StalePolicy != StaleShowError {
		errs = append(errs, fmt.Errorf("%w: stale policy %q (want %s or %s)",
			errz.ErrInvalidValue, r.StalePolicy, StaleServe, StaleShowError))
	}
	if r.StatusListen != "" {
		if _, _, err := ParseListenAddr(r.StatusListen); err != nil {
			errs = append(errs, fmt.Errorf("%w: status listen address: %w", errz.ErrInvalidValue, err))
		}
	}
	if r.LogFormat != logging.FormatText && r.LogFormat != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("%w: log format %q", errz.ErrInvalidValue, r.LogFormat))
	}

	errs = append(errs, validateBuild(&r.Build)...)
	return errs
}

func validateTLS(r *Resolved) []error {
	if r.TLS == nil {
		if r.HTTP2 {
			return []error{fmt.Errorf("%w: http2 requires TLS material (cert and key, or pfx)", errz.ErrConflict)}
		}
		return nil
	}

	var errs []error
	t := r.TLS
	if t.PFXFile != "" && (t.CertFile != "" || t.KeyFile != "") {
		errs = append(errs, fmt.Errorf("%w: https pfx cannot be combined with cert or key", errz.ErrConflict))
	}
	if t.PFXFile == "" {
		if t.CertFile == "" {
			errs = append(errs, fmt.Errorf("%w: https cert", errz.ErrMissingRequiredField))
		}
		if t.KeyFile == "" {
			errs = append(errs, fmt.Errorf("%w: https key", errz.ErrMissingRequiredField))
		}
	}
	return errs
}

func validateHeaders(headers map[string]string) []error {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if !httpguts.ValidHeaderFieldName(name) {
			errs = append(errs, fmt.Errorf("%w: header name %q", errz.ErrInvalidValue, name))
		}
		if !httpguts.ValidHeaderFieldValue(headers[name]) {
			errs = append(errs, fmt.Errorf("%w: value of header %q", errz.ErrInvalidValue, name))
		}
	}
	return errs
}

func validateBuild(b *Build) []error {
	var errs []error
	if !slices.Contains(validFormats, b.Format) {
		errs = append(errs, fmt.Errorf("%w: build.format %q (want one of %s)",
			errz.ErrInvalidValue, b.Format, strings.Join(validFormats, ", ")))
	}
	if !slices.Contains(validPlatforms, b.Platform) {
		errs = append(errs, fmt.Errorf("%w: build.platform %q (want one of %s)",
			errz.ErrInvalidValue, b.Platform, strings.Join(validPlatforms, ", ")))
	}
	if !slices.Contains(validTargets, b.Target) {
		errs = append(errs, fmt.Errorf("%w: build.target %q", errz.ErrInvalidValue, b.Target))
	}

	exts := make([]string, 0, len(b.Loader))
	for ext := range b.Loader {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("%w: build.loader key %q must start with '.'", errz.ErrInvalidValue, ext))
		}
		if !slices.Contains(validLoaders, b.Loader[ext]) {
			errs = append(errs, fmt.Errorf("%w: build.loader %q for %s", errz.ErrInvalidValue, b.Loader[ext], ext))
		}
	}
	return errs
}
