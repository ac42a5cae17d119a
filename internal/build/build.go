// Package build defines the contract between the dev server and a bundler:
// the Compiler interface, the artifacts a compile produces, and the Event
// stream describing every compile cycle.
package build

import (
	"context"
	"errors"
)

// ErrCompileFatal marks a compiler failure the server cannot recover from.
var ErrCompileFatal = errors.New("fatal compiler error")

// Compiler is a bundler driven by the compile coordinator. Implementations
// are used from a single goroutine; Compile is never called concurrently.
type Compiler interface {
	// Setup prepares the compiler. Any error is treated as fatal.
	Setup(ctx context.Context) error

	// Compile runs one full build. Problems in the user's sources are reported
	// through Result.Errors; a returned error is treated as fatal.
	Compile(ctx context.Context) (*Result, error)

	// WatchPaths lists the files or directories whose changes should trigger a rebuild.
	WatchPaths() []string

	// Close releases resources held by the compiler.
	Close() error
}

// Result is the outcome of a single Compile call.
type Result struct {
	Artifacts []Artifact
	Warnings  []Message
	Errors    []Message
}

// Kind classifies a compile that did not fail fatally.
func (r *Result) Kind() Kind {
	switch {
	case len(r.Errors) > 0:
		return KindErrors
	case len(r.Warnings) > 0:
		return KindWarnings
	default:
		return KindSuccess
	}
}
