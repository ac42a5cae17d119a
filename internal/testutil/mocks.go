package testutil

import (
	"context"
	"sync"

	"github.com/atlanticdynamic/lynxserve/internal/build"
	"github.com/stretchr/testify/mock"
)

var _ build.Compiler = (*MockCompiler)(nil)

// MockCompiler implements build.Compiler for testing
type MockCompiler struct {
	mock.Mock
}

func (m *MockCompiler) Setup(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCompiler) Compile(ctx context.Context) (*build.Result, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*build.Result)
	return res, args.Error(1)
}

func (m *MockCompiler) WatchPaths() []string {
	args := m.Called()
	paths, _ := args.Get(0).([]string)
	return paths
}

func (m *MockCompiler) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ build.Compiler = (*ScriptedCompiler)(nil)

// ScriptedCompiler returns the queued results in order, one per Compile
// call. Once the queue is drained, Compile repeats the last result.
type ScriptedCompiler struct {
	mu       sync.Mutex
	steps    []scriptStep
	last     scriptStep
	setupErr error
	paths    []string
	calls    int
	closed   bool
}

type scriptStep struct {
	res *build.Result
	err error
}

// NewScriptedCompiler creates a ScriptedCompiler returning results in order.
func NewScriptedCompiler(results ...*build.Result) *ScriptedCompiler {
	s := &ScriptedCompiler{}
	for _, res := range results {
		s.steps = append(s.steps, scriptStep{res: res})
	}
	return s
}

// FailSetup makes Setup return err.
func (s *ScriptedCompiler) FailSetup(err error) *ScriptedCompiler {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setupErr = err
	return s
}

// FailCompile queues a Compile call that returns err instead of a result.
func (s *ScriptedCompiler) FailCompile(err error) *ScriptedCompiler {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, scriptStep{err: err})
	return s
}

// Watch sets the paths returned by WatchPaths.
func (s *ScriptedCompiler) Watch(paths ...string) *ScriptedCompiler {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = paths
	return s
}

// Push queues another result.
func (s *ScriptedCompiler) Push(res *build.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, scriptStep{res: res})
}

func (s *ScriptedCompiler) Setup(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setupErr
}

func (s *ScriptedCompiler) Compile(context.Context) (*build.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.steps) > 0 {
		s.last = s.steps[0]
		s.steps = s.steps[1:]
	}
	if s.last.err != nil {
		return nil, s.last.err
	}
	if s.last.res == nil {
		return &build.Result{}, nil
	}
	return s.last.res, nil
}

func (s *ScriptedCompiler) WatchPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paths
}

func (s *ScriptedCompiler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Calls returns how many times Compile ran.
func (s *ScriptedCompiler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Closed reports whether Close was called.
func (s *ScriptedCompiler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SuccessResult is a compile result with a single artifact.
func SuccessResult(urlPath, contents string) *build.Result {
	return &build.Result{
		Artifacts: []build.Artifact{{URLPath: urlPath, Contents: []byte(contents)}},
	}
}

// ErrorResult is a compile result carrying one error message.
func ErrorResult(text string) *build.Result {
	return &build.Result{
		Errors: []build.Message{{Text: text, File: "src/index.js", Line: 1, Column: 1}},
	}
}

// WarningResult is a successful compile result carrying one warning.
func WarningResult(urlPath, contents, warning string) *build.Result {
	res := SuccessResult(urlPath, contents)
	res.Warnings = []build.Message{{Text: warning}}
	return res
}
