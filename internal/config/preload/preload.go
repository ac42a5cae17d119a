// Package preload runs the modules listed under serve.require (or --require)
// before the configuration is interpolated, so they can export environment
// variables the config file refers to.
//
// Modules are Starlark scripts evaluated with go-polyscript. A script sees a
// ctx dict with "cwd" and "config_path", and may leave a dict in `_`:
//
//	_ = {"env": {"API_HOST": "localhost:3000"}}
//
// Every string entry of "env" is exported to the process environment.
package preload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/config/errz"
	"github.com/robbyt/go-polyscript/engines/starlark"
	"github.com/robbyt/go-polyscript/platform/constants"
	"github.com/robbyt/go-polyscript/platform/data"
	"github.com/robbyt/go-polyscript/platform/script/loader"
)

// DefaultTimeout bounds the evaluation of a single module.
const DefaultTimeout = 5 * time.Second

// Vars are exposed to every module.
type Vars struct {
	WorkingDir string
	ConfigPath string
}

// Run evaluates modules in order. The first failure stops the run.
func Run(ctx context.Context, modules []string, vars Vars, handler slog.Handler) error {
	logger := slog.New(handler).WithGroup("preload")
	for _, module := range modules {
		start := time.Now()
		exported, err := runModule(ctx, module, vars, handler)
		if err != nil {
			return err
		}
		logger.Debug("Preload module finished",
			"module", module,
			"exported", exported,
			"duration", time.Since(start))
	}
	return nil
}

func runModule(ctx context.Context, module string, vars Vars, handler slog.Handler) ([]string, error) {
	if !strings.EqualFold(filepath.Ext(module), ".star") {
		return nil, fmt.Errorf("%w: %s (only .star scripts are supported)", errz.ErrPreloadUnsupported, module)
	}
	if _, err := os.Stat(module); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errz.ErrPreloadFailed, module, err)
	}

	scriptLoader, err := loader.NewFromDisk(module)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errz.ErrPreloadFailed, module, err)
	}
	evaluator, err := starlark.FromStarlarkLoader(handler, scriptLoader)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: compile: %w", errz.ErrPreloadFailed, module, err)
	}

	evalCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	provider := data.NewContextProvider(constants.EvalData)
	evalCtx, err = provider.AddDataToContext(evalCtx, map[string]any{
		"cwd":         vars.WorkingDir,
		"config_path": vars.ConfigPath,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errz.ErrPreloadFailed, module, err)
	}

	result, err := evaluator.Eval(evalCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errz.ErrPreloadFailed, module, err)
	}
	if result == nil {
		return nil, nil
	}

	env, err := envFromResult(result.Interface())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errz.ErrPreloadFailed, module, err)
	}
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := os.Setenv(name, env[name]); err != nil {
			return nil, fmt.Errorf("%w: %s: setenv %s: %w", errz.ErrPreloadFailed, module, name, err)
		}
	}
	return names, nil
}

// envFromResult extracts the "env" dict from a script result. A result that
// is not a dict, or has no "env" key, exports nothing.
func envFromResult(value any) (map[string]string, error) {
	root, ok := value.(map[string]any)
	if !ok {
		return nil, nil
	}
	raw, ok := root["env"]
	if !ok || raw == nil {
		return nil, nil
	}

	out := map[string]string{}
	switch env := raw.(type) {
	case map[string]string:
		for k, v := range env {
			out[k] = v
		}
	case map[string]any:
		for k, v := range env {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("env value for %q must be a string, got %T", k, v)
			}
			out[k] = s
		}
	default:
		return nil, fmt.Errorf("env must be a dict, got %T", raw)
	}
	return out, nil
}
