package esbuild

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atlanticdynamic/lynxserve/internal/build"
	"github.com/evanw/esbuild/pkg/api"
)

func parseFormat(name string) (api.Format, error) {
	switch name {
	case "iife", "":
		return api.FormatIIFE, nil
	case "esm":
		return api.FormatESModule, nil
	case "cjs":
		return api.FormatCommonJS, nil
	default:
		return api.FormatDefault, fmt.Errorf("unsupported format %q", name)
	}
}

func parsePlatform(name string) (api.Platform, error) {
	switch name {
	case "browser", "":
		return api.PlatformBrowser, nil
	case "node":
		return api.PlatformNode, nil
	case "neutral":
		return api.PlatformNeutral, nil
	default:
		return api.PlatformDefault, fmt.Errorf("unsupported platform %q", name)
	}
}

var targets = map[string]api.Target{
	"esnext": api.ESNext,
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
}

func parseTarget(name string) (api.Target, error) {
	if name == "" {
		return api.ES2020, nil
	}
	t, ok := targets[name]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unsupported target %q", name)
	}
	return t, nil
}

var loaders = map[string]api.Loader{
	"js":      api.LoaderJS,
	"jsx":     api.LoaderJSX,
	"ts":      api.LoaderTS,
	"tsx":     api.LoaderTSX,
	"json":    api.LoaderJSON,
	"css":     api.LoaderCSS,
	"text":    api.LoaderText,
	"base64":  api.LoaderBase64,
	"binary":  api.LoaderBinary,
	"dataurl": api.LoaderDataURL,
	"file":    api.LoaderFile,
	"copy":    api.LoaderCopy,
	"empty":   api.LoaderEmpty,
}

func parseLoaders(in map[string]string) (map[string]api.Loader, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]api.Loader, len(in))
	for ext, name := range in {
		l, ok := loaders[name]
		if !ok {
			return nil, fmt.Errorf("unsupported loader %q for %s", name, ext)
		}
		out[ext] = l
	}
	return out, nil
}

// convertMessages maps esbuild diagnostics, making file paths relative to
// base where possible.
func convertMessages(msgs []api.Message, base string) []build.Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]build.Message, 0, len(msgs))
	for _, m := range msgs {
		msg := build.Message{Text: m.Text}
		if m.PluginName != "" {
			msg.Text = fmt.Sprintf("[plugin %s] %s", m.PluginName, m.Text)
		}
		if loc := m.Location; loc != nil {
			msg.File = loc.File
			if filepath.IsAbs(loc.File) && base != "" {
				if rel, err := filepath.Rel(base, loc.File); err == nil && !strings.HasPrefix(rel, "..") {
					msg.File = rel
				}
			}
			msg.Line = loc.Line
			msg.Column = loc.Column
			msg.LineText = loc.LineText
		}
		out = append(out, msg)
	}
	return out
}

func joinMessages(msgs []api.Message) string {
	texts := make([]string, 0, len(msgs))
	for _, m := range convertMessages(msgs, "") {
		texts = append(texts, m.String())
	}
	return strings.Join(texts, "; ")
}
