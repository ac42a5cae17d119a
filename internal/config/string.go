package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atlanticdynamic/lynxserve/internal/fancy"
	"github.com/atlanticdynamic/lynxserve/internal/logging"
)

// String returns a pretty-printed tree representation of the config
func (r *Resolved) String() string {
	return Tree(r)
}

// Tree renders the resolved configuration for `lynxserve validate --tree`.
func Tree(r *Resolved) string {
	t := fancy.Tree()
	t.Root(fancy.RootStyle.Render(fmt.Sprintf("lynxserve config (%s)", r.ConfigPath)))

	serve := fancy.BranchNode("Serve", r.URL())
	serve.Child(fmt.Sprintf("Content: %s", strings.Join(r.ContentRoots, ", ")))
	serve.Child(fmt.Sprintf("HTTP/2: %t", r.HTTP2))
	serve.Child(fmt.Sprintf("Stale policy: %s", r.StalePolicy))
	if r.TLS != nil {
		tls := fancy.BranchNode("TLS", "")
		if r.TLS.PFXFile != "" {
			tls.Child(fancy.PathText("PFX: " + r.TLS.PFXFile))
		} else {
			tls.Child(fancy.PathText("Cert: " + r.TLS.CertFile))
			tls.Child(fancy.PathText("Key: " + r.TLS.KeyFile))
		}
		serve.Child(tls)
	}
	if len(r.Headers) > 0 {
		names := make([]string, 0, len(r.Headers))
		for name := range r.Headers {
			names = append(names, name)
		}
		sort.Strings(names)
		headers := fancy.BranchNode("Headers", fmt.Sprintf("(%d)", len(names)))
		for _, name := range names {
			headers.Child(fmt.Sprintf("%s: %s", name, r.Headers[name]))
		}
		serve.Child(headers)
	}
	if r.StatusListen != "" {
		serve.Child(fmt.Sprintf("Status: %s", r.StatusListen))
	}
	t.Child(serve)

	if r.Hot.Enabled {
		t.Child(fancy.BranchNode("Hot channel", r.HotURL()))
	} else {
		t.Child(fancy.BranchNode("Hot channel", "disabled"))
	}

	logs := fancy.BranchNode("Logging", "")
	logs.Child(fmt.Sprintf("Level: %s", logging.LevelName(r.LogLevel)))
	logs.Child(fmt.Sprintf("Timestamp: %t", r.LogTimestamp))
	logs.Child(fmt.Sprintf("Format: %s", r.LogFormat))
	t.Child(logs)

	b := fancy.BranchNode("Build", fmt.Sprintf("(%d entries)", len(r.Build.EntryPoints)))
	for _, e := range r.Build.EntryPoints {
		b.Child(fancy.PathText(e))
	}
	b.Child(fmt.Sprintf("Format: %s, platform: %s, target: %s", r.Build.Format, r.Build.Platform, r.Build.Target))
	b.Child(fmt.Sprintf("Public path: %s", r.Build.PublicPath))
	b.Child(fmt.Sprintf("Debounce: %s", r.Build.Debounce))
	t.Child(b)

	if len(r.PreloadModules) > 0 {
		pre := fancy.BranchNode("Preload", fmt.Sprintf("(%d)", len(r.PreloadModules)))
		for _, m := range r.PreloadModules {
			pre.Child(fancy.PathText(m))
		}
		t.Child(pre)
	}
	return t.String()
}
