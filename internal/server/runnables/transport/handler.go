package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/config"
	"github.com/atlanticdynamic/lynxserve/internal/server/metrics"
)

// Reserved paths answered before readiness and never shadowed by content.
const (
	ReservedPrefix = "/__lynx/"
	StatusPath     = ReservedPrefix + "status"
	MetricsPath    = ReservedPrefix + "metrics"
)

// Status is the body of the status endpoint.
type Status struct {
	State string       `json:"state"`
	Ready bool         `json:"ready"`
	Build *BuildStatus `json:"build,omitempty"`
}

// BuildStatus describes the artifacts currently served.
type BuildStatus struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	Hash   string    `json:"hash"`
	Time   time.Time `json:"time"`
	Assets int       `json:"assets"`
	Failed bool      `json:"failed"`
}

// ServeHTTP resolves a request against the reserved paths, the build
// artifacts, the content roots and finally the generated index.
func (r *Runner) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// handle is the last handler of the route.
func (r *Runner) handle(w http.ResponseWriter, req *http.Request) {
	kind := r.serve(w, req)
	if kw, ok := w.(*kindWriter); ok {
		kw.kind = kind
	}
}

func (r *Runner) serve(w http.ResponseWriter, req *http.Request) string {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return metrics.KindNotFound
	}

	urlPath := req.URL.Path
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	if strings.HasPrefix(urlPath, ReservedPrefix) {
		r.serveReserved(w, req, urlPath)
		return metrics.KindReserved
	}

	if !r.ready.Load() {
		w.Header().Set("Retry-After", "1")
		http.Error(w, "Waiting for the first successful compile", http.StatusServiceUnavailable)
		return metrics.KindUnavailable
	}

	if r.stalePolicy == config.StaleShowError {
		if f := r.failure.Load(); f != nil {
			r.serveError(w, f)
			return metrics.KindStale
		}
	}

	set := r.artifacts.Load()
	clean := path.Clean(urlPath)
	if a, ok := set.lookup(clean); ok {
		w.Header().Set("Cache-Control", "no-cache")
		if set.hash != "" {
			w.Header().Set("ETag", `"`+set.hash+`"`)
		}
		http.ServeContent(w, req, path.Base(clean), set.built, bytes.NewReader(a.Contents))
		return metrics.KindArtifact
	}

	if r.serveContent(w, req, clean) {
		return metrics.KindContent
	}

	if clean == "/" {
		r.serveIndex(w, set)
		return metrics.KindIndex
	}

	http.NotFound(w, req)
	return metrics.KindNotFound
}

// serveContent looks urlPath up in each content root in order. Directories
// serve their index.html; a directory requested without a trailing slash is
// redirected. It reports whether a response was written.
func (r *Runner) serveContent(w http.ResponseWriter, req *http.Request, urlPath string) bool {
	for _, root := range r.contentRoots {
		dir := http.Dir(root)
		f, err := dir.Open(urlPath)
		if err != nil {
			continue
		}
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			continue
		}

		if info.IsDir() {
			_ = f.Close()
			indexPath := path.Join(urlPath, "index.html")
			idx, err := dir.Open(indexPath)
			if err != nil {
				continue
			}
			idxInfo, err := idx.Stat()
			if err != nil || idxInfo.IsDir() {
				_ = idx.Close()
				continue
			}
			if urlPath != "/" && !strings.HasSuffix(req.URL.Path, "/") {
				_ = idx.Close()
				http.Redirect(w, req, req.URL.Path+"/", http.StatusMovedPermanently)
				return true
			}
			http.ServeContent(w, req, "index.html", idxInfo.ModTime(), idx)
			_ = idx.Close()
			return true
		}

		http.ServeContent(w, req, info.Name(), info.ModTime(), f)
		_ = f.Close()
		return true
	}
	return false
}

func (r *Runner) serveReserved(w http.ResponseWriter, req *http.Request, urlPath string) {
	switch urlPath {
	case StatusPath:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(r.Status()); err != nil {
			r.logger.Debug("Failed to write status", "error", err)
		}
	case MetricsPath:
		if r.metrics == nil {
			http.NotFound(w, req)
			return
		}
		r.metrics.Handler().ServeHTTP(w, req)
	default:
		http.NotFound(w, req)
	}
}

// Status reports readiness and the build currently served.
func (r *Runner) Status() Status {
	st := Status{State: r.GetState(), Ready: r.ready.Load()}
	if r.stateFunc != nil {
		st.State = r.stateFunc()
	}
	if set := r.artifacts.Load(); set != nil {
		st.Build = &BuildStatus{
			ID:     set.id,
			Kind:   string(set.kind),
			Hash:   set.hash,
			Time:   set.built,
			Assets: len(set.ordered),
			Failed: r.failure.Load() != nil,
		}
	}
	return st
}
