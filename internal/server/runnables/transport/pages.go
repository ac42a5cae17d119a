package transport

import (
	"html/template"
	"net/http"

	"github.com/atlanticdynamic/lynxserve/internal/build"
)

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>lynxserve</title></head>
<body>
<h1>lynxserve</h1>
<p>Build {{.Hash}}</p>
<h2>Assets</h2>
<ul>
{{- range .Assets}}
<li><a href="{{.Name}}">{{.Name}}</a> ({{.Size}} bytes)</li>
{{- else}}
<li>none</li>
{{- end}}
</ul>
{{- if .Scripts}}
{{- range .Scripts}}
<script src="{{.}}"></script>
{{- end}}
{{- end}}
</body>
</html>
`))

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Failed to compile</title></head>
<body>
<h1>Failed to compile</h1>
{{- range .}}
<pre>{{.String}}{{if .LineText}}
    {{.LineText}}{{end}}</pre>
{{- end}}
</body>
</html>
`))

type indexData struct {
	Hash    string
	Assets  []build.AssetInfo
	Scripts []string
}

func (r *Runner) serveIndex(w http.ResponseWriter, set *artifactSet) {
	data := indexData{}
	if set != nil {
		data.Hash = set.hash
		data.Assets = set.ordered
		for _, a := range set.ordered {
			if isScript(a.Name) {
				data.Scripts = append(data.Scripts, a.Name)
			}
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := indexPage.Execute(w, data); err != nil {
		r.logger.Debug("Failed to render index page", "error", err)
	}
}

func (r *Runner) serveError(w http.ResponseWriter, f *failure) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusInternalServerError)
	if err := errorPage.Execute(w, f.messages); err != nil {
		r.logger.Debug("Failed to render error page", "error", err)
	}
}

func isScript(name string) bool {
	n := len(name)
	return (n > 3 && name[n-3:] == ".js") || (n > 4 && name[n-4:] == ".mjs")
}
