package config

import (
	"log/slog"
	"net"
	"strconv"
	"time"
)

// Defaults applied when neither the command line nor the config file sets a value.
const (
	DefaultHost        = "localhost"
	DefaultPort        = 8080
	DefaultOutdir      = "dist"
	DefaultPublicPath  = "/"
	DefaultFormat      = "iife"
	DefaultPlatform    = "browser"
	DefaultTarget      = "es2020"
	DefaultDebounce    = 50 * time.Millisecond
	DefaultStalePolicy = StaleServe
)

// StalePolicy decides what the transport serves after a failed rebuild.
type StalePolicy string

const (
	// StaleServe keeps serving the last good artifacts until a rebuild succeeds.
	StaleServe StalePolicy = "serve-stale"
	// StaleShowError answers content requests with the compile errors instead.
	StaleShowError StalePolicy = "show-error"
)

// Resolved is the effective configuration of one server process. It is built
// once by Resolve and must not be modified afterwards. All paths are absolute.
type Resolved struct {
	ConfigPath string
	WorkingDir string

	Host         string
	Port         int
	ContentRoots []string
	Headers      map[string]string
	TLS          *TLS
	HTTP2        bool
	Hot          Hot
	StalePolicy  StalePolicy
	StatusListen string

	LogLevel     slog.Level
	LogTimestamp bool
	LogFormat    string
	LogOutput    string

	PreloadModules []string

	Build Build
}

// TLS holds the certificate material paths. Exactly one of the PEM pair or
// the PFX bundle is set.
type TLS struct {
	CertFile   string
	KeyFile    string
	Passphrase string
	PFXFile    string
}

// Hot configures the live reload channel.
type Hot struct {
	Enabled bool
	Host    string
	Port    int
}

// Build configures the bundler.
type Build struct {
	EntryPoints []string
	Outdir      string
	PublicPath  string
	Format      string
	Platform    string
	Target      string
	Sourcemap   bool
	Minify      bool
	Define      map[string]string
	Loader      map[string]string
	External    []string
	Watch       []string
	Debounce    time.Duration
}

// Addr is the transport listen address.
func (r *Resolved) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// HotAddr is the hot channel listen address.
func (r *Resolved) HotAddr() string {
	return net.JoinHostPort(r.Hot.Host, strconv.Itoa(r.Hot.Port))
}

// URL is the address browsers use to reach the transport.
func (r *Resolved) URL() string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Addr()
}

// HotURL is the address the browser client uses to subscribe to the hot channel.
func (r *Resolved) HotURL() string {
	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	return scheme + "://" + r.HotAddr()
}
