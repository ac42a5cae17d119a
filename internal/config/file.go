package config

// File mirrors the on-disk configuration. Every field is optional; zero values
// mean "not set" and fall back to defaults or command line values.
type File struct {
	Serve ServeSection `toml:"serve" yaml:"serve" env_interpolation:"yes"`
	Build BuildSection `toml:"build" yaml:"build" env_interpolation:"yes"`
}

// ServeSection configures the HTTP transport, the hot channel and logging.
type ServeSection struct {
	Host         string            `toml:"host"          yaml:"host"          env_interpolation:"yes"`
	Port         int               `toml:"port"          yaml:"port"`
	Content      []string          `toml:"content"       yaml:"content"       env_interpolation:"yes"`
	HTTP2        bool              `toml:"http2"         yaml:"http2"`
	LogLevel     string            `toml:"log_level"     yaml:"log_level"     env_interpolation:"yes"`
	LogTime      bool              `toml:"log_time"      yaml:"log_time"`
	LogFormat    string            `toml:"log_format"    yaml:"log_format"`
	LogOutput    string            `toml:"log_output"    yaml:"log_output"    env_interpolation:"yes"`
	Require      []string          `toml:"require"       yaml:"require"       env_interpolation:"yes"`
	StalePolicy  string            `toml:"stale_policy"  yaml:"stale_policy"`
	StatusListen string            `toml:"status_listen" yaml:"status_listen" env_interpolation:"yes"`
	Headers      map[string]string `toml:"headers"       yaml:"headers"       env_interpolation:"yes"`
	HTTPS        HTTPSSection      `toml:"https"         yaml:"https"         env_interpolation:"yes"`
	Hot          HotSection        `toml:"hot"           yaml:"hot"           env_interpolation:"yes"`
}

// HTTPSSection points at TLS material. Either Cert and Key, or PFX.
type HTTPSSection struct {
	Cert string `toml:"cert" yaml:"cert" env_interpolation:"yes"`
	Key  string `toml:"key"  yaml:"key"  env_interpolation:"yes"`
	Pass string `toml:"pass" yaml:"pass" env_interpolation:"yes"`
	PFX  string `toml:"pfx"  yaml:"pfx"  env_interpolation:"yes"`
}

// HotSection configures the live reload channel.
type HotSection struct {
	Enabled *bool  `toml:"enabled" yaml:"enabled"`
	Host    string `toml:"host"    yaml:"host"    env_interpolation:"yes"`
	Port    int    `toml:"port"    yaml:"port"`
}

// BuildSection configures the bundler.
type BuildSection struct {
	Entry      []string          `toml:"entry"       yaml:"entry"       env_interpolation:"yes"`
	Outdir     string            `toml:"outdir"      yaml:"outdir"      env_interpolation:"yes"`
	PublicPath string            `toml:"public_path" yaml:"public_path" env_interpolation:"yes"`
	Format     string            `toml:"format"      yaml:"format"`
	Platform   string            `toml:"platform"    yaml:"platform"`
	Target     string            `toml:"target"      yaml:"target"`
	Sourcemap  *bool             `toml:"sourcemap"   yaml:"sourcemap"`
	Minify     bool              `toml:"minify"      yaml:"minify"`
	Define     map[string]string `toml:"define"      yaml:"define"      env_interpolation:"yes"`
	Loader     map[string]string `toml:"loader"      yaml:"loader"`
	External   []string          `toml:"external"    yaml:"external"`
	Watch      []string          `toml:"watch"       yaml:"watch"       env_interpolation:"yes"`
	Debounce   Duration          `toml:"debounce"    yaml:"debounce"`
}
