package config

// Overrides carries the values given on the command line. Nil pointers and
// empty slices mean "not given"; given values win over the config file.
type Overrides struct {
	Host         *string
	Port         *int
	Content      []string
	HTTP2        *bool
	HTTPSCert    *string
	HTTPSKey     *string
	HTTPSPass    *string
	HTTPSPFX     *string
	LogLevel     *string
	LogTime      *bool
	LogFormat    *string
	LogOutput    *string
	NoHotClient  bool
	Require      []string
	StalePolicy  *string
	StatusListen *string
}

func pick[T any](override *T, fileValue T) T {
	if override != nil {
		return *override
	}
	return fileValue
}
