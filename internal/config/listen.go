package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrTCPSchemeRequiresHost  = errors.New("tcp scheme requires host:port after tcp://")
	ErrUnixSchemeRequiresPath = errors.New("unix scheme requires path after unix://")
	ErrUnsupportedURLScheme   = errors.New("unsupported URL scheme")
)

// ParseListenAddr splits a listen string into a network and address.
//   - "tcp://localhost:9090" → tcp, localhost:9090
//   - "unix:///tmp/lynx.sock" → unix, /tmp/lynx.sock
//   - "unix:/tmp/lynx.sock" → unix, /tmp/lynx.sock
//   - "localhost:9090" → tcp, localhost:9090
func ParseListenAddr(listenAddr string) (network, address string, err error) {
	if strings.Contains(listenAddr, "://") {
		u, err := url.Parse(listenAddr)
		if err != nil {
			return "", "", fmt.Errorf("invalid listen address: %w", err)
		}
		switch u.Scheme {
		case "tcp":
			if u.Host == "" {
				return "", "", ErrTCPSchemeRequiresHost
			}
			return "tcp", u.Host, nil
		case "unix":
			if u.Path == "" {
				return "", "", ErrUnixSchemeRequiresPath
			}
			return "unix", u.Path, nil
		default:
			return "", "", fmt.Errorf("%w: %s (supported: tcp, unix)", ErrUnsupportedURLScheme, u.Scheme)
		}
	}

	if path, ok := strings.CutPrefix(listenAddr, "unix:"); ok {
		if path == "" {
			return "", "", ErrUnixSchemeRequiresPath
		}
		return "unix", path, nil
	}
	return "tcp", listenAddr, nil
}
