package testutil

import (
	"net"
	"strconv"
	"sync"
	"testing"
)

const maxPortAttempts = 50

var (
	portMutex = &sync.Mutex{}
	usedPorts = make(map[int]struct{})
)

// GetRandomPort returns a free loopback port not handed out before in this
// test binary.
func GetRandomPort(t *testing.T) int {
	t.Helper()
	portMutex.Lock()
	defer portMutex.Unlock()

	for range maxPortAttempts {
		p, err := freePort()
		if err != nil {
			t.Fatalf("Failed to get random port: %v", err)
		}
		if _, ok := usedPorts[p]; ok {
			continue
		}
		usedPorts[p] = struct{}{}
		return p
	}
	t.Fatalf("No unused port after %d attempts", maxPortAttempts)
	return 0
}

// GetPortPair returns a port p such that p and p+1 are both free, matching
// the default layout of transport and hot channel.
func GetPortPair(t *testing.T) int {
	t.Helper()
	portMutex.Lock()
	defer portMutex.Unlock()

	for range maxPortAttempts {
		p, err := freePort()
		if err != nil {
			t.Fatalf("Failed to get random port: %v", err)
		}
		if p >= 65535 {
			continue
		}
		_, usedP := usedPorts[p]
		_, usedNext := usedPorts[p+1]
		if usedP || usedNext || !isFree(p+1) {
			continue
		}
		usedPorts[p] = struct{}{}
		usedPorts[p+1] = struct{}{}
		return p
	}
	t.Fatalf("No free port pair after %d attempts", maxPortAttempts)
	return 0
}

func freePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	p := listener.Addr().(*net.TCPAddr).Port
	return p, listener.Close()
}

func isFree(port int) bool {
	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	return listener.Close() == nil
}
