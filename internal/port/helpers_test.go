package port

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/portwatch/internal/netif"
)

// fakeConnect is a ConnectProber backed by a set of busy ports. It records
// every call so tests can assert on probe order and count.
type fakeConnect struct {
	mu sync.Mutex

	busy    map[int]bool
	failAt  int
	failErr error

	checks    []int
	waitCalls []waitCall
	waitErr   error
}

type waitCall struct {
	port    int
	host    string
	inUse   bool
	retry   time.Duration
	timeout time.Duration
}

func newFakeConnect(busy ...int) *fakeConnect {
	f := &fakeConnect{busy: make(map[int]bool)}
	for _, p := range busy {
		f.busy[p] = true
	}
	return f
}

func (f *fakeConnect) Check(_ context.Context, port int, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, port)
	if f.failErr != nil && port == f.failAt {
		return false, f.failErr
	}
	return f.busy[port], nil
}

func (f *fakeConnect) WaitForStatus(_ context.Context, port int, host string, inUse bool, retry, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitCalls = append(f.waitCalls, waitCall{port, host, inUse, retry, timeout})
	return f.waitErr
}

func (f *fakeConnect) checked() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.checks...)
}

// staticAliases returns a resolver whose enumeration yields addrs.
func staticAliases(addrs ...netif.Addr) *AliasResolver {
	return NewAliasResolver(netif.EnumeratorFunc(func() ([]netif.Addr, error) {
		return addrs, nil
	}))
}

func failingAliases(err error) *AliasResolver {
	return NewAliasResolver(netif.EnumeratorFunc(func() ([]netif.Addr, error) {
		return nil, err
	}))
}

var errEnumeration = errors.New("enumeration failed")

// listenLoopback starts a listener on 127.0.0.1 with an OS-assigned port.
func listenLoopback(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "failed to start test listener")
	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return ln, tcpAddr.Port
}

// freeLoopbackPort returns a port that was just released on 127.0.0.1.
func freeLoopbackPort(t *testing.T) int {
	t.Helper()
	ln, port := listenLoopback(t)
	require.NoError(t, ln.Close())
	return port
}

// listenOn listens on 127.0.0.1:port. A concurrent probe may hold the port
// for a moment, so a few attempts are made.
func listenOn(port int) (net.Listener, error) {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	var lastErr error
	for i := 0; i < 50; i++ {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
		lastErr = err
		time.Sleep(5 * time.Millisecond)
	}
	return nil, lastErr
}
