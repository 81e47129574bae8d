package port

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/portwatch/internal/model"
	"github.com/shinji-kodama/portwatch/internal/netif"
)

// TestSelectStrategy covers the three decision rules in order.
func TestSelectStrategy(t *testing.T) {
	s := NewScanner(WithAliasResolver(staticAliases(
		netif.Addr{Interface: "eth0", Address: "192.168.1.10", Family: netif.FamilyIPv4},
	)))

	tests := []struct {
		host string
		want model.Strategy
	}{
		{"", model.StrategyBind},
		{"localhost", model.StrategyBind},
		{"LOCALHOST", model.StrategyBind},
		{"0.0.0.0", model.StrategyBind},
		{"127.0.0.1", model.StrategyBind},
		{"::1", model.StrategyBind},
		{"192.168.1.10", model.StrategyBind},
		{"192.168.1.11", model.StrategyConnect},
		{"example.com", model.StrategyConnect},
		{"localhost.localdomain", model.StrategyConnect},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got, err := s.SelectStrategy(tt.host)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestSelectStrategy_ForceConnect verifies the override wins for every
// host, including the empty one, and can be switched off again.
func TestSelectStrategy_ForceConnect(t *testing.T) {
	s := NewScanner(WithAliasResolver(staticAliases()), WithForceConnect(true))
	assert.True(t, s.ForceConnect())

	for _, host := range []string{"", "localhost", "127.0.0.1", "example.com"} {
		got, err := s.SelectStrategy(host)
		require.NoError(t, err)
		assert.Equal(t, model.StrategyConnect, got, "host %q", host)
	}

	s.SetForceConnect(false)
	got, err := s.SelectStrategy("127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, model.StrategyBind, got)
}

// TestSelectStrategy_EnumerationError verifies an alias failure surfaces
// for hosts that need the alias list, and not for "" or localhost.
func TestSelectStrategy_EnumerationError(t *testing.T) {
	s := NewScanner(WithAliasResolver(failingAliases(errEnumeration)))

	_, err := s.SelectStrategy("10.0.0.1")
	assert.ErrorIs(t, err, errEnumeration)

	got, err := s.SelectStrategy("localhost")
	require.NoError(t, err)
	assert.Equal(t, model.StrategyBind, got)
}

// TestIsPortInUse_ListenThenRelease is the basic bind-probe property: a
// port with a listener is in use, and free again once it is released.
func TestIsPortInUse_ListenThenRelease(t *testing.T) {
	s := NewScanner()
	ctx := context.Background()

	ln, port := listenLoopback(t)

	inUse, err := s.IsPortInUse(ctx, port, "127.0.0.1")
	require.NoError(t, err)
	assert.True(t, inUse, "port %d should be in use (we have a listener on it)", port)

	require.NoError(t, ln.Close())

	inUse, err = s.IsPortInUse(ctx, port, "127.0.0.1")
	require.NoError(t, err)
	assert.False(t, inUse, "port %d should be free after the listener closed", port)
}

// TestIsPortInUseEx_AliasFanOut verifies a listener on one alias makes the
// port in use for every local host name, since all aliases are probed.
func TestIsPortInUseEx_AliasFanOut(t *testing.T) {
	s := NewScanner()
	ctx := context.Background()

	ln, port := listenLoopback(t)
	defer func() { _ = ln.Close() }()

	for _, host := range []string{"", "localhost", "0.0.0.0", "127.0.0.1"} {
		inUse, err := s.IsPortInUseEx(ctx, port, host)
		require.NoError(t, err, "host %q", host)
		assert.True(t, inUse, "host %q should see the loopback listener", host)
	}

	require.NoError(t, ln.Close())

	inUse, err := s.IsPortInUseEx(ctx, port, "localhost")
	require.NoError(t, err)
	assert.False(t, inUse)
}

// TestIsPortInUseEx_ReleasesProbeSockets verifies that probing leaves the
// port bindable: every probe listener is closed before returning.
func TestIsPortInUseEx_ReleasesProbeSockets(t *testing.T) {
	s := NewScanner()
	port := freeLoopbackPort(t)

	inUse, err := s.IsPortInUseEx(context.Background(), port, "")
	require.NoError(t, err)
	require.False(t, inUse)

	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err, "probe must not keep the port bound")
	_ = ln.Close()
}

// TestIsPortInUseEx_Connect verifies a non-local host is dialed once, with
// no alias fan-out.
func TestIsPortInUseEx_Connect(t *testing.T) {
	fc := newFakeConnect(8080)
	s := NewScanner(WithAliasResolver(staticAliases()), WithConnectProber(fc))

	inUse, err := s.IsPortInUseEx(context.Background(), 8080, "203.0.113.5")
	require.NoError(t, err)
	assert.True(t, inUse)
	assert.Equal(t, []int{8080}, fc.checked())
}

// TestIsPortInUse_UnexpectedBindFailure verifies that a bind failure other
// than "in use" is surfaced as UnexpectedBindError, not as free or busy.
// 192.0.2.1 (TEST-NET-1) is never configured on a test machine.
func TestIsPortInUse_UnexpectedBindFailure(t *testing.T) {
	s := NewScanner()

	_, err := s.IsPortInUse(context.Background(), 45678, "192.0.2.1")
	if err == nil {
		t.Skip("192.0.2.1 is bindable on this machine")
	}
	var bindErr *model.UnexpectedBindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "192.0.2.1", bindErr.Host)
	assert.Equal(t, 45678, bindErr.Port)
}

// recordingBind replaces the scanner's bind with one that records every
// host it is asked to bind and answers from results. Hosts missing from
// results are free.
func recordingBind(s *Scanner, results map[string]bindResult) *[]string {
	var visited []string
	s.bind = func(_ context.Context, _ int, host string) (bool, error) {
		visited = append(visited, host)
		r := results[host]
		return r.inUse, r.err
	}
	return &visited
}

type bindResult struct {
	inUse bool
	err   error
}

var sweepAddrs = []netif.Addr{
	{Interface: "eth0", Address: "192.168.1.10", Family: netif.FamilyIPv4},
	{Interface: "wlan0", Address: "10.0.0.7", Family: netif.FamilyIPv4},
}

// TestBindAcrossAliases_VisitsEveryAliasInOrder verifies a free answer is
// only given after each alias was bound, one after another in list order.
func TestBindAcrossAliases_VisitsEveryAliasInOrder(t *testing.T) {
	s := NewScanner(WithAliasResolver(staticAliases(sweepAddrs...)))
	visited := recordingBind(s, nil)

	inUse, err := s.IsPortInUseEx(context.Background(), 40000, "localhost")
	require.NoError(t, err)
	assert.False(t, inUse)
	assert.Equal(t, []string{"0.0.0.0", "127.0.0.1", "::1", "", "192.168.1.10", "10.0.0.7"}, *visited)
}

// TestBindAcrossAliases_StopsAtFirstInUse verifies the sweep ends at the
// first alias holding the port.
func TestBindAcrossAliases_StopsAtFirstInUse(t *testing.T) {
	s := NewScanner(WithAliasResolver(staticAliases(sweepAddrs...)))
	visited := recordingBind(s, map[string]bindResult{
		"::1":      {inUse: true},
		"10.0.0.7": {inUse: true},
	})

	inUse, err := s.IsPortInUseEx(context.Background(), 40000, "")
	require.NoError(t, err)
	assert.True(t, inUse)
	assert.Equal(t, []string{"0.0.0.0", "127.0.0.1", "::1"}, *visited)
}

// TestBindAcrossAliases_AbortsOnError verifies the first bind failure ends
// the sweep and is returned unchanged.
func TestBindAcrossAliases_AbortsOnError(t *testing.T) {
	bindErr := &model.UnexpectedBindError{Host: "127.0.0.1", Port: 40000, Err: errors.New("permission denied")}
	s := NewScanner(WithAliasResolver(staticAliases(sweepAddrs...)))
	visited := recordingBind(s, map[string]bindResult{
		"127.0.0.1":    {err: bindErr},
		"192.168.1.10": {inUse: true},
	})

	_, err := s.IsPortInUseEx(context.Background(), 40000, "0.0.0.0")
	assert.Same(t, bindErr, err)
	assert.Equal(t, []string{"0.0.0.0", "127.0.0.1"}, *visited)
}

// addrNotAvailable returns the error the OS gives when binding an address
// no interface carries. 192.0.2.1 (TEST-NET-1) is never configured on a
// test machine.
func addrNotAvailable(t *testing.T) error {
	t.Helper()
	ln, err := net.Listen("tcp", "192.0.2.1:0")
	if err == nil {
		_ = ln.Close()
		t.Skip("192.0.2.1 is bindable on this machine")
	}
	return &model.UnexpectedBindError{Host: "192.0.2.1", Err: err}
}

// TestBindAcrossAliases_SkipsMissingIPv6Loopback verifies a host without
// IPv6 still gets a complete answer from the remaining aliases.
func TestBindAcrossAliases_SkipsMissingIPv6Loopback(t *testing.T) {
	s := NewScanner(WithAliasResolver(staticAliases(sweepAddrs...)))
	visited := recordingBind(s, map[string]bindResult{
		"::1": {err: addrNotAvailable(t)},
	})

	inUse, err := s.IsPortInUseEx(context.Background(), 40000, "")
	require.NoError(t, err)
	assert.False(t, inUse)
	assert.Equal(t, []string{"0.0.0.0", "127.0.0.1", "::1", "", "192.168.1.10", "10.0.0.7"}, *visited)
}

// TestBindAcrossAliases_UnavailableInterfaceAddressFails verifies that an
// enumerated address that can no longer be bound (the interface went away
// after the alias list was cached) fails the check instead of being
// silently skipped.
func TestBindAcrossAliases_UnavailableInterfaceAddressFails(t *testing.T) {
	s := NewScanner(WithAliasResolver(staticAliases(
		netif.Addr{Interface: "ghost0", Address: "192.0.2.1", Family: netif.FamilyIPv4},
	)))

	_, err := s.IsPortInUseEx(context.Background(), freeLoopbackPort(t), "127.0.0.1")
	if err == nil {
		t.Skip("192.0.2.1 is bindable on this machine")
	}
	var bindErr *model.UnexpectedBindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "192.0.2.1", bindErr.Host)
}

func TestIsPortInUse_InvalidPort(t *testing.T) {
	s := NewScanner()
	var portErr *model.InvalidPortError

	_, err := s.IsPortInUse(context.Background(), 0, "")
	assert.ErrorAs(t, err, &portErr)

	_, err = s.IsPortInUseEx(context.Background(), 65536, "")
	assert.ErrorAs(t, err, &portErr)
}

func TestScanner_Aliases(t *testing.T) {
	s := NewScanner(WithAliasResolver(staticAliases()))
	aliases, err := s.Aliases()
	require.NoError(t, err)
	assert.Equal(t, fixedAliases, aliases)
}
