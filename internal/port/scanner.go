package port

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/portwatch/internal/logging"
	"github.com/shinji-kodama/portwatch/internal/model"
	"github.com/shinji-kodama/portwatch/internal/netif"
	"github.com/shinji-kodama/portwatch/internal/tcpcheck"
)

// DefaultHost is the host used by the CLI when none is given. It is the
// IPv4 wildcard, which is also the first local alias.
const DefaultHost = "0.0.0.0"

// ConnectProber is the connect-based probing collaborator used for hosts
// that are not known to be local. *tcpcheck.Checker implements it.
type ConnectProber interface {
	Check(ctx context.Context, port int, host string) (bool, error)
	WaitForStatus(ctx context.Context, port int, host string, inUse bool, retry, timeout time.Duration) error
}

// Scanner is the entry point for every probing operation. It owns the
// process-wide state of the engine: the cached alias list and the
// force-connect override. Construct one at startup and share it.
//
// Operations on one Scanner may run from several goroutines, but the
// Scanner does not serialize them: two callers probing the same port at
// the same time can see each other's probe sockets.
type Scanner struct {
	aliases      *AliasResolver
	connect      ConnectProber
	forceConnect atomic.Bool
	logger       logrus.FieldLogger
	metrics      *Metrics
	listenConfig net.ListenConfig

	// bind performs a single bind probe. NewScanner sets it to bindProbe.
	bind func(ctx context.Context, port int, host string) (bool, error)
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithAliasResolver replaces the resolver built on the real interfaces.
func WithAliasResolver(r *AliasResolver) Option {
	return func(s *Scanner) { s.aliases = r }
}

// WithConnectProber replaces the default tcpcheck.Checker.
func WithConnectProber(p ConnectProber) Option {
	return func(s *Scanner) { s.connect = p }
}

// WithLogger sets the logger used for per-probe diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the probe metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(s *Scanner) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithForceConnect sets the initial value of the force-connect override.
func WithForceConnect(force bool) Option {
	return func(s *Scanner) { s.forceConnect.Store(force) }
}

// NewScanner creates a Scanner. Without options it enumerates the real
// network interfaces, dials with tcpcheck defaults, logs nothing and
// records metrics into a no-op meter.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		aliases: NewAliasResolver(netif.System{}),
		connect: tcpcheck.New(tcpcheck.DefaultDialTimeout),
		logger:  logging.Discard(),
		metrics: NoopMetrics(),
	}
	s.bind = s.bindProbe
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Aliases returns the local alias list. See AliasResolver.Aliases.
func (s *Scanner) Aliases() ([]string, error) {
	return s.aliases.Aliases()
}

// SetForceConnect turns the connect-everywhere override on or off. While on,
// every host is probed with connect, local or not.
func (s *Scanner) SetForceConnect(force bool) {
	s.forceConnect.Store(force)
}

// ForceConnect reports the current override.
func (s *Scanner) ForceConnect() bool {
	return s.forceConnect.Load()
}

// SelectStrategy decides how host is probed. Rules, in order:
//  1. force-connect override set: connect
//  2. host is "", "localhost" (any case) or a local alias: bind
//  3. otherwise: connect
func (s *Scanner) SelectStrategy(host string) (model.Strategy, error) {
	if s.forceConnect.Load() {
		return model.StrategyConnect, nil
	}
	if host == "" || model.IsLocalhostName(host) {
		return model.StrategyBind, nil
	}
	local, err := s.aliases.Contains(host)
	if err != nil {
		return model.StrategyConnect, err
	}
	if local {
		return model.StrategyBind, nil
	}
	return model.StrategyConnect, nil
}
