// Package sockerr classifies socket errors returned by the net package.
//
// The errno values behind "address already in use" and "connection
// refused" differ between Unix and Windows (EADDRINUSE vs WSAEADDRINUSE),
// so the platform constants live in build-tagged files backed by
// golang.org/x/sys. Callers only see the portable predicates below.
package sockerr

import (
	"errors"
	"net"
)

// IsAddrInUse reports whether err means the address:port is already bound.
func IsAddrInUse(err error) bool {
	return err != nil && errors.Is(err, errAddrInUse)
}

// IsAddrNotAvailable reports whether err means the address cannot be bound
// on this machine at all, either because no interface carries it or
// because its address family is not supported (an IPv6 loopback on a host
// with IPv6 disabled).
func IsAddrNotAvailable(err error) bool {
	return err != nil && (errors.Is(err, errAddrNotAvail) || errors.Is(err, errAFNoSupport))
}

// IsConnRefused reports whether err means the remote end actively refused
// the connection, i.e. nothing listens there.
func IsConnRefused(err error) bool {
	return err != nil && errors.Is(err, errConnRefused)
}

// IsTimeout reports whether err is a network timeout.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
