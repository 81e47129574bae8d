//go:build unix

package sockerr

import "golang.org/x/sys/unix"

var (
	errAddrInUse    error = unix.EADDRINUSE
	errAddrNotAvail error = unix.EADDRNOTAVAIL
	errAFNoSupport  error = unix.EAFNOSUPPORT
	errConnRefused  error = unix.ECONNREFUSED
)
