//go:build js || wasip1

package sockerr

import "syscall"

var (
	errAddrInUse    error = syscall.EADDRINUSE
	errAddrNotAvail error = syscall.EADDRNOTAVAIL
	errAFNoSupport  error = syscall.EAFNOSUPPORT
	errConnRefused  error = syscall.ECONNREFUSED
)
