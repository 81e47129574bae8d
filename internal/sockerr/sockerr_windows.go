//go:build windows

package sockerr

import "golang.org/x/sys/windows"

// Winsock reports its own error space; syscall.EADDRINUSE on Windows is an
// invented value that never matches what net returns.
var (
	errAddrInUse    error = windows.WSAEADDRINUSE
	errAddrNotAvail error = windows.WSAEADDRNOTAVAIL
	errAFNoSupport  error = windows.WSAEAFNOSUPPORT
	errConnRefused  error = windows.WSAECONNREFUSED
)
