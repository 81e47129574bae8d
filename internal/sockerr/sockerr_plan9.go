//go:build plan9

package sockerr

import (
	"errors"
	"syscall"
)

// Plan 9 reports socket failures as strings and only defines an errno-like
// value for the unsupported address family. The other classifications can
// never match there, so every such failure surfaces to the caller.
var (
	errAddrInUse    error = errors.New("address in use")
	errAddrNotAvail error = errors.New("address not available")
	errAFNoSupport  error = syscall.EAFNOSUPPORT
	errConnRefused  error = errors.New("connection refused")
)
