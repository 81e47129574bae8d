// Package port implements TCP port availability probing, free-port
// scanning and bounded waiting for a port to open or close.
//
// Two probing strategies exist:
//
//   - bind: try to listen on host:port. Fast on every platform, but only
//     possible for addresses this machine owns.
//   - connect: dial host:port (package tcpcheck). Works for any reachable
//     host, but costs about a second per refused probe on Windows.
//
// A Scanner picks bind for "", "localhost" (any case) and every address in
// its local alias list, and connect for everything else. A bind probe on a
// local host is fanned out over the whole alias list (0.0.0.0, 127.0.0.1,
// ::1, "" and every local IPv4 address) one alias at a time, because on
// some platforms these are distinct sockets and binding them concurrently
// interferes.
//
// Deciding "is this host local" is a heuristic: fixed aliases plus a
// literal match against enumerated IPv4 addresses. Hostnames that only
// resolve to a local address through DNS are probed with connect.
package port
