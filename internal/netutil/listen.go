// Package netutil wraps net.Listen with the stale-unix-socket recovery this
// server's dual listeners (Service and Registration, see cmd/naming) both
// need: a naming server process that crashed without unlinking its socket
// file leaves a future net.Listen on the same address failing with "address
// already in use", even though nothing is actually listening there anymore.
package netutil

import (
	"net"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Listen is net.Listen, except for a unix network address that nothing is
// actually listening on (a leftover socket file from a prior process that
// didn't shut down cleanly), Listen removes the stale file and retries once
// before giving up. role names the caller's RPC role ("Service",
// "Registration") purely for the log line emitted on that retry path.
func Listen(role, network, address string) (net.Listener, error) {
	if network != "unix" {
		return net.Listen(network, address)
	}
	listener, err := net.Listen(network, address)
	if err != nil && strings.HasSuffix(err.Error(), "bind: address already in use") && !reachable(address) {
		log.WithFields(log.Fields{
			"role":    role,
			"address": address,
		}).Warn("netutil: removing stale unix socket and retrying listen")
		_ = os.Remove(address)
		listener, err = net.Listen(network, address)
	}
	return listener, err
}

func reachable(pathname string) bool {
	conn, err := net.Dial("unix", pathname)
	if conn != nil {
		defer func() { _ = conn.Close() }()
	}
	if err == nil {
		return true
	}
	return !strings.HasSuffix(err.Error(), "connect: connection refused")
}
