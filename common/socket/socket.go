// Package socket wraps unix-domain listener setup and peer-credential
// capture, the one piece of transport plumbing the core needs beyond
// net.Listener/net.Conn itself.
package socket

import (
	"fmt"
	"net"
	"os"
)

// Listen opens a unix-domain listener at path, removing any stale
// socket file left behind by an unclean shutdown first.
func Listen(path string) (listener *net.UnixListener, err error) {
	_ = os.Remove(path)
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return
	}
	listener, err = net.ListenUnix("unix", addr)
	return
}

// Credentials identifies the process on the other end of an accepted
// connection, captured once at accept time.
type Credentials struct {
	UID         uint32
	PID         int32
	ProgramName string
}

func (c Credentials) String() string {
	name := c.ProgramName
	if name == "" {
		name = "<unknown>"
	}
	return fmt.Sprintf("uid=%d pid=%d prog=%s", c.UID, c.PID, name)
}
