// Package clienttest provides an in-memory harness for driving a
// client.Client's wire codec and lifecycle in tests, without a real
// listening unix socket on disk. wire.Encoder/Decoder need a real
// *net.UnixConn for SCM_RIGHTS fd-passing, so the harness wires up an
// anonymous unix.Socketpair rather than net.Pipe — the pair never
// touches the filesystem, which is the property tests actually need.
package clienttest

import (
	"net"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

// Pair is a connected pair of unix-domain endpoints: Server is the
// half a client.Client would be built around, Remote is the half a
// test drives directly to play the part of the connecting peer.
type Pair struct {
	Server *net.UnixConn
	Remote *net.UnixConn
}

// NewPair opens an anonymous connected socket pair and wraps both ends
// as *net.UnixConn.
func NewPair(t testing.TB) *Pair {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("clienttest: socketpair: %v", err)
	}

	server, err := fileToUnixConn(fds[0], "wlcored-test-server")
	if err != nil {
		t.Fatalf("clienttest: %v", err)
	}
	remote, err := fileToUnixConn(fds[1], "wlcored-test-remote")
	if err != nil {
		server.Close()
		t.Fatalf("clienttest: %v", err)
	}

	p := &Pair{Server: server, Remote: remote}
	t.Cleanup(func() {
		p.Server.Close()
		p.Remote.Close()
	})
	return p
}

func fileToUnixConn(fd int, name string) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), name)
	conn, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}
	f.Close()
	return conn.(*net.UnixConn), nil
}
