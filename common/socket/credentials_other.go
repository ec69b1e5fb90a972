//go:build !linux

package socket

import (
	"errors"
	"net"
)

// ErrUnsupportedPlatform is returned by PeerCredentials on platforms
// where this core does not implement peer-credential capture.
// Wayland's transport is Unix-domain-socket-only and this core
// targets Linux; other unix-likes expose peer credentials through
// different syscalls we haven't wired up.
var ErrUnsupportedPlatform = errors.New("socket: peer credential capture not implemented on this platform")

func PeerCredentials(conn *net.UnixConn) (creds Credentials, err error) {
	err = ErrUnsupportedPlatform
	return
}
