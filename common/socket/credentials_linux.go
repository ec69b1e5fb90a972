//go:build linux

package socket

import (
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// PeerCredentials reads SO_PEERCRED off the connection's underlying
// file descriptor and best-effort resolves the peer's program name
// from /proc. A failure to resolve the program name is not fatal —
// Credentials.ProgramName is simply left empty.
func PeerCredentials(conn *net.UnixConn) (creds Credentials, err error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return
	}
	var ucred *unix.Ucred
	var sockErr error
	ctlErr := raw.Control(func(fd uintptr) {
		ucred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if ctlErr != nil {
		err = ctlErr
		return
	}
	if sockErr != nil {
		err = sockErr
		return
	}
	creds.UID = ucred.Uid
	creds.PID = ucred.Pid
	creds.ProgramName = programName(ucred.Pid)
	return
}

func programName(pid int32) string {
	comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(comm))
}
