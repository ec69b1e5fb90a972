// Package acceptor implements the listener loop that turns an accepted
// unix-domain connection into a running Client: capture credentials,
// decide its sandbox, and hand it to a registry.ClientRegistry (spec.md
// §4.1's "Acceptor"). Grounded on ServeKRAgent's accept-loop shape in
// the teacher's krd/ssh_agent.go.
package acceptor

import (
	"net"

	"wlcore.dev/wlcored/capability"
	"wlcore.dev/wlcored/client"
	"wlcore.dev/wlcored/common/log"
	"wlcore.dev/wlcored/common/socket"
	"wlcore.dev/wlcored/registry"
)

// SandboxResolver decides the capability.SandboxDescriptor and xwayland
// flag for a newly accepted connection's credentials. The default
// resolver grants every ordinary client capability.Unsandboxed and
// xwayland=false; a compositor wanting per-uid sandboxing or an
// Xwayland-aware launch path supplies its own.
type SandboxResolver func(creds socket.Credentials) (sandbox capability.SandboxDescriptor, xwayland bool)

// DefaultSandboxResolver grants every client the unsandboxed default.
func DefaultSandboxResolver(creds socket.Credentials) (capability.SandboxDescriptor, bool) {
	return capability.Unsandboxed, false
}

// Acceptor owns a listener and spawns Clients against a ClientRegistry
// as connections arrive.
type Acceptor struct {
	listener *net.UnixListener
	clients  *registry.ClientRegistry
	resolve  SandboxResolver

	stop chan struct{}
}

// New wraps an already-bound listener (see common/socket.Listen).
// resolve may be nil, in which case DefaultSandboxResolver applies.
func New(listener *net.UnixListener, clients *registry.ClientRegistry, resolve SandboxResolver) *Acceptor {
	if resolve == nil {
		resolve = DefaultSandboxResolver
	}
	return &Acceptor{
		listener: listener,
		clients:  clients,
		resolve:  resolve,
		stop:     make(chan struct{}),
	}
}

// Run accepts connections until Stop is called or the listener errors
// out, spawning one Client per accepted connection. It blocks; callers
// run it in its own goroutine.
func (a *Acceptor) Run() error {
	for {
		conn, err := a.listener.AcceptUnix()
		if err != nil {
			select {
			case <-a.stop:
				return nil
			default:
			}
			log.Log.Errorf("acceptor: accept error: %v", err)
			return err
		}
		go a.spawn(conn)
	}
}

// Stop closes the listener, unblocking Run's Accept call.
func (a *Acceptor) Stop() {
	close(a.stop)
	a.listener.Close()
}

func (a *Acceptor) spawn(conn *net.UnixConn) {
	creds, err := socket.PeerCredentials(conn)
	if err != nil {
		log.Log.Warningf("acceptor: peer credentials unavailable, closing: %v", err)
		conn.Close()
		return
	}
	sandbox, xwayland := a.resolve(creds)
	c := a.clients.Spawn(conn, creds, sandbox, xwayland)
	log.Log.Noticef("accepted %s", c.String())
}
