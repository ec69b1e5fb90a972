package acceptor

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wlcore.dev/wlcored/client"
	"wlcore.dev/wlcored/common/socket"
	"wlcore.dev/wlcored/registry"
	"wlcore.dev/wlcored/serial"
)

func TestAcceptSpawnsClient(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wlcored-test.sock")

	listener, err := socket.Listen(path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer os.Remove(path)

	globals := registry.NewGlobals()
	clients := registry.NewClientRegistry(globals, serial.NewAllocator(), client.DefaultLimits())
	defer clients.Stop()

	a := New(listener, clients, nil)
	go a.Run()
	defer a.Stop()

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if clients.Len() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected one spawned client, got %d", clients.Len())
}

func TestStopUnblocksRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wlcored-test.sock")

	listener, err := socket.Listen(path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer os.Remove(path)

	globals := registry.NewGlobals()
	clients := registry.NewClientRegistry(globals, serial.NewAllocator(), client.DefaultLimits())
	defer clients.Stop()

	a := New(listener, clients, nil)
	done := make(chan error, 1)
	go func() { done <- a.Run() }()

	a.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error after Stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
