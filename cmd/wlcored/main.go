package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"wlcore.dev/wlcored/acceptor"
	"wlcore.dev/wlcored/capability"
	"wlcore.dev/wlcored/client"
	"wlcore.dev/wlcored/common/log"
	"wlcore.dev/wlcored/common/socket"
	"wlcore.dev/wlcored/common/util"
	"wlcore.dev/wlcored/common/version"
	"wlcore.dev/wlcored/registry"
	"wlcore.dev/wlcored/serial"
)

func main() {
	defer func() {
		if x := recover(); x != nil {
			log.Log.Errorf("run time panic: %v", x)
			log.Log.Error(string(debug.Stack()))
			panic(x)
		}
	}()

	app := cli.NewApp()
	app.Name = "wlcored"
	app.Usage = "wayland client-protocol engine core"
	app.Version = version.CURRENT_VERSION.String()
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "socket", Value: defaultSocketPath(), Usage: "unix socket path to listen on"},
		cli.StringFlag{Name: "marker-file", Value: "", Usage: "path to write the active socket path to, for control tools"},
		cli.StringFlag{Name: "log-level", Value: "INFO", Usage: "CRITICAL, ERROR, WARNING, NOTICE, INFO, or DEBUG"},
		cli.IntFlag{Name: "soft-buffer-bytes", Value: client.DefaultLimits().SoftBufferBytes, Usage: "per-client outbound swap-chain soft cap, in bytes"},
		cli.DurationFlag{Name: "flush-deadline", Value: client.DefaultLimits().FlushDeadline, Usage: "per-flush write deadline"},
		cli.DurationFlag{Name: "shutdown-drain", Value: client.DefaultLimits().ShutdownDrain, Usage: "final drain window on shutdown"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Log.Error(err)
		os.Exit(1)
	}
}

func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/wayland-wlcored-0"
	}
	return "/tmp/wlcored-0"
}

func run(c *cli.Context) error {
	log.Init(c.String("log-level"))
	log.Log.Noticef("wlcored %s starting", version.CURRENT_VERSION)

	limits := client.Limits{
		SoftBufferBytes: c.Int("soft-buffer-bytes"),
		FlushDeadline:   c.Duration("flush-deadline"),
		ShutdownDrain:   c.Duration("shutdown-drain"),
	}

	socketPath := c.String("socket")
	listener, err := socket.Listen(socketPath)
	if err != nil {
		fmt.Println(util.Red("wlcored ▶ " + err.Error()))
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()

	if marker := c.String("marker-file"); marker != "" {
		if err := util.WriteMarkerFile(marker, []byte(socketPath)); err != nil {
			log.Log.Warningf("could not write marker file %s: %v", marker, err)
		}
	}

	globals := registry.NewGlobals()
	clients := registry.NewClientRegistry(globals, serial.NewAllocator(), limits)
	defer clients.Stop()

	a := acceptor.New(listener, clients, nil)
	acceptErr := make(chan error, 1)
	go func() { acceptErr <- a.Run() }()

	log.Log.Noticef("listening on %s", socketPath)
	fmt.Println(util.Cyan(fmt.Sprintf("wlcored ▶ listening on %s", socketPath)))

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)

	select {
	case sig := <-stopSignal:
		log.Log.Noticef("stopping with signal %v", sig)
	case err := <-acceptErr:
		if err != nil {
			log.Log.Errorf("acceptor stopped: %v", err)
			fmt.Println(util.Yellow("wlcored ▶ acceptor stopped unexpectedly, shutting down"))
		}
	}

	a.Stop()
	gracefulShutdown(clients, limits.ShutdownDrain)
	fmt.Println(util.Green("wlcored ▶ shutdown complete"))
	return nil
}

// gracefulShutdown kills every live client, then sleeps for the
// shutdown-drain duration before returning. Client.Kill closes each
// connection at once, without the graceful drain window, so pending
// outbound events are not guaranteed to reach the peers.
func gracefulShutdown(clients *registry.ClientRegistry, drain time.Duration) {
	clients.Broadcast(capability.CapNone, false, func(c *client.Client) {
		c.Kill()
	})
	time.Sleep(drain)
}
