// Package log sets up the process-wide logger shared by every
// component of the core. One backend, one format, filterable by level
// from the command line.
package log

import (
	"os"

	"github.com/op/go-logging"
)

// Log is the shared logger. Every package in the core logs through
// this value rather than constructing its own.
var Log = logging.MustGetLogger("wlcored")

var format = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.4s} %{shortfunc} ▶ %{message}`,
)

// Init installs the console backend at the given level. Called once
// from cmd/wlcored before anything else starts logging.
func Init(level string) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, format)
	leveled := logging.AddModuleLevel(formatted)
	lvl, err := logging.LogLevel(level)
	if err != nil {
		lvl = logging.INFO
	}
	leveled.SetLevel(lvl, "")
	logging.SetBackend(leveled)
}
