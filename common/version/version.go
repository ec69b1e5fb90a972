// Package version carries the build version of wlcored, logged at
// startup and otherwise invisible to clients — it has no wire
// representation.
package version

import (
	"github.com/blang/semver"
)

// CURRENT_VERSION is bumped by hand alongside tagged releases.
var CURRENT_VERSION = semver.MustParse("0.1.0")
