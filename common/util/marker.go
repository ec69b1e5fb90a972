package util

import (
	"github.com/youtube/vitess/go/ioutil2"
)

// WriteMarkerFile atomically records the active listening socket path
// so an out-of-process control tool can discover a running wlcored
// without racing a partially-written file.
func WriteMarkerFile(path string, contents []byte) error {
	return ioutil2.WriteFileAtomic(path, contents, 0600)
}
