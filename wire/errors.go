package wire

import "fmt"

// Wire errors are immediately fatal per spec.md §7: they skip event
// emission and tear the connection down.
var (
	ErrShortRead     = fmt.Errorf("wire: short read")
	ErrMisaligned    = fmt.Errorf("wire: declared length < 8 or not a multiple of 4")
	ErrNoFD          = fmt.Errorf("wire: fd argument required but none queued")
	ErrTrailingBytes = fmt.Errorf("wire: trailing bytes beyond declared payload")
)
