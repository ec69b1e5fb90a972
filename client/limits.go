package client

import "time"

// Limits configures the soft backpressure threshold and the drain
// deadlines a Client enforces, resolving spec.md Design Notes' open
// question about slow-client thresholds (SPEC_FULL.md §4.3): rather
// than a hardcoded constant, these are fields any caller can override.
type Limits struct {
	// SoftBufferBytes is the outbound swap-chain size, in bytes, past
	// which a client is enlisted as slow.
	SoftBufferBytes int

	// FlushDeadline bounds a single Flush call on the send task.
	FlushDeadline time.Duration

	// ShutdownDrain bounds how long the send task is given to drain
	// the swap-chain once shutdown has been raised.
	ShutdownDrain time.Duration
}

// DefaultLimits returns the out-of-the-box thresholds: 4 MiB soft
// buffer, 5 second flush deadline, 5 second shutdown drain.
func DefaultLimits() Limits {
	return Limits{
		SoftBufferBytes: 4 * 1024 * 1024,
		FlushDeadline:   5 * time.Second,
		ShutdownDrain:   5 * time.Second,
	}
}
