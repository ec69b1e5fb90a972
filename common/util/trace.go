package util

import (
	uuid "github.com/satori/go.uuid"
)

// NewTraceID returns a fresh v4 UUID for log correlation across a
// client's receive/send tasks. It never appears on the wire.
func NewTraceID() string {
	return uuid.NewV4().String()
}
