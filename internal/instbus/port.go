package instbus

import (
	"io"
	"time"
)

// Porter defines the minimal interface needed for an instrument port.
// This abstraction enables unit testing without real serial hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPorter extends Porter with timeout capabilities.
// This is an optional interface that ports may implement; Dial uses it to
// apply a configured read timeout.
type TimeoutPorter interface {
	Porter
	// SetReadTimeout sets the read timeout for the port.
	SetReadTimeout(timeout time.Duration) error
}
