package instbus

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Dial opens a real serial port at the given path and wraps it in a Conn
// using the provided port options.
func Dial(path string, opts PortOptions, connOpts ...Option) (*Conn, error) {
	normalized, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := normalized.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	if err := applyReadTimeout(port, normalized); err != nil {
		port.Close()
		return nil, err
	}

	return New(port, connOpts...), nil
}

// applyReadTimeout pushes a configured read timeout down to ports that
// support one. A port without timeout support only fails when a timeout was
// actually requested.
func applyReadTimeout(port Porter, opts PortOptions) error {
	if opts.ReadTimeoutMS == 0 {
		return nil
	}
	tp, ok := port.(TimeoutPorter)
	if !ok {
		return fmt.Errorf("port does not support read timeouts (requested %dms)", opts.ReadTimeoutMS)
	}
	if err := tp.SetReadTimeout(time.Duration(opts.ReadTimeoutMS) * time.Millisecond); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	return nil
}
