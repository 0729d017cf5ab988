// Package instbus provides a textual command/response connection to a single
// instrument. Every exchange writes one newline-terminated command and blocks
// until one newline-terminated response line is read back.
package instbus

import (
	"bufio"
	"fmt"
	"strings"
	"sync"
)

var ErrWriteFailed = fmt.Errorf("failed to write to instrument port")

// Recorder observes completed exchanges. Implementations must not fail the
// exchange itself; recording is best effort.
type Recorder interface {
	RecordExchange(command, response string, err error)
}

// Option configures a Conn.
type Option func(*Conn)

// WithRecorder attaches a Recorder that is invoked after every exchange.
func WithRecorder(rec Recorder) Option {
	return func(c *Conn) {
		c.rec = rec
	}
}

// Conn is a request/response connection to one instrument. A command mutex
// serializes exchanges so that interleaved callers cannot desynchronize a
// request from its response line.
type Conn struct {
	port      Porter
	reader    *bufio.Reader
	rec       Recorder
	commandMu sync.Mutex
}

// New wraps an open port in a Conn.
func New(port Porter, opts ...Option) *Conn {
	c := &Conn{
		port:   port,
		reader: bufio.NewReader(port),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask writes the command followed by a newline, then blocks until a single
// newline-terminated response line is read. The returned line has its
// terminator (and any preceding carriage return) removed. There are no
// retries and no driver-level timeout; both are delegated to the port.
func (c *Conn) Ask(command string) (string, error) {
	c.commandMu.Lock()
	defer c.commandMu.Unlock()

	out := command
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	n, err := c.port.Write([]byte(out))
	if err != nil {
		c.record(command, "", err)
		return "", err
	}
	if n != len(out) {
		c.record(command, "", ErrWriteFailed)
		return "", ErrWriteFailed
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		c.record(command, "", err)
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	c.record(command, line, nil)
	return line, nil
}

// Close closes the underlying port. There is no guard against double close;
// behavior of further exchanges after Close is defined by the port.
func (c *Conn) Close() error {
	return c.port.Close()
}

func (c *Conn) record(command, response string, err error) {
	if c.rec != nil {
		c.rec.RecordExchange(command, response, err)
	}
}
