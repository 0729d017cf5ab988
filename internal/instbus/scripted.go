package instbus

import (
	"bytes"
	"errors"
	"strings"
	"sync"
)

// ScriptedPort implements Porter with configurable behaviour for testing and
// dev mode. Each newline-terminated command written to the port is looked up
// in a response table and the matching response is queued for the next Read.
// Reads block until a response is available or the port is closed, matching
// the blocking behaviour of a real serial port.
type ScriptedPort struct {
	mu sync.Mutex

	// responses maps a full command line (without terminator) to the
	// response line that will be queued for it.
	responses map[string]string

	// DefaultResponse is queued for any command without a table entry.
	DefaultResponse string

	// WriteError is returned by the next Write call if set.
	WriteError error

	// ReadError is returned by the next Read call if set.
	ReadError error

	// CloseError is returned by Close if set.
	CloseError error

	readBuf  bytes.Buffer
	partial  bytes.Buffer
	commands []string
	closed   bool

	readCond *sync.Cond
}

// NewScriptedPort creates a ScriptedPort with an empty response table.
func NewScriptedPort() *ScriptedPort {
	p := &ScriptedPort{
		responses:       make(map[string]string),
		DefaultResponse: "0",
	}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// Handle registers the response line queued when command is written.
func (p *ScriptedPort) Handle(command, response string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[command] = response
}

// Commands returns every command line written to the port so far.
func (p *ScriptedPort) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.commands))
	copy(out, p.commands)
	return out
}

// Closed reports whether Close has been called.
func (p *ScriptedPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *ScriptedPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, errors.New("port closed")
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}

	p.partial.Write(data)
	for {
		buffered := p.partial.String()
		idx := strings.IndexByte(buffered, '\n')
		if idx < 0 {
			break
		}
		command := strings.TrimSuffix(buffered[:idx], "\r")
		p.partial.Next(idx + 1)

		p.commands = append(p.commands, command)
		response, ok := p.responses[command]
		if !ok {
			response = p.DefaultResponse
		}
		p.readBuf.WriteString(response + "\n")
	}
	p.readCond.Broadcast()
	return len(data), nil
}

func (p *ScriptedPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}

	for !p.closed && p.readBuf.Len() == 0 {
		p.readCond.Wait()
	}
	if p.closed {
		return 0, errors.New("port closed")
	}
	return p.readBuf.Read(buf)
}

// Close marks the port as closed and wakes any blocked readers.
func (p *ScriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.readCond.Broadcast()
	return p.CloseError
}
