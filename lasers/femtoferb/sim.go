package femtoferb

import (
	"bytes"
	"errors"
	"strings"
	"sync"

	"github.com/photonics-data/femtoctl/internal/instbus"
)

// SimulatorPort is an in-memory stand-in for the laser's serial port. It
// implements the device side of the four firmware commands, including the
// interlock between hardware input control and emission: setting laser:en
// while hw-input-dis is off is refused with a device error, matching the
// documented firmware behaviour. Used by -dev mode and tests.
type SimulatorPort struct {
	mu sync.Mutex

	controlOn  bool
	emissionOn bool

	partial  bytes.Buffer
	readBuf  bytes.Buffer
	closed   bool
	readCond *sync.Cond
}

// NewSimulatorPort creates a simulator with control and emission off.
func NewSimulatorPort() *SimulatorPort {
	p := &SimulatorPort{}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// NewSimulated returns a FemtoFiber backed by a fresh SimulatorPort,
// performing the same construction-time control enable as FromParams.
func NewSimulated(busOpts ...instbus.Option) (*FemtoFiber, *SimulatorPort) {
	port := NewSimulatorPort()
	f := New(instbus.New(port, busOpts...))
	_ = f.SetControl(true)
	return f, port
}

// ControlOn reports the simulated hardware input control state.
func (p *SimulatorPort) ControlOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controlOn
}

// EmissionOn reports the simulated emission state.
func (p *SimulatorPort) EmissionOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.emissionOn
}

func (p *SimulatorPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, errors.New("port closed")
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
		p.readBuf.WriteString(p.respond(command) + "\n")
	}
	p.readCond.Broadcast()
	return len(data), nil
}

func (p *SimulatorPort) respond(command string) string {
	switch command {
	case cmdGetControl:
		return encodeBool(p.controlOn)
	case cmdGetEmission:
		return encodeBool(p.emissionOn)
	}

	if token, ok := strings.CutPrefix(command, "(param-set! hw-input-dis "); ok {
		value, err := decodeBool(strings.TrimSuffix(token, ")"))
		if err != nil {
			return "3: invalid parameter value"
		}
		p.controlOn = value
		return successResponse
	}

	if token, ok := strings.CutPrefix(command, "(param-set! laser:en "); ok {
		value, err := decodeBool(strings.TrimSuffix(token, ")"))
		if err != nil {
			return "3: invalid parameter value"
		}
		if !p.controlOn {
			return "7: hardware input control disabled"
		}
		p.emissionOn = value
		return successResponse
	}

	return "1: unknown command"
}

func (p *SimulatorPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for !p.closed && p.readBuf.Len() == 0 {
		p.readCond.Wait()
	}
	if p.closed {
		return 0, errors.New("port closed")
	}
	return p.readBuf.Read(buf)
}

// Close marks the port as closed and wakes any blocked readers.
func (p *SimulatorPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.readCond.Broadcast()
	return nil
}
