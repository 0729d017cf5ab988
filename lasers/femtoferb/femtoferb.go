// Package femtoferb drives a Toptica FemtoFiber laser over its Scheme-style
// serial command language. The vendor firmware (which presents the USB
// connection as a serial port) answers every command with a single
// newline-terminated line: boolean queries return the tokens #t or #f, and
// parameter writes return "0" on success or an error description.
package femtoferb

import (
	"errors"
	"fmt"

	"github.com/photonics-data/femtoctl/internal/instbus"
	"github.com/photonics-data/femtoctl/lasers"
)

// DriverName is the registry name of this driver.
const DriverName = "femto_ferb"

// PortParam is the params key holding the serial port address.
const PortParam = "femto_ferb_port"

// Scheme boolean literals understood by the firmware. These must be preserved
// bit for bit on the wire.
const (
	tokenTrue  = "#t"
	tokenFalse = "#f"
)

// successResponse is the only response counted as success for a parameter
// write. The comparison is exact: "00" or "0.0" are device errors.
const successResponse = "0"

const (
	cmdGetControl  = "(param-ref hw-input-dis)"
	cmdGetEmission = "(param-ref laser:en)"
	cmdSetControl  = "(param-set! hw-input-dis %s)"
	cmdSetEmission = "(param-set! laser:en %s)"
)

// ErrUnknownToken is returned when a boolean query answer is neither #t nor #f.
var ErrUnknownToken = errors.New("unrecognized boolean token")

func encodeBool(v bool) string {
	if v {
		return tokenTrue
	}
	return tokenFalse
}

func decodeBool(token string) (bool, error) {
	switch token {
	case tokenTrue:
		return true, nil
	case tokenFalse:
		return false, nil
	}
	return false, fmt.Errorf("%w %q", ErrUnknownToken, token)
}

func init() {
	lasers.Register(DriverName, func(params lasers.Params, busOpts ...instbus.Option) (lasers.Laser, error) {
		return FromParams(params, busOpts...)
	})
}

// openBus opens the serial connection; a package variable so tests can
// substitute a scripted port.
var openBus = func(path string, busOpts ...instbus.Option) (*instbus.Conn, error) {
	return instbus.Dial(path, instbus.PortOptions{}, busOpts...)
}

// FemtoFiber is one open connection to one FemtoFiber laser. The handle has a
// single owner; it is not designed for concurrent callers.
type FemtoFiber struct {
	conn *instbus.Conn
}

// New wraps an already-open bus connection. Most callers should use
// FromParams instead.
func New(conn *instbus.Conn) *FemtoFiber {
	return &FemtoFiber{conn: conn}
}

// FromParams opens a FemtoFiber from a configuration mapping. The mapping
// must contain the PortParam key naming the serial port; otherwise
// lasers.ErrNoMatchingInstrument is returned before any connection attempt.
// The match is on key presence alone; an unusable value surfaces as a
// transport error from the open. On success, hardware input control is
// requested on exactly once; a device-reported error from that command is
// ignored, but a transport failure aborts construction.
func FromParams(params lasers.Params, busOpts ...instbus.Option) (*FemtoFiber, error) {
	port, ok := params[PortParam]
	if !ok {
		return nil, lasers.ErrNoMatchingInstrument
	}

	conn, err := openBus(port, busOpts...)
	if err != nil {
		return nil, err
	}

	f := New(conn)
	if err := f.SetControl(true); err != nil && !lasers.IsDeviceError(err) {
		return nil, err
	}
	return f, nil
}

// IsControlOn reports the status of the hardware input control. Hardware
// input control must be on for the laser to be controllable over this
// connection.
func (f *FemtoFiber) IsControlOn() (bool, error) {
	line, err := f.conn.Ask(cmdGetControl)
	if err != nil {
		return false, err
	}
	return decodeBool(line)
}

// IsOn reports whether laser emission is active.
func (f *FemtoFiber) IsOn() (bool, error) {
	line, err := f.conn.Ask(cmdGetEmission)
	if err != nil {
		return false, err
	}
	return decodeBool(line)
}

// SetControl enables or disables the hardware input control. A nil return
// means the device answered "0"; a *lasers.DeviceError carries any other
// response verbatim.
func (f *FemtoFiber) SetControl(on bool) error {
	return f.set(cmdSetControl, on)
}

// TurnOn enables laser emission. Hardware input control must already be on
// for the command to take effect; the driver does not enforce this.
func (f *FemtoFiber) TurnOn() error {
	return f.setEmission(true)
}

// TurnOff disables laser emission. Same precondition as TurnOn.
func (f *FemtoFiber) TurnOff() error {
	return f.setEmission(false)
}

func (f *FemtoFiber) setEmission(on bool) error {
	return f.set(cmdSetEmission, on)
}

func (f *FemtoFiber) set(format string, on bool) error {
	command := fmt.Sprintf(format, encodeBool(on))
	line, err := f.conn.Ask(command)
	if err != nil {
		return err
	}
	if line == successResponse {
		return nil
	}
	return &lasers.DeviceError{Command: command, Message: line}
}

// Close releases the connection to the laser. There is no double-close guard;
// using the handle after Close is transport-defined.
func (f *FemtoFiber) Close() error {
	return f.conn.Close()
}

var _ lasers.Laser = (*FemtoFiber)(nil)
