// Package lasers defines the narrow driver contract for laser instruments and
// a registry that dispatches a configuration mapping to the driver that
// recognizes it.
package lasers

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/photonics-data/femtoctl/internal/instbus"
)

// ErrNoMatchingInstrument is returned by a driver factory when the supplied
// params do not describe an instrument it can open. It signals "not my
// configuration", not an invalid port.
var ErrNoMatchingInstrument = errors.New("no matching instrument type")

// DeviceError is an error string reported by the instrument firmware in
// response to a mutating command. It is a normal device outcome, not a
// transport failure.
type DeviceError struct {
	Command string
	Message string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error for %s: %s", e.Command, e.Message)
}

// IsDeviceError reports whether err is a firmware-reported device error.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

// Params is a configuration mapping from option name to value, consumed only
// at construction time. Keys a driver does not recognize are ignored.
type Params map[string]string

// Laser is the control surface every laser driver implements. All operations
// are valid only between construction and Close; behavior after Close is
// transport-defined.
type Laser interface {
	// IsOn reports whether laser emission is active.
	IsOn() (bool, error)
	// IsControlOn reports whether hardware input control is enabled.
	IsControlOn() (bool, error)
	// TurnOn enables emission. Hardware input control must already be
	// enabled for the command to take effect on the device.
	TurnOn() error
	// TurnOff disables emission. Same precondition as TurnOn.
	TurnOff() error
	// SetControl enables or disables hardware input control.
	SetControl(on bool) error
	// Close releases the underlying connection.
	Close() error
}

// Factory opens a Laser from params, or returns ErrNoMatchingInstrument when
// the params are not meant for this driver.
type Factory func(params Params, busOpts ...instbus.Option) (Laser, error)

var (
	registryMu sync.Mutex
	registry   = make(map[string]Factory)
)

// Register makes a driver factory available to Open under the given name.
// Registering the same name twice panics, as does a nil factory.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("lasers: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("lasers: Register called twice for driver " + name)
	}
	registry[name] = factory
}

// Drivers returns the sorted names of all registered drivers.
func Drivers() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open dispatches params across the registered factories and returns the
// first laser whose driver recognizes them. Factories that report
// ErrNoMatchingInstrument are skipped; any other factory error is returned
// immediately. If no driver matches, ErrNoMatchingInstrument is returned.
func Open(params Params, busOpts ...instbus.Option) (Laser, error) {
	names := Drivers()
	registryMu.Lock()
	factories := make([]Factory, 0, len(names))
	for _, name := range names {
		factories = append(factories, registry[name])
	}
	registryMu.Unlock()

	for _, factory := range factories {
		laser, err := factory(params, busOpts...)
		if errors.Is(err, ErrNoMatchingInstrument) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return laser, nil
	}
	return nil, ErrNoMatchingInstrument
}
