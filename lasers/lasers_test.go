package lasers

import (
	"errors"
	"testing"

	"github.com/photonics-data/femtoctl/internal/instbus"
)

// fakeLaser is a minimal Laser for registry tests.
type fakeLaser struct {
	Laser
	name string
}

func TestOpenDispatchesToMatchingFactory(t *testing.T) {
	Register("test_match_a", func(params Params, busOpts ...instbus.Option) (Laser, error) {
		if _, ok := params["test_match_a_port"]; !ok {
			return nil, ErrNoMatchingInstrument
		}
		return &fakeLaser{name: "a"}, nil
	})
	Register("test_match_b", func(params Params, busOpts ...instbus.Option) (Laser, error) {
		if _, ok := params["test_match_b_port"]; !ok {
			return nil, ErrNoMatchingInstrument
		}
		return &fakeLaser{name: "b"}, nil
	})

	laser, err := Open(Params{"test_match_b_port": "/dev/ttyUSB3"})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if got := laser.(*fakeLaser).name; got != "b" {
		t.Errorf("Open dispatched to driver %q, want b", got)
	}
}

func TestOpenNoMatch(t *testing.T) {
	_, err := Open(Params{"unrelated_option": "x"})
	if !errors.Is(err, ErrNoMatchingInstrument) {
		t.Errorf("Open error = %v, want ErrNoMatchingInstrument", err)
	}
}

func TestOpenPropagatesFactoryError(t *testing.T) {
	wantErr := errors.New("port locked")
	Register("test_broken", func(params Params, busOpts ...instbus.Option) (Laser, error) {
		if _, ok := params["test_broken_port"]; !ok {
			return nil, ErrNoMatchingInstrument
		}
		return nil, wantErr
	})

	_, err := Open(Params{"test_broken_port": "/dev/ttyUSB0"})
	if !errors.Is(err, wantErr) {
		t.Errorf("Open error = %v, want %v", err, wantErr)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate Register did not panic")
		}
	}()
	Register("test_dup", func(Params, ...instbus.Option) (Laser, error) { return nil, ErrNoMatchingInstrument })
	Register("test_dup", func(Params, ...instbus.Option) (Laser, error) { return nil, ErrNoMatchingInstrument })
}

func TestDeviceError(t *testing.T) {
	var err error = &DeviceError{Command: "(param-set! laser:en #t)", Message: "12: overtemp"}

	if !IsDeviceError(err) {
		t.Error("IsDeviceError = false for a DeviceError")
	}
	if IsDeviceError(errors.New("plain")) {
		t.Error("IsDeviceError = true for a plain error")
	}

	var deviceErr *DeviceError
	if !errors.As(err, &deviceErr) || deviceErr.Message != "12: overtemp" {
		t.Errorf("DeviceError did not round-trip through errors.As: %v", err)
	}
}
