// Package relaygpio drives the protection relay's coil over a single
// GPIO output pin on a Raspberry Pi, using periph.io/x/conn/v3 and
// periph.io/x/host/v3, grounded on driver/wshat's host.Init()+bcm283x
// button-input pattern generalized to an output pin.
package relaygpio

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"
)

// Relay drives one GPIO pin to energize or de-energize the relay coil.
type Relay struct {
	pin     gpio.PinIO
	onLevel gpio.Level
}

// Open initializes the host GPIO subsystem and configures pin as an
// output, immediately driving it to the inactive (safe/off) level.
// onLevel is the level that energizes the relay (RELAY_ON_LEVEL in the
// reference firmware); the pin is held at the opposite level until the
// first call to SetLevel(true).
func Open(pin gpio.PinIO, onLevel gpio.Level) (*Relay, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("relaygpio: %w", err)
	}
	r := &Relay{pin: pin, onLevel: onLevel}
	if err := r.SetLevel(false); err != nil {
		return nil, err
	}
	return r, nil
}

// SetLevel energizes the relay when on is true, de-energizes it
// otherwise.
func (r *Relay) SetLevel(on bool) error {
	level := !r.onLevel
	if on {
		level = r.onLevel
	}
	if err := r.pin.Out(level); err != nil {
		return fmt.Errorf("relaygpio: set level: %w", err)
	}
	return nil
}
