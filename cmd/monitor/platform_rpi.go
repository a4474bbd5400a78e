//go:build linux && arm

package main

import (
	"fmt"

	"ampshield.dev/config"
	"ampshield.dev/driver/adcfrontend"
	"ampshield.dev/driver/relaygpio"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3/bcm283x"
)

// relayPin is the GPIO line driving the relay coil, the monitor's
// counterpart to driver/wshat's fixed button pin assignments.
var relayPin = bcm283x.GPIO27

func openHardware(cfg config.Config, adcDevice string) (hardware, error) {
	adc, err := adcfrontend.Open(adcDevice)
	if err != nil {
		return hardware{}, fmt.Errorf("monitor: open ADC front end: %w", err)
	}

	relayOut, err := relaygpio.Open(relayPin, gpio.Level(cfg.RelayOnLevel))
	if err != nil {
		adc.Close()
		return hardware{}, fmt.Errorf("monitor: open relay GPIO: %w", err)
	}

	return hardware{reader: adc, actuator: relayOut, closer: adc}, nil
}
