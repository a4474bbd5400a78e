//go:build !linux || !arm

package main

import (
	"context"
	"math"

	"ampshield.dev/config"
	"ampshield.dev/internal/clock"
	"ampshield.dev/power"
)

// simReader synthesizes a clean 60Hz sinusoid on both channels so the
// monitor runs end-to-end off-target, the counterpart of
// cmd/controller's platform_dummy.go no-op hardware stubs.
type simReader struct {
	sensors config.Config
}

func (s simReader) ReadRaw(ctx context.Context) (uint16, uint16, error) {
	sensors := power.FromConfig(s.sensors)
	t := float64(clock.NowMillis()) / 1000
	const freqHz = 60

	currentAmps := 3.5 * math.Sqrt2 * math.Sin(2*math.Pi*freqHz*t)
	voltageVolts := 220 * math.Sqrt2 * math.Sin(2*math.Pi*freqHz*t)

	currentVolts := currentAmps*sensors.CurrentSensitivity + sensors.CurrentZeroOffset
	adcVoltageForCurrent := clampVolts(currentVolts, 0, s.sensors.ADCFullScale)
	currentCode := voltsToCode(adcVoltageForCurrent, s.sensors)

	adcVoltageForVoltage := clampVolts(voltageVolts/(sensors.VoltageScalingFactor*sensors.VoltageCalibration), 0, s.sensors.ADCFullScale)
	voltageCode := voltsToCode(adcVoltageForVoltage, s.sensors)

	return currentCode, voltageCode, nil
}

func clampVolts(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func voltsToCode(v float64, cfg config.Config) uint16 {
	maxCode := float64(int(1)<<uint(cfg.ADCBits)) - 1
	code := v / cfg.ADCFullScale * maxCode
	if code < 0 {
		code = 0
	}
	if code > maxCode {
		code = maxCode
	}
	return uint16(code)
}

// simActuator logs nothing and holds no hardware; it just remembers
// the last commanded level for inspection in tests or debug builds.
type simActuator struct {
	on bool
}

func (a *simActuator) SetLevel(on bool) error {
	a.on = on
	return nil
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

func openHardware(cfg config.Config, adcDevice string) (hardware, error) {
	return hardware{
		reader:   simReader{sensors: cfg},
		actuator: &simActuator{},
		closer:   noopCloser{},
	}, nil
}
