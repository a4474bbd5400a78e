// Package config holds the tunable constants of the protection pipeline:
// calibration factors, detector thresholds, task timings and queue
// capacities. Nothing in the core reads or writes these at runtime; a
// Config is built once at startup and handed to the components that
// need it.
package config

import "time"

// SensorVariant selects one of the supported Hall-effect current sensor
// sensitivities.
type SensorVariant int

const (
	Sensor066 SensorVariant = iota // 0.066 V/A
	Sensor100                      // 0.100 V/A
	Sensor185                      // 0.185 V/A
)

// Sensitivity returns the sensor's volts-per-amp sensitivity.
func (v SensorVariant) Sensitivity() float64 {
	switch v {
	case Sensor066:
		return 0.066
	case Sensor185:
		return 0.185
	default:
		return 0.100
	}
}

// Config is the complete set of tunables for one device instance.
type Config struct {
	// DeviceID identifies this unit in published payloads.
	DeviceID string

	// SamplesPerCycle and CalcCycles determine the window size:
	// WindowSize = SamplesPerCycle * CalcCycles.
	SamplesPerCycle int
	CalcCycles      int

	// SamplePeriod is the sampler task period. The reference
	// configuration requests 2kHz but schedules at 1ms (~1kHz); this
	// implementation takes 1ms as the canonical, documented choice
	// (see DESIGN.md, Open Question decisions).
	SamplePeriod time.Duration

	// WindowPeriod is the power-compute task period.
	WindowPeriod time.Duration

	// Current sensor calibration.
	CurrentSensor       SensorVariant
	CurrentZeroOffset   float64 // volts, at the sensor output, no-load
	CurrentSensitivity  float64 // V/A, overrides CurrentSensor.Sensitivity() when non-zero

	// Voltage sensor calibration.
	VoltageScalingFactor float64 // transformer ratio (unitless divider)
	VoltageCalibration   float64 // fine-tune multiplier

	// ADC characteristics.
	ADCBits      int
	ADCFullScale float64 // volts at full-scale code

	// Detector thresholds.
	CurrentShortCircuit float64 // A
	CurrentOvercurrent  float64 // A
	AnomalyConfirmCount int
	FireHistorySize     int
	FireDetectMinPower  float64 // W
	TempRiseThreshold   float64
	VoltageMin          float64 // V
	VoltageMax          float64 // V

	// Relay behavior.
	RelayCooldown     time.Duration
	RelayOnLevel      bool
	AutoResetEnabled  bool

	// Queue capacities (§5 reference values).
	QueuePowerData    int
	QueueAnomalies    int
	QueueNetAnomalies int
	QueueNetPower     int

	// Mutex/lock timeouts.
	BufferWriteTimeout time.Duration
	BufferReadTimeout  time.Duration
	RelayLockTimeout   time.Duration

	// WatchdogPeriod is the interval of the supervisor's uptime and
	// trip-count heartbeat log. The supervisor does not check whether
	// the other pipeline goroutines are still servicing their loops.
	WatchdogPeriod time.Duration
}

// WindowSize is the number of samples analyzed per power-compute window.
func (c Config) WindowSize() int {
	return c.SamplesPerCycle * c.CalcCycles
}

// BufferCapacity is the sample buffer's ring capacity, N_BUF = 2*WindowSize.
func (c Config) BufferCapacity() int {
	return 2 * c.WindowSize()
}

// EffectiveCurrentSensitivity returns the V/A sensitivity to use,
// preferring an explicit override over the named sensor variant.
func (c Config) EffectiveCurrentSensitivity() float64 {
	if c.CurrentSensitivity != 0 {
		return c.CurrentSensitivity
	}
	return c.CurrentSensor.Sensitivity()
}

// Default returns the reference configuration values for a single
// AmpShield unit, matching the BlueWatt firmware's config.h defaults.
func Default() Config {
	return Config{
		DeviceID:             "ampshield-0001",
		SamplesPerCycle:      40, // 40 * 10 = 400-sample window; at the 1ms SamplePeriod it spans 400ms (about 24 cycles at 60Hz)
		CalcCycles:           10,
		SamplePeriod:         time.Millisecond,
		WindowPeriod:         200 * time.Millisecond,
		CurrentSensor:        Sensor066,
		CurrentZeroOffset:    2.5,
		CurrentSensitivity:   0, // use CurrentSensor.Sensitivity()
		VoltageScalingFactor: 1000,
		VoltageCalibration:   1.0,
		ADCBits:              12,
		ADCFullScale:         3.3,
		CurrentShortCircuit:  50,
		CurrentOvercurrent:   15,
		AnomalyConfirmCount:  3,
		FireHistorySize:      10,
		FireDetectMinPower:   2100,
		TempRiseThreshold:    1.5,
		VoltageMin:           190,
		VoltageMax:           250,
		RelayCooldown:        5000 * time.Millisecond,
		RelayOnLevel:         true,
		AutoResetEnabled:     false,
		QueuePowerData:       5,
		QueueAnomalies:       10,
		QueueNetAnomalies:    20,
		QueueNetPower:        5,
		BufferWriteTimeout:   10 * time.Millisecond,
		BufferReadTimeout:    100 * time.Millisecond,
		RelayLockTimeout:     100 * time.Millisecond,
		WatchdogPeriod:       30 * time.Second,
	}
}
