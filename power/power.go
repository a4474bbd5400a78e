// Package power converts raw ADC codes into calibrated RMS current,
// RMS voltage, apparent power, real power and power factor for one
// window of samples, grounded on original_source/power_calc.c and
// adc_sensor.c.
package power

import (
	"math"
	"time"

	"ampshield.dev/amperr"
	"ampshield.dev/buffer"
	"ampshield.dev/config"
	"ampshield.dev/internal/clock"
)

// Calibration is a two-point ADC calibration curve (code -> volts),
// falling back to the reference firmware's linear conversion
// (voltage_mv = raw*3300/4095) when no curve has been fitted. This is
// the Go counterpart of the original's adc_cali_handle_t: the ESP-IDF
// curve-fitting/line-fitting calibration schemes with a raw linear
// fallback (adc_sensor.c adc_calibration_init / adc_raw_to_voltage).
type Calibration struct {
	// Fitted is true once two-point calibration data has been supplied.
	Fitted bool

	// Two calibration points (code, volts), used to derive a line when
	// Fitted is true.
	Code0, Volts0 float64
	Code1, Volts1 float64

	// FullScale and Bits back the linear fallback.
	FullScaleVolts float64
	Bits           int
}

// NewLinearCalibration returns an uncalibrated curve using the
// reference firmware's fallback formula directly.
func NewLinearCalibration(bits int, fullScaleVolts float64) Calibration {
	return Calibration{Bits: bits, FullScaleVolts: fullScaleVolts}
}

// ToVolts converts one ADC code to volts.
func (c Calibration) ToVolts(code uint16) float64 {
	if c.Fitted && c.Code1 != c.Code0 {
		slope := (c.Volts1 - c.Volts0) / (c.Code1 - c.Code0)
		return c.Volts0 + slope*(float64(code)-c.Code0)
	}
	maxCode := float64(int(1)<<uint(c.Bits)) - 1
	if maxCode <= 0 {
		maxCode = 4095
	}
	return float64(code) * c.FullScaleVolts / maxCode
}

// Sensors bundles the calibration curves and scaling factors for both
// channels, taken once from config.Config.
type Sensors struct {
	Current          Calibration
	CurrentZeroOffset float64 // volts, at sensor output, no-load
	CurrentSensitivity float64 // V/A

	Voltage              Calibration
	VoltageScalingFactor float64
	VoltageCalibration   float64
}

// FromConfig derives a Sensors from a Config, using the unfitted
// linear fallback for both channels (no two-point calibration data is
// collected by this implementation's startup sequence).
func FromConfig(c config.Config) Sensors {
	curve := NewLinearCalibration(c.ADCBits, c.ADCFullScale)
	return Sensors{
		Current:            curve,
		CurrentZeroOffset:  c.CurrentZeroOffset,
		CurrentSensitivity: c.EffectiveCurrentSensitivity(),
		Voltage:            curve,
		VoltageScalingFactor: c.VoltageScalingFactor,
		VoltageCalibration:   c.VoltageCalibration,
	}
}

// CurrentAmps converts one current-channel ADC code to amps, using the
// ACS712-style formula: (voltage - zero_offset) / sensitivity.
func (s Sensors) CurrentAmps(code uint16) float64 {
	v := s.Current.ToVolts(code)
	return (v - s.CurrentZeroOffset) / s.CurrentSensitivity
}

// VoltageVolts converts one voltage-channel ADC code to AC mains
// volts, using the ZMPT101B-style scaling: adc_volts * scaling * calibration.
func (s Sensors) VoltageVolts(code uint16) float64 {
	v := s.Voltage.ToVolts(code)
	return v * s.VoltageScalingFactor * s.VoltageCalibration
}

// Record is one window's computed electrical quantities, the Go
// counterpart of the reference power_data_t.
type Record struct {
	IRMS          float64
	VRMS          float64
	PowerFactor   float64
	PowerApparent float64
	PowerReal     float64
	TimestampMS   int64
}

// Compute derives a Record from parallel current/voltage ADC code
// slices of equal, non-zero length, per power_calc_compute.
func Compute(sensors Sensors, currentCodes, voltageCodes []uint16) (Record, error) {
	if len(currentCodes) == 0 || len(voltageCodes) == 0 || len(currentCodes) != len(voltageCodes) {
		return Record{}, amperr.ErrInvalidArgument
	}

	n := len(currentCodes)
	currents := make([]float64, n)
	voltages := make([]float64, n)
	for i := 0; i < n; i++ {
		currents[i] = sensors.CurrentAmps(currentCodes[i])
		voltages[i] = sensors.VoltageVolts(voltageCodes[i])
	}

	iRMS := rms(currents)
	vRMS := rms(voltages)
	pf := powerFactor(voltages, currents)
	apparent := vRMS * iRMS
	real := apparent * pf

	return Record{
		IRMS:          iRMS,
		VRMS:          vRMS,
		PowerFactor:   pf,
		PowerApparent: apparent,
		PowerReal:     real,
		TimestampMS:   clock.NowMillis(),
	}, nil
}

// ComputeFromBuffer draws one window's worth of samples from buf and
// computes a Record over them.
func ComputeFromBuffer(sensors Sensors, buf *buffer.SampleBuffer, windowSize int, timeout time.Duration) (Record, error) {
	dst := make([]buffer.RawSample, windowSize)
	n, err := buf.ReadSnapshot(dst, timeout)
	if err != nil {
		return Record{}, err
	}
	if n == 0 {
		return Record{}, amperr.ErrInvalidArgument
	}
	currentCodes := make([]uint16, n)
	voltageCodes := make([]uint16, n)
	for i := 0; i < n; i++ {
		currentCodes[i] = dst[i].CurrentCode
		voltageCodes[i] = dst[i].VoltageCode
	}
	return Compute(sensors, currentCodes, voltageCodes)
}

func rms(xs []float64) float64 {
	var sumSquares float64
	for _, x := range xs {
		sumSquares += x * x
	}
	return math.Sqrt(sumSquares / float64(len(xs)))
}

// powerFactor estimates the cosine of the voltage/current phase angle
// via Pearson correlation between the two waveforms, matching
// calc_power_factor. A true FFT- or zero-crossing-based phase
// measurement is out of scope (see SPEC_FULL.md Non-goals).
func powerFactor(voltages, currents []float64) float64 {
	n := float64(len(voltages))

	var vMean, iMean float64
	for i := range voltages {
		vMean += voltages[i]
		iMean += currents[i]
	}
	vMean /= n
	iMean /= n

	var numerator, vVariance, iVariance float64
	for i := range voltages {
		v := voltages[i] - vMean
		c := currents[i] - iMean
		numerator += v * c
		vVariance += v * v
		iVariance += c * c
	}

	denominator := math.Sqrt(vVariance * iVariance)
	if denominator < 1e-3 {
		return 1.0
	}

	pf := math.Abs(numerator / denominator)
	if pf > 1.0 {
		pf = 1.0
	}
	if pf < 0.0 {
		pf = 0.0
	}
	return pf
}
