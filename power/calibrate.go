package power

import (
	"context"
	"time"
)

// RawReader is the minimal contract power needs from the ADC
// front-end to perform zero-offset calibration: one raw (current,
// voltage) code pair per call. driver/adcfrontend.Device satisfies it.
type RawReader interface {
	ReadRaw(ctx context.Context) (currentCode, voltageCode uint16, err error)
}

// CalibrateCurrentZero samples the current channel with no load
// present and returns the mean zero-offset in volts, for use as
// Sensors.CurrentZeroOffset / config.Config.CurrentZeroOffset.
//
// The original firmware exposes adc_calibrate_current_zero for field
// commissioning; cmd/monitor exposes the same routine behind
// -calibrate-zero.
func CalibrateCurrentZero(ctx context.Context, reader RawReader, curve Calibration, numReadings int, settle time.Duration) (float64, error) {
	if numReadings <= 0 {
		numReadings = 100
	}

	var sum float64
	taken := 0
	for i := 0; i < numReadings; i++ {
		currentCode, _, err := reader.ReadRaw(ctx)
		if err == nil {
			sum += curve.ToVolts(currentCode)
			taken++
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(settle):
		}
	}

	if taken == 0 {
		return 0, nil
	}
	return sum / float64(taken), nil
}
