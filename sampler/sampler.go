// Package sampler runs the high-rate sampling loop that reads both ADC
// channels and writes them into a buffer.SampleBuffer, grounded on
// original_source/main.c's task_sensor_sampling (vTaskDelayUntil-based
// absolute-deadline scheduling at ~1kHz).
package sampler

import (
	"context"
	"time"

	"ampshield.dev/amperr"
	"ampshield.dev/buffer"
	"github.com/rs/zerolog"
)

// RawReader is the minimal contract sampler needs from the ADC
// front-end. driver/adcfrontend.Device and power.RawReader both
// satisfy it.
type RawReader interface {
	ReadRaw(ctx context.Context) (currentCode, voltageCode uint16, err error)
}

// Sampler periodically reads both channels and writes them to buf.
type Sampler struct {
	reader       RawReader
	buf          *buffer.SampleBuffer
	period       time.Duration
	writeTimeout time.Duration
	log          zerolog.Logger
}

// New builds a Sampler. period is the sampling interval
// (config.Config.SamplePeriod); writeTimeout bounds each buffer write
// (config.Config.BufferWriteTimeout).
func New(reader RawReader, buf *buffer.SampleBuffer, period, writeTimeout time.Duration, log zerolog.Logger) *Sampler {
	return &Sampler{reader: reader, buf: buf, period: period, writeTimeout: writeTimeout, log: log}
}

// Run drives the sampling loop using absolute-deadline scheduling: each
// tick's deadline is computed from the previous deadline rather than
// from time.Now, so a slow tick does not push subsequent ticks later
// (no cumulative drift), matching vTaskDelayUntil. A failed hardware
// read or buffer write skips that tick and logs, without stopping the
// loop. Run blocks until ctx is done.
func (s *Sampler) Run(ctx context.Context) {
	deadline := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		deadline = deadline.Add(s.period)
		next := time.Until(deadline)
		if next < 0 {
			// The previous tick overran; resync to now rather than
			// firing a burst of immediate ticks to catch up.
			deadline = time.Now()
			next = s.period
		}
		timer.Reset(next)

		s.tick(ctx)
	}
}

func (s *Sampler) tick(ctx context.Context) {
	currentCode, voltageCode, err := s.reader.ReadRaw(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("sensor read failed, skipping tick")
		return
	}

	sample := buffer.RawSample{CurrentCode: currentCode, VoltageCode: voltageCode}
	if err := s.buf.Write(sample, s.writeTimeout); err != nil {
		if amperr.Is(err, amperr.ErrTimeout) {
			s.log.Warn().Msg("buffer write timed out, sample dropped")
			return
		}
		s.log.Error().Err(err).Msg("buffer write failed")
	}
}
