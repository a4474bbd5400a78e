// Package supervisor wires the protection pipeline's stages together:
// sampler -> buffer -> power compute -> anomaly detector -> relay
// controller, with side-branch publish queues and a watchdog,
// grounded on original_source/main.c's app_main task graph (queues and
// xTaskCreate calls), translated to goroutines and buffered channels.
package supervisor

import (
	"context"
	"time"

	"ampshield.dev/amperr"
	"ampshield.dev/anomaly"
	"ampshield.dev/buffer"
	"ampshield.dev/config"
	"ampshield.dev/internal/obslog"
	"ampshield.dev/power"
	"ampshield.dev/publish"
	"ampshield.dev/relay"
	"ampshield.dev/sampler"
	"github.com/rs/zerolog"
)

// anomalyDelivery pairs one anomaly event with whether it reached the
// relay controller, for the publish side-branch.
type anomalyDelivery struct {
	event        anomaly.Event
	relayTripped bool
}

// Supervisor owns every queue and goroutine in the pipeline.
type Supervisor struct {
	cfg      config.Config
	buf      *buffer.SampleBuffer
	sensors  power.Sensors
	detector *anomaly.Detector
	relayCtl *relay.Controller
	sampler  *sampler.Sampler
	pub      publish.Publisher
	log      zerolog.Logger

	powerData     chan power.Record
	anomalies     chan anomaly.Event
	netAnomalies  chan anomalyDelivery
	netPower      chan power.Record
	voltageEvents chan anomaly.Event
}

// New wires a Supervisor from its already-initialized components. The
// caller is responsible for the startup order in cmd/monitor (ADC then
// relay then everything else), matching app_main's ESP_ERROR_CHECK
// sequence.
func New(cfg config.Config, buf *buffer.SampleBuffer, reader sampler.RawReader, relayCtl *relay.Controller, pub publish.Publisher, log zerolog.Logger) *Supervisor {
	s := &Supervisor{
		cfg:           cfg,
		buf:           buf,
		sensors:       power.FromConfig(cfg),
		detector:      anomaly.New(cfg),
		relayCtl:      relayCtl,
		pub:           pub,
		log:           log,
		powerData:     make(chan power.Record, cfg.QueuePowerData),
		anomalies:     make(chan anomaly.Event, cfg.QueueAnomalies),
		netAnomalies:  make(chan anomalyDelivery, cfg.QueueNetAnomalies),
		netPower:      make(chan power.Record, cfg.QueueNetPower),
		voltageEvents: make(chan anomaly.Event, cfg.QueueAnomalies),
	}
	s.sampler = sampler.New(reader, buf, cfg.SamplePeriod, cfg.BufferWriteTimeout, obslog.For(log, obslog.TagSensor))
	return s
}

// Run starts every pipeline stage as a goroutine and blocks until ctx
// is done. Queues are bounded and drop-newest on overflow: a stalled
// downstream consumer degrades data freshness, never blocks a
// higher-priority upstream stage.
func (s *Supervisor) Run(ctx context.Context) {
	go s.sampler.Run(ctx)
	go s.runPowerCompute(ctx)
	go s.runAnomalyDetection(ctx)
	go s.runRelayControl(ctx)
	go s.runPublisher(ctx)
	go s.runWatchdog(ctx)
	<-ctx.Done()
}

// runPowerCompute mirrors task_power_calculation: every WindowPeriod,
// draw one window from the buffer and compute a Record, fanning it out
// to the anomaly detector and the network publish queue.
func (s *Supervisor) runPowerCompute(ctx context.Context) {
	log := obslog.For(s.log, obslog.TagPower)
	ticker := time.NewTicker(s.cfg.WindowPeriod)
	defer ticker.Stop()

	windowSize := s.cfg.WindowSize()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		rec, err := power.ComputeFromBuffer(s.sensors, s.buf, windowSize, s.cfg.BufferReadTimeout)
		if err != nil {
			if amperr.Is(err, amperr.ErrInvalidArgument) {
				log.Warn().Msg("insufficient samples for window")
			} else {
				log.Warn().Err(err).Msg("power compute read failed")
			}
			continue
		}

		log.Debug().
			Float64("v_rms", rec.VRMS).
			Float64("i_rms", rec.IRMS).
			Float64("power_real", rec.PowerReal).
			Float64("power_factor", rec.PowerFactor).
			Msg("computed")

		dropNewestSend(s.powerData, rec)
		dropNewestSend(s.netPower, rec)
	}
}

// runAnomalyDetection mirrors task_anomaly_detection: consume computed
// records, evaluate the detector, and forward relay-triggering events
// to the relay queue and all events (including voltage-only reports)
// to the publish queue.
func (s *Supervisor) runAnomalyDetection(ctx context.Context) {
	log := obslog.For(s.log, obslog.TagAnomaly)
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-s.powerData:
			ev, detected := s.detector.Analyze(rec.IRMS, rec.VRMS, rec.PowerReal, rec.TimestampMS)
			if detected {
				log.Error().Stringer("kind", ev.Kind).Msg("critical anomaly")
				dropNewestSend(s.anomalies, ev)
				dropNewestSend(s.netAnomalies, anomalyDelivery{event: ev, relayTripped: true})
				continue
			}
			if ev.Kind != anomaly.KindNone {
				log.Warn().Stringer("kind", ev.Kind).Msg("voltage anomaly (reporting only)")
				dropNewestSend(s.voltageEvents, ev)
				dropNewestSend(s.netAnomalies, anomalyDelivery{event: ev, relayTripped: false})
			}
		}
	}
}

// runRelayControl mirrors task_relay_control: every relay-triggering
// anomaly event performs an emergency cutoff.
func (s *Supervisor) runRelayControl(ctx context.Context) {
	log := obslog.For(s.log, obslog.TagRelay)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.anomalies:
			if err := s.relayCtl.EmergencyCutoff(ev.Kind); err != nil {
				log.Error().Err(err).Msg("emergency cutoff failed")
				continue
			}
			log.Error().Stringer("reason", ev.Kind).Msg("emergency cutoff activated")
		}
	}
}

// runPublisher mirrors task_http_client: forwards queued power data
// and anomaly events to the network publisher, logging and dropping
// any failure rather than retrying.
func (s *Supervisor) runPublisher(ctx context.Context) {
	if s.pub == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.netAnomalies:
			if s.pub.LinkUp(ctx) {
				s.pub.PostAnomalyEvent(ctx, d.event, d.relayTripped)
			}
		case rec := <-s.netPower:
			if s.pub.LinkUp(ctx) {
				s.pub.PostPowerData(ctx, rec)
			}
		}
	}
}

// runWatchdog logs an uptime/trip-count heartbeat every
// WatchdogPeriod, grounded on app_main's 60-second status loop (which
// the original firmware uses both as a heartbeat and as the sole body
// of app_main after task creation). It only logs; it does not detect or
// act on a stalled pipeline goroutine.
func (s *Supervisor) runWatchdog(ctx context.Context) {
	log := obslog.For(s.log, obslog.TagWatchdog)
	start := time.Now()
	ticker := time.NewTicker(s.cfg.WatchdogPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		log.Info().
			Int("uptime_sec", int(time.Since(start).Seconds())).
			Uint32("trips", s.relayCtl.GetTripCount()).
			Msg("heartbeat")
	}
}

// dropNewestSend attempts a non-blocking send of v on ch; if ch is
// full, v itself is discarded and the queue is left untouched,
// matching xQueueSend(..., 0)'s ticksToWait=0 semantics: a full queue
// fails the send immediately rather than displacing what's already
// queued (§5: "producers drop the newest item").
func dropNewestSend[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}
