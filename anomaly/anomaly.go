// Package anomaly implements the four detection rules evaluated in
// strict priority order over one power.Record: short circuit,
// overcurrent (with hysteresis), wire fire (adaptive baseline), and
// voltage anomaly (reporting-only), grounded on
// original_source/anomaly_detector.c.
package anomaly

import "ampshield.dev/config"

// Kind identifies which rule produced an AnomalyEvent.
type Kind int

const (
	// KindNone means Analyze found nothing to report.
	KindNone Kind = iota
	KindShortCircuit
	KindOvercurrent
	KindWireFire
	KindUndervoltage
	KindOvervoltage
)

func (k Kind) String() string {
	switch k {
	case KindShortCircuit:
		return "short_circuit"
	case KindOvercurrent:
		return "overcurrent"
	case KindWireFire:
		return "wire_fire"
	case KindUndervoltage:
		return "undervoltage"
	case KindOvervoltage:
		return "overvoltage"
	default:
		return "none"
	}
}

// RelayTriggering reports whether this Kind is a protection condition
// that must cut power, as opposed to a reporting-only condition.
func (k Kind) RelayTriggering() bool {
	switch k {
	case KindShortCircuit, KindOvercurrent, KindWireFire:
		return true
	default:
		return false
	}
}

// Event is one detector finding, the Go counterpart of anomaly_event_t.
type Event struct {
	Kind        Kind
	CurrentAmps float64
	VoltageVolts float64
	PowerWatts  float64
	TimestampMS int64
}

// OvercurrentState is the hysteresis counter for the overcurrent rule:
// N consecutive windows above threshold before the rule fires.
type OvercurrentState struct {
	count     int
	threshold int
}

// FireDetectorState is the adaptive-baseline state for the wire-fire
// rule: a fixed-size ring of recent real-power readings plus a
// slow-moving baseline.
type FireDetectorState struct {
	history    []float64
	index      int
	bufferFull bool
	baseline   float64
}

// Detector evaluates the four rules in priority order, holding the
// stateful detectors (overcurrent hysteresis, fire baseline) and the
// thresholds from config.Config.
type Detector struct {
	cfg config.Config
	oc  OvercurrentState
	fd  FireDetectorState
}

// New builds a Detector from cfg. Thresholds are fixed for the life of
// the Detector; call Reset to clear accumulated state without
// re-reading config.
func New(cfg config.Config) *Detector {
	d := &Detector{
		cfg: cfg,
		oc:  OvercurrentState{threshold: cfg.AnomalyConfirmCount},
		fd:  FireDetectorState{history: make([]float64, cfg.FireHistorySize)},
	}
	return d
}

// Reset clears the overcurrent hysteresis counter and the fire
// detector's history/baseline, matching anomaly_detector_reset.
func (d *Detector) Reset() {
	d.oc.count = 0
	d.fd.index = 0
	d.fd.bufferFull = false
	d.fd.baseline = 0
}

// Analyze evaluates one window's readings (the IRMS, VRMS, PowerReal
// and TimestampMS of a power.Record) against all four rules in
// priority order (short circuit, overcurrent, wire fire, voltage) and
// returns the first that fires. detected is true only for
// relay-triggering Kinds (short circuit, overcurrent, wire fire); a
// voltage anomaly is returned with detected=false, since it is
// reporting-only and must not reach the relay controller.
func (d *Detector) Analyze(currentAmps, voltageVolts, powerWatts float64, timestampMS int64) (event Event, detected bool) {
	if d.detectShortCircuit(currentAmps) {
		return Event{Kind: KindShortCircuit, CurrentAmps: currentAmps, VoltageVolts: voltageVolts, PowerWatts: powerWatts, TimestampMS: timestampMS}, true
	}

	if d.detectOvercurrent(currentAmps) {
		return Event{Kind: KindOvercurrent, CurrentAmps: currentAmps, VoltageVolts: voltageVolts, PowerWatts: powerWatts, TimestampMS: timestampMS}, true
	}

	if d.detectWireFire(powerWatts) {
		return Event{Kind: KindWireFire, CurrentAmps: currentAmps, VoltageVolts: voltageVolts, PowerWatts: powerWatts, TimestampMS: timestampMS}, true
	}

	if kind, ok := d.detectVoltageAnomaly(voltageVolts); ok {
		return Event{Kind: kind, CurrentAmps: currentAmps, VoltageVolts: voltageVolts, PowerWatts: powerWatts, TimestampMS: timestampMS}, false
	}

	return Event{}, false
}

func (d *Detector) detectShortCircuit(iRMS float64) bool {
	return iRMS > d.cfg.CurrentShortCircuit
}

// detectOvercurrent requires AnomalyConfirmCount consecutive windows
// above threshold before firing; any window at or below threshold
// clears the counter immediately.
func (d *Detector) detectOvercurrent(iRMS float64) bool {
	if iRMS > d.cfg.CurrentOvercurrent {
		d.oc.count++
		return d.oc.count >= d.oc.threshold
	}
	d.oc.count = 0
	return false
}

// detectWireFire maintains a ring of the last FireHistorySize real
// power readings. Once full, it compares the ring's average against a
// slow-moving baseline (EMA, alpha=0.1); a ratio above TempRiseThreshold
// while the average also clears FireDetectMinPower fires the rule. The
// baseline is established on the first full window and updated by the
// EMA on every subsequent non-firing window.
func (d *Detector) detectWireFire(powerReal float64) bool {
	fd := &d.fd
	fd.history[fd.index] = powerReal
	fd.index = (fd.index + 1) % len(fd.history)
	if fd.index == 0 {
		fd.bufferFull = true
	}
	if !fd.bufferFull {
		return false
	}

	var avg float64
	for _, p := range fd.history {
		avg += p
	}
	avg /= float64(len(fd.history))

	if fd.baseline < 1.0 {
		fd.baseline = avg
		return false
	}

	ratio := avg / fd.baseline
	if ratio > d.cfg.TempRiseThreshold && avg > d.cfg.FireDetectMinPower {
		return true
	}

	fd.baseline = fd.baseline*0.9 + avg*0.1
	return false
}

func (d *Detector) detectVoltageAnomaly(vRMS float64) (Kind, bool) {
	if vRMS < d.cfg.VoltageMin {
		return KindUndervoltage, true
	}
	if vRMS > d.cfg.VoltageMax {
		return KindOvervoltage, true
	}
	return KindNone, false
}
