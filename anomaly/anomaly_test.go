package anomaly

import (
	"testing"

	"ampshield.dev/config"
)

func TestShortCircuitFiresImmediately(t *testing.T) {
	d := New(config.Default())
	ev, detected := d.Analyze(60, 220, 13200, 1000)
	if !detected {
		t.Fatal("expected detection")
	}
	if ev.Kind != KindShortCircuit {
		t.Fatalf("Kind = %v, want KindShortCircuit", ev.Kind)
	}
	if !ev.Kind.RelayTriggering() {
		t.Fatal("short circuit must be relay-triggering")
	}
}

func TestOvercurrentRequiresConsecutiveWindows(t *testing.T) {
	cfg := config.Default()
	d := New(cfg)

	for i := 0; i < cfg.AnomalyConfirmCount-1; i++ {
		_, detected := d.Analyze(20, 220, 4400, int64(i))
		if detected {
			t.Fatalf("fired early at window %d", i)
		}
	}
	ev, detected := d.Analyze(20, 220, 4400, 100)
	if !detected {
		t.Fatal("expected detection on the Nth consecutive window")
	}
	if ev.Kind != KindOvercurrent {
		t.Fatalf("Kind = %v, want KindOvercurrent", ev.Kind)
	}
}

func TestOvercurrentClearsOnDrop(t *testing.T) {
	cfg := config.Default()
	d := New(cfg)

	d.Analyze(20, 220, 4400, 0)
	d.Analyze(20, 220, 4400, 1)
	// Current drops below threshold; counter must reset.
	_, detected := d.Analyze(5, 220, 1100, 2)
	if detected {
		t.Fatal("should not detect below threshold")
	}

	for i := 0; i < cfg.AnomalyConfirmCount-1; i++ {
		_, detected := d.Analyze(20, 220, 4400, int64(10+i))
		if detected {
			t.Fatalf("counter was not reset by the earlier drop (window %d)", i)
		}
	}
}

func TestWireFireNeedsFullHistoryAndBaseline(t *testing.T) {
	cfg := config.Default()
	d := New(cfg)

	// Fill the history with a stable load below FireDetectMinPower; no
	// firing expected while establishing the baseline.
	for i := 0; i < cfg.FireHistorySize; i++ {
		_, detected := d.Analyze(5, 220, 1100, int64(i))
		if detected {
			t.Fatalf("unexpected detection while filling history at %d", i)
		}
	}

	// A sustained ramp above FireDetectMinPower and TempRiseThreshold
	// relative to the established baseline must eventually fire. The
	// current stays below CurrentOvercurrent so the overcurrent rule,
	// which is evaluated first, cannot be the one that fires.
	fired := false
	for i := 0; i < cfg.FireHistorySize*3; i++ {
		ev, detected := d.Analyze(13.6, 220, 3000, int64(100+i))
		if detected {
			if ev.Kind != KindWireFire {
				t.Fatalf("Kind = %v, want KindWireFire", ev.Kind)
			}
			fired = true
			break
		}
	}
	if !fired {
		t.Fatal("expected wire fire detection under a sustained power ramp")
	}
}

func TestWireFireBaselineAdaptsToNormalGrowth(t *testing.T) {
	cfg := config.Default()
	d := New(cfg)

	for i := 0; i < cfg.FireHistorySize; i++ {
		d.Analyze(5, 220, 1100, int64(i))
	}

	// A small, gradual increase that never crosses FireDetectMinPower
	// must never fire, regardless of how long it continues.
	for i := 0; i < cfg.FireHistorySize*5; i++ {
		_, detected := d.Analyze(6, 220, 1150, int64(200+i))
		if detected {
			t.Fatalf("false positive on normal load growth at window %d", i)
		}
	}
}

func TestVoltageAnomalyDoesNotTriggerRelay(t *testing.T) {
	d := New(config.Default())

	ev, detected := d.Analyze(5, 260, 1100, 1)
	if detected {
		t.Fatal("voltage anomaly must not be relay-triggering")
	}
	if ev.Kind != KindOvervoltage {
		t.Fatalf("Kind = %v, want KindOvervoltage", ev.Kind)
	}
	if ev.Kind.RelayTriggering() {
		t.Fatal("KindOvervoltage.RelayTriggering() must be false")
	}

	ev, detected = d.Analyze(5, 150, 750, 2)
	if detected {
		t.Fatal("undervoltage must not be relay-triggering")
	}
	if ev.Kind != KindUndervoltage {
		t.Fatalf("Kind = %v, want KindUndervoltage", ev.Kind)
	}
}

func TestNoAnomalyWhenNominal(t *testing.T) {
	d := New(config.Default())
	ev, detected := d.Analyze(5, 220, 1100, 1)
	if detected {
		t.Fatal("expected no detection under nominal conditions")
	}
	if ev.Kind != KindNone {
		t.Fatalf("Kind = %v, want KindNone", ev.Kind)
	}
}

func TestShortCircuitTakesPriorityOverOthers(t *testing.T) {
	cfg := config.Default()
	d := New(cfg)
	// Drive overcurrent hysteresis close to firing, then cross into
	// short circuit: short circuit must win immediately, not wait for
	// the overcurrent counter.
	for i := 0; i < cfg.AnomalyConfirmCount-1; i++ {
		d.Analyze(20, 220, 4400, int64(i))
	}
	ev, detected := d.Analyze(60, 260, 15600, 100)
	if !detected || ev.Kind != KindShortCircuit {
		t.Fatalf("got Kind=%v detected=%v, want KindShortCircuit", ev.Kind, detected)
	}
}

func TestReset(t *testing.T) {
	cfg := config.Default()
	d := New(cfg)
	for i := 0; i < cfg.AnomalyConfirmCount-1; i++ {
		d.Analyze(20, 220, 4400, int64(i))
	}
	d.Reset()
	// After reset the hysteresis counter must restart from zero.
	for i := 0; i < cfg.AnomalyConfirmCount-1; i++ {
		_, detected := d.Analyze(20, 220, 4400, int64(i))
		if detected {
			t.Fatalf("counter not reset, fired early at %d", i)
		}
	}
}
