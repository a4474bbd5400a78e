package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"ampshield.dev/buffer"
	"ampshield.dev/config"
	"ampshield.dev/internal/obslog"
	"ampshield.dev/power"
	"ampshield.dev/relay"
)

// shortCircuitReader always reports ADC codes corresponding to a
// current far above the short-circuit threshold.
type shortCircuitReader struct {
	cfg config.Config
}

func (r shortCircuitReader) ReadRaw(ctx context.Context) (uint16, uint16, error) {
	sensors := power.FromConfig(r.cfg)
	amps := 60.0 // above CurrentShortCircuit=50
	volts := amps*sensors.CurrentSensitivity + sensors.CurrentZeroOffset
	code := volts / r.cfg.ADCFullScale * float64(int(1)<<uint(r.cfg.ADCBits)-1)
	currentCode := clampCode(code)

	vRMS := 220.0
	adcVolts := vRMS / (sensors.VoltageScalingFactor * sensors.VoltageCalibration)
	vcode := adcVolts / r.cfg.ADCFullScale * float64(int(1)<<uint(r.cfg.ADCBits)-1)
	voltageCode := clampCode(vcode)

	return currentCode, voltageCode, nil
}

func clampCode(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 4095 {
		return 4095
	}
	return uint16(v)
}

type fakeActuator struct {
	on atomic.Bool
}

func (f *fakeActuator) SetLevel(on bool) error {
	f.on.Store(on)
	return nil
}

func TestSupervisorTripsRelayOnShortCircuit(t *testing.T) {
	cfg := config.Default()
	cfg.SamplePeriod = time.Millisecond
	cfg.WindowPeriod = 10 * time.Millisecond
	cfg.SamplesPerCycle = 8
	cfg.CalcCycles = 2 // small window so the test runs fast
	cfg.RelayCooldown = 0
	cfg.WatchdogPeriod = time.Hour
	// With the default 0.066 V/A sensor and 2.5 V zero offset the ADC
	// saturates at about 12 A; 0.01 V/A keeps 60 A (3.1 V) in range.
	cfg.CurrentSensitivity = 0.01

	buf := buffer.New(cfg.BufferCapacity())
	reader := shortCircuitReader{cfg: cfg}

	act := &fakeActuator{}
	relayCtl, err := relay.New(cfg, act)
	if err != nil {
		t.Fatalf("relay.New: %v", err)
	}

	sup := New(cfg, buf, reader, relayCtl, nil, obslog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go sup.Run(ctx)

	deadline := time.Now().Add(190 * time.Millisecond)
	for time.Now().Before(deadline) {
		if relayCtl.GetState() == relay.StateTripped {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	if relayCtl.GetState() != relay.StateTripped {
		t.Fatalf("relay state = %v, want StateTripped", relayCtl.GetState())
	}
	if act.on.Load() {
		t.Fatal("actuator must be de-energized once tripped")
	}
	if relayCtl.GetTripCount() == 0 {
		t.Fatal("expected trip count > 0")
	}
}

func TestDropNewestSendNeverBlocksOnFullChannel(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 1
	dropNewestSend(ch, 2)
	got := <-ch
	if got != 1 {
		t.Fatalf("got %d, want 1 (newest dropped, oldest kept)", got)
	}
}

func TestDropNewestSendOnEmptyChannel(t *testing.T) {
	ch := make(chan int, 1)
	dropNewestSend(ch, 7)
	select {
	case v := <-ch:
		if v != 7 {
			t.Fatalf("got %d, want 7", v)
		}
	default:
		t.Fatal("expected value to be sent")
	}
}
