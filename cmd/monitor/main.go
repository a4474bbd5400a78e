// command monitor is the electrical safety monitor's entrypoint. It
// wires the ADC front end, relay controller, power/anomaly pipeline
// and network publisher together and runs until terminated, grounded
// on original_source/main.c's app_main initialization order.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ampshield.dev/buffer"
	"ampshield.dev/config"
	"ampshield.dev/internal/obslog"
	"ampshield.dev/power"
	"ampshield.dev/publish"
	"ampshield.dev/relay"
	"ampshield.dev/supervisor"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		adcDevice     = flag.String("adc-device", "", "ADC front-end serial device (empty = platform default)")
		deviceID      = flag.String("device-id", "", "override the configured device ID")
		serverURL     = flag.String("server", "", "network collaborator base URL (empty disables publishing)")
		apiKey        = flag.String("api-key", "", "network collaborator API key")
		calibrateZero = flag.Bool("calibrate-zero", false, "measure and print the current sensor's zero-offset, then exit")
	)
	flag.Parse()

	log := obslog.Default()
	mainLog := obslog.For(log, obslog.TagMain)

	cfg := config.Default()
	if *deviceID != "" {
		cfg.DeviceID = *deviceID
	}

	// Startup order: ADC and relay GPIO init (drives OFF), relay
	// controller, sample buffer, publisher, then supervisor.New, which
	// builds the power-compute sensors and the anomaly detector, and
	// finally task creation in sup.Run. There is no persistent-store
	// step (see DESIGN.md, Open Question decisions, on trip-log
	// persistence).
	mainLog.Info().Msg("initializing hardware")
	hw, err := openHardware(cfg, *adcDevice)
	if err != nil {
		return fmt.Errorf("hardware init: %w", err)
	}
	defer hw.closer.Close()

	if *calibrateZero {
		return runCalibration(cfg, hw, mainLog)
	}

	relayCtl, err := relay.New(cfg, hw.actuator)
	if err != nil {
		return fmt.Errorf("relay init: %w", err)
	}
	mainLog.Info().Msg("relay initialized (state: OFF)")

	buf := buffer.New(cfg.BufferCapacity())

	var pub publish.Publisher
	if *serverURL != "" {
		pub = publish.New(*serverURL, *apiKey, cfg.DeviceID, obslog.For(log, obslog.TagPublish))
		mainLog.Info().Str("server", *serverURL).Msg("network publisher initialized")
	} else {
		mainLog.Info().Msg("network publisher disabled (no -server)")
	}

	sup := supervisor.New(cfg, buf, hw.reader, relayCtl, pub, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		mainLog.Info().Msg("shutdown signal received")
		cancel()
	}()

	mainLog.Info().Str("device_id", cfg.DeviceID).Msg("system operational")
	sup.Run(ctx)
	return nil
}

// runCalibration implements the -calibrate-zero flag, grounded on
// original_source/adc_sensor.c's adc_calibrate_current_zero: it asks
// the operator to ensure no load is present, samples the current
// channel for a few seconds, and reports the measured zero-offset to
// carry into config.Config.CurrentZeroOffset.
func runCalibration(cfg config.Config, hw hardware, log zerolog.Logger) error {
	log.Info().Msg("calibrating current sensor zero offset")
	log.Info().Msg("ensure NO current is flowing through the sensor")
	time.Sleep(2 * time.Second)

	curve := power.NewLinearCalibration(cfg.ADCBits, cfg.ADCFullScale)
	offset, err := power.CalibrateCurrentZero(context.Background(), hw.reader, curve, 100, 10*time.Millisecond)
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}

	log.Info().Float64("zero_offset_volts", offset).Msg("current sensor zero offset calibrated")
	fmt.Printf("CurrentZeroOffset = %.4f\n", offset)
	return nil
}
