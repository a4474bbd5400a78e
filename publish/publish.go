// Package publish posts power and anomaly data to the network
// collaborator's HTTP API, grounded on original_source/http_client.c.
// The contract is narrow: fire-and-forget POSTs with failures logged
// and dropped, never retried from inside the core. net/http and
// encoding/json are used directly; see DESIGN.md.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ampshield.dev/anomaly"
	"ampshield.dev/power"
	"github.com/rs/zerolog"
)

// Publisher is the contract the supervisor depends on; anything the
// core does with the network collaborator goes through it.
type Publisher interface {
	PostPowerData(ctx context.Context, rec power.Record) error
	PostAnomalyEvent(ctx context.Context, ev anomaly.Event, relayTripped bool) error
	LinkUp(ctx context.Context) bool
}

// HTTPPublisher implements Publisher over a JSON REST API.
type HTTPPublisher struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	deviceID string
	log      zerolog.Logger
}

const (
	endpointPowerData    = "/api/power"
	endpointAnomalyEvent = "/api/anomaly"
	endpointHealth       = "/api/health"

	defaultTimeout = 5 * time.Second
	healthTimeout  = 3 * time.Second
)

// New builds an HTTPPublisher. baseURL has no trailing slash, e.g.
// "https://collector.example.com".
func New(baseURL, apiKey, deviceID string, log zerolog.Logger) *HTTPPublisher {
	return &HTTPPublisher{
		client:   &http.Client{Timeout: defaultTimeout},
		baseURL:  baseURL,
		apiKey:   apiKey,
		deviceID: deviceID,
		log:      log,
	}
}

type powerPayload struct {
	DeviceID      string  `json:"device_id"`
	TimestampSec  int64   `json:"timestamp"`
	VoltageRMS    float64 `json:"voltage_rms"`
	CurrentRMS    float64 `json:"current_rms"`
	PowerApparent float64 `json:"power_apparent"`
	PowerReal     float64 `json:"power_real"`
	PowerFactor   float64 `json:"power_factor"`
}

type anomalyPayload struct {
	DeviceID     string  `json:"device_id"`
	TimestampSec int64   `json:"timestamp"`
	AnomalyType  string  `json:"anomaly_type"`
	Current      float64 `json:"current"`
	Voltage      float64 `json:"voltage"`
	Power        float64 `json:"power"`
	RelayTripped bool    `json:"relay_tripped"`
}

// PostPowerData uploads one power.Record. Failures are logged and
// swallowed; the core never retries or queues for later delivery.
func (p *HTTPPublisher) PostPowerData(ctx context.Context, rec power.Record) error {
	payload := powerPayload{
		DeviceID:      p.deviceID,
		TimestampSec:  rec.TimestampMS / 1000,
		VoltageRMS:    rec.VRMS,
		CurrentRMS:    rec.IRMS,
		PowerApparent: rec.PowerApparent,
		PowerReal:     rec.PowerReal,
		PowerFactor:   rec.PowerFactor,
	}
	err := p.post(ctx, endpointPowerData, payload)
	if err != nil {
		p.log.Warn().Err(err).Msg("power data upload failed")
	}
	return err
}

// PostAnomalyEvent uploads one anomaly.Event.
func (p *HTTPPublisher) PostAnomalyEvent(ctx context.Context, ev anomaly.Event, relayTripped bool) error {
	payload := anomalyPayload{
		DeviceID:     p.deviceID,
		TimestampSec: ev.TimestampMS / 1000,
		AnomalyType:  ev.Kind.String(),
		Current:      ev.CurrentAmps,
		Voltage:      ev.VoltageVolts,
		Power:        ev.PowerWatts,
		RelayTripped: relayTripped,
	}
	err := p.post(ctx, endpointAnomalyEvent, payload)
	if err != nil {
		p.log.Warn().Err(err).Msg("anomaly event upload failed")
	}
	return err
}

func (p *HTTPPublisher) post(ctx context.Context, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("publish: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("publish: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-API-Key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("publish: server returned status %d", resp.StatusCode)
	}
	return nil
}

// LinkUp checks the collector's health endpoint, matching
// http_server_available.
func (p *HTTPPublisher) LinkUp(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+endpointHealth, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
