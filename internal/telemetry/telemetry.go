// Package telemetry delivers one Reading per call to the remote collector.
// Fire and forget: no queue, no backlog, a failed reading is dropped and the
// next sensor cycle re-attempts with fresh data. The uploader never talks to
// the session manager, 401 recovery belongs to the control loop.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/windevs/sensornode/internal/sensor"
	"github.com/windevs/sensornode/internal/session"
	"github.com/windevs/sensornode/log2"
)

var (
	// ErrUnauthorized is upload rejected by authorization (HTTP 401).
	ErrUnauthorized = errors.New("upload unauthorized")
	// ErrNoCredential is upload attempted in unauthenticated state,
	// rejected locally before any network call.
	ErrNoCredential = errors.New("upload without credential")
)

func IsUnauthorized(e error) bool { return errors.Cause(e) == ErrUnauthorized }

// Reading is one immutable snapshot of sensor-derived values.
type Reading struct {
	Humidity      float64
	TemperatureC  float64
	TemperatureF  float64
	HeatIndexC    float64
	HeatIndexF    float64
	UptimeSeconds uint64
	Timestamp     string
}

// NewReading derives the Fahrenheit and heat index values once,
// at construction.
func NewReading(humidity, tempC float64, uptimeSeconds uint64, timestamp string) Reading {
	tempF := sensor.CToF(tempC)
	return Reading{
		Humidity:      humidity,
		TemperatureC:  tempC,
		TemperatureF:  tempF,
		HeatIndexC:    sensor.HeatIndexC(tempC, humidity),
		HeatIndexF:    sensor.HeatIndexF(tempF, humidity),
		UptimeSeconds: uptimeSeconds,
		Timestamp:     timestamp,
	}
}

// wirePayload is the collector's ingest schema. Temperature and heat index
// go over the wire in Celsius.
type wirePayload struct {
	SensorID    string  `json:"sensor_id"`
	Humidity    float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
	HeatIndex   float64 `json:"heat_index"`
	Uptime      uint64  `json:"uptime"`
	Datetime    string  `json:"datetime"`
}

type Config struct {
	Endpoint string
	SensorID string
	Timeout  time.Duration
}

type Uploader struct {
	log    *log2.Log
	config Config
	client *http.Client
}

// NewUploader with rt=nil uses default transport.
func NewUploader(log *log2.Log, config Config, rt http.RoundTripper) *Uploader {
	if config.Timeout == 0 {
		config.Timeout = session.DefaultTimeout
	}
	return &Uploader{
		log:    log,
		config: config,
		client: &http.Client{Transport: rt, Timeout: config.Timeout},
	}
}

func (u *Uploader) payload(r Reading) ([]byte, error) {
	return json.Marshal(wirePayload{
		SensorID:    u.config.SensorID,
		Humidity:    r.Humidity,
		Temperature: r.TemperatureC,
		HeatIndex:   r.HeatIndexC,
		Uptime:      r.UptimeSeconds,
		Datetime:    r.Timestamp,
	})
}

// Send issues one authorized POST. Returns nil on 2xx, ErrUnauthorized on
// 401, annotated transport error otherwise. Exactly zero or one network
// round-trips, never more.
func (u *Uploader) Send(ctx context.Context, r Reading, cred session.Credential) error {
	if cred.Zero() {
		return ErrNoCredential
	}

	body, err := u.payload(r)
	if err != nil {
		return errors.Trace(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Trace(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.Access)

	u.log.Debugf("telemetry send %s", body)
	resp, err := u.client.Do(req)
	if err != nil {
		return errors.Annotatef(err, "telemetry endpoint=%s", u.config.Endpoint)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		// response body is not part of the contract, log at debug and move on
		if u.log.Enabled(log2.LDebug) {
			rb, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			u.log.Debugf("telemetry response status=%d body=%s", resp.StatusCode, rb)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return errors.Errorf("telemetry endpoint=%s status=%d", u.config.Endpoint, resp.StatusCode)
	}
}
