// Package models defines the core domain entities for the waterctl daemon.
// These models represent sensor snapshots, calibration parameters, and the
// remote prediction state that drives the watering decision.
//
// Terminology:
//   - Snapshot: the set of normalized sensor values captured at one sampling tick.
//   - Calibration: the mutable raw-domain reference points used to normalize
//     samples and to drive the light-threshold fallback rule.
//   - Prediction: the latest decision state reported by the remote scoring service.
package models

import (
	"errors"
	"time"
)

// ADC bounds of the raw sensor domain. Light, soil, and reservoir samples as
// well as the light threshold all live in this 12-bit range.
const (
	RawMin = 0
	RawMax = 4095
)

// Snapshot represents the normalized sensor values captured at one sampling
// tick. It is immutable once built; every tick produces a fresh one and the
// previous snapshot is discarded.
//
// Temperature and Humidity carry explicit availability flags: a climate sensor
// read that fails (bad checksum, bus timeout) yields OK=false and the value
// must not be interpreted. This is deliberate; coercing a failed read to zero
// would silently feed a plausible-looking value to the predictor.
type Snapshot struct {
	Light            int       `json:"light"`             // raw light sample
	Temperature      float64   `json:"temperature"`       // degrees Celsius, valid only when TemperatureOK
	TemperatureOK    bool      `json:"temperature_ok"`
	Humidity         float64   `json:"humidity"`          // relative percent, valid only when HumidityOK
	HumidityOK       bool      `json:"humidity_ok"`
	SoilRaw          int       `json:"soil_raw"`          // raw soil moisture sample
	SoilPercent      int       `json:"soil_percent"`      // derived, always in [0,100]
	ReservoirRaw     int       `json:"reservoir_raw"`     // raw reservoir level sample
	ReservoirPresent bool      `json:"reservoir_present"` // false means the pump must not run
	Timestamp        time.Time `json:"timestamp"`
}

// Validate checks that all snapshot fields are internally consistent.
func (s *Snapshot) Validate() error {
	if s.SoilPercent < 0 || s.SoilPercent > 100 {
		return errors.New("soil percent must be between 0 and 100")
	}
	if s.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	if s.Timestamp.After(time.Now().Add(time.Second)) {
		return errors.New("timestamp must not be in the future")
	}
	return nil
}
