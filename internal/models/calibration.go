package models

import "errors"

// Calibration holds the mutable raw-domain reference points. SoilDry and
// SoilWet anchor the linear soil-percent mapping, ReservoirEmpty is the
// single-sided presence threshold, and LightThreshold drives the fallback
// watering rule when no remote decision is trusted.
//
// No ordering between SoilDry and SoilWet is enforced. An inverted pair is a
// misconfiguration the clamp absorbs rather than an error.
type Calibration struct {
	LightThreshold int `json:"light_threshold"`
	SoilDry        int `json:"soil_dry"`        // raw value read in bone-dry soil, maps to 0%
	SoilWet        int `json:"soil_wet"`        // raw value read in saturated soil, maps to 100%
	ReservoirEmpty int `json:"reservoir_empty"` // raw level at or below which the reservoir is empty
}

// ClampRaw clamps a value into the legal raw sensor range. Out-of-range
// configuration input is corrected silently, never rejected.
func ClampRaw(v int) int {
	if v < RawMin {
		return RawMin
	}
	if v > RawMax {
		return RawMax
	}
	return v
}

// Validate checks that all calibration fields lie in the raw sensor domain.
func (c *Calibration) Validate() error {
	if c.LightThreshold < RawMin || c.LightThreshold > RawMax {
		return errors.New("light threshold must be within the raw sensor range")
	}
	if c.SoilDry < RawMin || c.SoilDry > RawMax {
		return errors.New("soil dry reference must be within the raw sensor range")
	}
	if c.SoilWet < RawMin || c.SoilWet > RawMax {
		return errors.New("soil wet reference must be within the raw sensor range")
	}
	if c.ReservoirEmpty < RawMin || c.ReservoirEmpty > RawMax {
		return errors.New("reservoir empty threshold must be within the raw sensor range")
	}
	return nil
}
