// Package sensor converts raw board readings into calibrated domain values.
//
// Soil moisture is mapped linearly from the configured dry/wet reference
// points onto a percentage and clamped into [0,100]; real probes drift well
// outside their calibration bounds, so the clamp is load-bearing, not
// defensive fluff inherited from a datasheet. Reservoir presence is a
// single-sided threshold with no hysteresis: every tick is judged on its own,
// and rapid flapping near the boundary is a known, accepted behavior.
package sensor

import (
	"time"

	"github.com/udare/waterctl/internal/hal"
	"github.com/udare/waterctl/internal/logger"
	"github.com/udare/waterctl/internal/models"
)

// SoilPercent maps a raw soil sample onto [0,100] using the linear
// calibration dry→0%, wet→100%. The result is clamped for any input,
// including samples outside the calibration interval and an inverted
// (dry < wet or dry > wet, either way) calibration pair.
func SoilPercent(raw, dry, wet int) int {
	if dry == wet {
		// Degenerate calibration. Saturated at or past the single reference
		// point, dry below it.
		if raw >= wet {
			return 100
		}
		return 0
	}

	pct := (raw - dry) * 100 / (wet - dry)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// ReservoirPresent reports whether the reservoir holds water. A raw level at
// or below the empty threshold means empty.
func ReservoirPresent(raw, emptyThreshold int) bool {
	return raw > emptyThreshold
}

// Read performs one sampling tick against the board and returns a normalized
// snapshot. It never fails: an analog read error degrades that field to zero
// raw (logged), and a climate read error marks temperature and humidity
// unavailable rather than coercing them.
func Read(board hal.Board, cal models.Calibration) models.Snapshot {
	snap := models.Snapshot{Timestamp: time.Now()}

	light, err := board.ReadLight()
	if err != nil {
		logger.Warn("light read failed: %v", err)
	}
	snap.Light = light

	soil, err := board.ReadSoil()
	if err != nil {
		logger.Warn("soil read failed: %v", err)
	}
	snap.SoilRaw = soil
	snap.SoilPercent = SoilPercent(soil, cal.SoilDry, cal.SoilWet)

	res, err := board.ReadReservoir()
	if err != nil {
		logger.Warn("reservoir read failed: %v", err)
	}
	snap.ReservoirRaw = res
	snap.ReservoirPresent = ReservoirPresent(res, cal.ReservoirEmpty)

	temp, hum, err := board.ReadClimate()
	if err != nil {
		logger.Debug("climate read unavailable: %v", err)
	} else {
		snap.Temperature = temp
		snap.TemperatureOK = true
		snap.Humidity = hum
		snap.HumidityOK = true
	}

	return snap
}
