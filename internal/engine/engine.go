// Package engine implements the watering decision engine: the AUTO/MANUAL
// mode state machine, the prediction trust-then-fallback policy, and the
// reservoir safety interlock that gates every pump activation.
//
// The engine owns all mutable controller state (mode, calibration, latest
// snapshot, prediction state) behind a single mutex. The sampling loop and
// the HTTP control surface run in separate goroutines; the mutex makes every
// state transition atomic with respect to observers, and a control write is
// fully applied, including a forced interlock-checked recomputation and pump
// actuation, before its response is produced.
package engine

import (
	"math"
	"sync"
	"time"

	"github.com/udare/waterctl/internal/hal"
	"github.com/udare/waterctl/internal/logger"
	"github.com/udare/waterctl/internal/metrics"
	"github.com/udare/waterctl/internal/models"
)

// ModeState is the operator-facing mode: ManualOverride false means AUTO,
// true means MANUAL with ManualState as the desired pump state.
type ModeState struct {
	ManualOverride bool
	ManualState    bool
}

// Decide computes the pump command from one tick's worth of state.
//
// The reservoir interlock has absolute priority: no mode, prediction, or
// calibration can switch the pump on against an empty reservoir. With water
// present, MANUAL mode follows the operator verbatim; AUTO trusts the latest
// remote decision while the most recent attempt succeeded, and otherwise
// falls back to the light-threshold rule.
func Decide(mode ModeState, pred models.Prediction, snap models.Snapshot, cal models.Calibration) bool {
	if !snap.ReservoirPresent {
		return false
	}
	if mode.ManualOverride {
		return mode.ManualState
	}
	if pred.HaveDecision && pred.OK {
		return pred.ShouldWater
	}
	return snap.Light < cal.LightThreshold
}

// Engine holds the controller state and drives the pump through the board.
type Engine struct {
	mu    sync.Mutex
	board hal.Board

	mode ModeState
	pred models.Prediction
	cal  models.Calibration
	snap models.Snapshot
	pump bool

	onPumpChange      func(on bool, snap models.Snapshot)
	onReservoirChange func(present bool)
}

// Option configures optional engine behavior.
type Option func(*Engine)

// WithPumpListener registers a callback fired on pump state transitions,
// outside the engine lock.
func WithPumpListener(fn func(on bool, snap models.Snapshot)) Option {
	return func(e *Engine) { e.onPumpChange = fn }
}

// WithReservoirListener registers a callback fired when reservoir presence
// flips, outside the engine lock.
func WithReservoirListener(fn func(present bool)) Option {
	return func(e *Engine) { e.onReservoirChange = fn }
}

// New creates an engine in the initial state: AUTO mode, pump off, no
// prediction ever received. The first snapshot arrives with the first
// sampling tick; until then the reservoir reads as absent and the pump
// stays off.
func New(board hal.Board, cal models.Calibration, opts ...Option) *Engine {
	e := &Engine{
		board: board,
		cal:   cal,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UpdateSnapshot stores the tick's snapshot, recomputes the pump command,
// and applies it to the board.
func (e *Engine) UpdateSnapshot(snap models.Snapshot) {
	e.mu.Lock()
	prevPresent := e.snap.ReservoirPresent
	hadSnap := !e.snap.Timestamp.IsZero()
	e.snap = snap
	pumpChanged, pumpOn := e.evaluateLocked()
	e.mu.Unlock()

	metrics.SoilPercent.Set(float64(snap.SoilPercent))
	metrics.ReservoirPresent.Set(boolGauge(snap.ReservoirPresent))
	if snap.TemperatureOK {
		metrics.Temperature.Set(snap.Temperature)
	}

	if hadSnap && prevPresent != snap.ReservoirPresent && e.onReservoirChange != nil {
		e.onReservoirChange(snap.ReservoirPresent)
	}
	e.notifyPump(pumpChanged, pumpOn, snap)
}

// RecordPrediction updates the prediction state after one remote attempt.
// A valid decision latches HaveDecision; a failed attempt flips OK false and
// overwrites the message but preserves the cached decision.
func (e *Engine) RecordPrediction(shouldWater bool, msg string, err error) {
	e.mu.Lock()
	if err == nil {
		e.pred.HaveDecision = true
		e.pred.ShouldWater = shouldWater
		e.pred.OK = true
	} else {
		e.pred.OK = false
	}
	e.pred.Message = msg
	pumpChanged, pumpOn := e.evaluateLocked()
	snap := e.snap
	e.mu.Unlock()

	e.notifyPump(pumpChanged, pumpOn, snap)
}

// Apply performs a partial control update. The threshold is clamped into the
// legal raw range rather than rejected. The pump command is recomputed and
// forced onto the board before the refreshed status is returned, so a caller
// never observes accepted input with a stale interlock evaluation.
func (e *Engine) Apply(req models.ControlRequest) Status {
	e.mu.Lock()
	if req.ManualMode != nil {
		e.mode.ManualOverride = *req.ManualMode
	}
	if req.ManualState != nil {
		e.mode.ManualState = *req.ManualState
	}
	if req.LightThreshold != nil {
		e.cal.LightThreshold = models.ClampRaw(*req.LightThreshold)
	}
	pumpChanged, pumpOn := e.evaluateLocked()
	st := e.statusLocked()
	snap := e.snap
	e.mu.Unlock()

	logger.Info("control applied: manual=%v state=%v threshold=%d pump=%v",
		st.ManualMode, st.ManualState, st.LightThreshold, st.Pump)
	e.notifyPump(pumpChanged, pumpOn, snap)
	return st
}

// Status returns the full observable state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

// ManualMode reports whether the operator is driving the pump. The loop uses
// this to suppress prediction-cadence requests in MANUAL mode.
func (e *Engine) ManualMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode.ManualOverride
}

// Snapshot returns the latest sensor snapshot.
func (e *Engine) Snapshot() models.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Calibration returns the current calibration parameters.
func (e *Engine) Calibration() models.Calibration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cal
}

// evaluateLocked recomputes the pump command and forces it onto the board.
// The command is always reapplied, never trusted from the previous tick.
// Returns whether the state transitioned and the new state.
func (e *Engine) evaluateLocked() (changed, on bool) {
	on = Decide(e.mode, e.pred, e.snap, e.cal)
	changed = on != e.pump
	e.pump = on
	if err := e.board.SetPump(on); err != nil {
		logger.Error("pump actuation failed: %v", err)
		metrics.PumpErrors.Inc()
	}
	metrics.PumpOn.Set(boolGauge(on))
	return changed, on
}

func (e *Engine) notifyPump(changed, on bool, snap models.Snapshot) {
	if !changed {
		return
	}
	logger.Info("pump %s (reservoir=%v manual=%v)", onOff(on), snap.ReservoirPresent, e.ManualMode())
	metrics.PumpTransitions.Inc()
	if e.onPumpChange != nil {
		e.onPumpChange(on, snap)
	}
}

// Status is the full observable state exposed by the control surface.
// Temperature and humidity are nil when the climate sensor could not produce
// a reading this tick; JSON encodes them as null, the wire sentinel for
// "not a number".
type Status struct {
	Light             int       `json:"light"`
	Temperature       *float64  `json:"temperature"`
	Humidity          *float64  `json:"humidity"`
	SoilPercent       int       `json:"soil_percent"`
	SoilRaw           int       `json:"soil_raw"`
	Reservoir         bool      `json:"reservoir"`
	ReservoirRaw      int       `json:"reservoir_raw"`
	Pump              bool      `json:"pump"`
	ManualMode        bool      `json:"manual_mode"`
	ManualState       bool      `json:"manual_state"`
	LightThreshold    int       `json:"light_threshold"`
	PredictionOK      bool      `json:"prediction_ok"`
	ShouldWater       bool      `json:"should_water"`
	PredictionMessage string    `json:"prediction_message"`
	Timestamp         time.Time `json:"timestamp"`
}

func (e *Engine) statusLocked() Status {
	st := Status{
		Light:             e.snap.Light,
		SoilPercent:       e.snap.SoilPercent,
		SoilRaw:           e.snap.SoilRaw,
		Reservoir:         e.snap.ReservoirPresent,
		ReservoirRaw:      e.snap.ReservoirRaw,
		Pump:              e.pump,
		ManualMode:        e.mode.ManualOverride,
		ManualState:       e.mode.ManualState,
		LightThreshold:    e.cal.LightThreshold,
		PredictionOK:      e.pred.OK,
		ShouldWater:       e.pred.ShouldWater,
		PredictionMessage: e.pred.Message,
		Timestamp:         e.snap.Timestamp,
	}
	if e.snap.TemperatureOK {
		t := math.Round(e.snap.Temperature*10) / 10
		st.Temperature = &t
	}
	if e.snap.HumidityOK {
		h := math.Round(e.snap.Humidity)
		st.Humidity = &h
	}
	return st
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
