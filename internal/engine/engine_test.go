package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/udare/waterctl/internal/hal"
	"github.com/udare/waterctl/internal/models"
)

func testCalibration() models.Calibration {
	return models.Calibration{
		LightThreshold: 800,
		SoilDry:        3200,
		SoilWet:        1200,
		ReservoirEmpty: 300,
	}
}

func snapshot(light, reservoirRaw int, present bool) models.Snapshot {
	return models.Snapshot{
		Light:            light,
		ReservoirRaw:     reservoirRaw,
		ReservoirPresent: present,
		Timestamp:        time.Now(),
	}
}

func TestDecideInterlockAbsolutePriority(t *testing.T) {
	// For every mode and prediction combination, an empty reservoir forces
	// the pump off.
	modes := []ModeState{
		{ManualOverride: false},
		{ManualOverride: true, ManualState: false},
		{ManualOverride: true, ManualState: true},
	}
	preds := []models.Prediction{
		{},
		{HaveDecision: true, ShouldWater: true, OK: true},
		{HaveDecision: true, ShouldWater: true, OK: false},
	}

	for _, mode := range modes {
		for _, pred := range preds {
			snap := snapshot(0, 100, false) // dark enough to trigger fallback, reservoir empty
			if Decide(mode, pred, snap, testCalibration()) {
				t.Errorf("pump on with empty reservoir (mode=%+v pred=%+v)", mode, pred)
			}
		}
	}
}

func TestDecideManualFidelity(t *testing.T) {
	// With water present, MANUAL mode follows the operator verbatim, no
	// matter what the prediction state says.
	preds := []models.Prediction{
		{},
		{HaveDecision: true, ShouldWater: true, OK: true},
		{HaveDecision: true, ShouldWater: false, OK: true},
		{HaveDecision: true, ShouldWater: true, OK: false},
	}

	for _, pred := range preds {
		for _, desired := range []bool{true, false} {
			mode := ModeState{ManualOverride: true, ManualState: desired}
			got := Decide(mode, pred, snapshot(1000, 500, true), testCalibration())
			if got != desired {
				t.Errorf("manual mode: got pump=%v, want %v (pred=%+v)", got, desired, pred)
			}
		}
	}
}

func TestDecideAutoTrustThenFallback(t *testing.T) {
	tests := []struct {
		name string
		pred models.Prediction
		snap models.Snapshot
		want bool
	}{
		{
			name: "no decision ever, dark, fallback waters",
			pred: models.Prediction{},
			snap: snapshot(600, 500, true),
			want: true, // 600 < 800
		},
		{
			name: "no decision ever, bright, fallback holds",
			pred: models.Prediction{},
			snap: snapshot(900, 500, true),
			want: false,
		},
		{
			name: "trusted decision overrides fallback",
			pred: models.Prediction{HaveDecision: true, ShouldWater: false, OK: true},
			snap: snapshot(100, 500, true), // fallback would water
			want: false,
		},
		{
			name: "trusted decision waters regardless of light",
			pred: models.Prediction{HaveDecision: true, ShouldWater: true, OK: true},
			snap: snapshot(4000, 500, true),
			want: true,
		},
		{
			name: "stale decision with failed latest attempt falls back",
			pred: models.Prediction{HaveDecision: true, ShouldWater: false, OK: false},
			snap: snapshot(600, 500, true),
			want: true, // fallback rule, not the cached false
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(ModeState{}, tt.pred, tt.snap, testCalibration())
			if got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecideScenarios(t *testing.T) {
	cal := testCalibration() // reservoir empty threshold 300, light threshold 800

	// Scenario A: raw 100 <= threshold 300 means empty, pump off even with
	// manual intent to water.
	a := Decide(
		ModeState{ManualOverride: true, ManualState: true},
		models.Prediction{},
		snapshot(600, 100, false),
		cal,
	)
	if a {
		t.Error("scenario A: pump must be off with reservoir raw 100 <= 300")
	}

	// Scenario B: AUTO, no prediction, light 600 < 800, reservoir 500 > 300.
	b := Decide(ModeState{}, models.Prediction{}, snapshot(600, 500, true), cal)
	if !b {
		t.Error("scenario B: expected fallback to water at light 600 < threshold 800")
	}

	// Scenario C: trusted should_water=false beats a fallback that would water.
	c := Decide(
		ModeState{},
		models.Prediction{HaveDecision: true, ShouldWater: false, OK: true},
		snapshot(100, 500, true),
		cal,
	)
	if c {
		t.Error("scenario C: trusted prediction false must override the fallback")
	}
}

func TestApplyThresholdClamp(t *testing.T) {
	board := hal.NewMock()
	eng := New(board, testCalibration())

	low := -50
	st := eng.Apply(models.ControlRequest{LightThreshold: &low})
	if st.LightThreshold != 0 {
		t.Errorf("threshold -50 should clamp to 0, got %d", st.LightThreshold)
	}

	high := 9000
	st = eng.Apply(models.ControlRequest{LightThreshold: &high})
	if st.LightThreshold != 4095 {
		t.Errorf("threshold 9000 should clamp to 4095, got %d", st.LightThreshold)
	}
}

func TestApplyForcesPumpBeforeReturn(t *testing.T) {
	board := hal.NewMock()
	eng := New(board, testCalibration())
	eng.UpdateSnapshot(snapshot(1000, 500, true))

	manual, on := true, true
	st := eng.Apply(models.ControlRequest{ManualMode: &manual, ManualState: &on})

	if !st.Pump {
		t.Error("returned status must reflect the recomputed pump command")
	}
	if !board.PumpOn() {
		t.Error("pump must be physically applied before Apply returns")
	}

	// Switching back to AUTO with bright light turns the pump off again.
	auto := false
	st = eng.Apply(models.ControlRequest{ManualMode: &auto})
	if st.Pump || board.PumpOn() {
		t.Error("expected pump off after returning to AUTO under bright light")
	}
}

func TestApplyPartialUpdate(t *testing.T) {
	board := hal.NewMock()
	eng := New(board, testCalibration())

	manual := true
	eng.Apply(models.ControlRequest{ManualMode: &manual})

	// A threshold-only write must not disturb the mode.
	threshold := 1000
	st := eng.Apply(models.ControlRequest{LightThreshold: &threshold})
	if !st.ManualMode {
		t.Error("threshold-only write must leave manual mode untouched")
	}
	if st.LightThreshold != 1000 {
		t.Errorf("expected threshold 1000, got %d", st.LightThreshold)
	}
}

func TestRecordPredictionStateMachine(t *testing.T) {
	board := hal.NewMock()
	eng := New(board, testCalibration())
	eng.UpdateSnapshot(snapshot(600, 500, true))

	// Boot state: no decision, fallback waters at light 600 < 800.
	st := eng.Status()
	if st.PredictionOK || st.ShouldWater {
		t.Error("boot prediction state must be zero")
	}
	if !st.Pump {
		t.Error("expected fallback to water before any prediction")
	}

	// A successful decision is trusted immediately.
	eng.RecordPrediction(false, "OK", nil)
	st = eng.Status()
	if !st.PredictionOK || st.ShouldWater {
		t.Errorf("expected ok=true should_water=false, got ok=%v water=%v", st.PredictionOK, st.ShouldWater)
	}
	if st.Pump {
		t.Error("trusted should_water=false must hold the pump off")
	}
	if st.PredictionMessage != "OK" {
		t.Errorf("expected message OK, got %q", st.PredictionMessage)
	}

	// A failed attempt flips OK but keeps the cached decision; the engine
	// falls back to the light rule on the next evaluation.
	eng.RecordPrediction(false, "network disconnected", errors.New("link down"))
	st = eng.Status()
	if st.PredictionOK {
		t.Error("failed attempt must clear prediction ok")
	}
	if st.PredictionMessage != "network disconnected" {
		t.Errorf("expected failure message, got %q", st.PredictionMessage)
	}
	if !st.Pump {
		t.Error("expected fallback rule to water at light 600 after prediction failure")
	}

	// Recovery restores trust in the fresh decision.
	eng.RecordPrediction(true, "OK", nil)
	st = eng.Status()
	if !st.PredictionOK || !st.ShouldWater || !st.Pump {
		t.Errorf("expected trusted watering decision after recovery, got %+v", st)
	}
}

func TestPumpListenerFiresOnTransitions(t *testing.T) {
	board := hal.NewMock()
	var events []bool
	eng := New(board, testCalibration(), WithPumpListener(func(on bool, _ models.Snapshot) {
		events = append(events, on)
	}))

	eng.UpdateSnapshot(snapshot(600, 500, true))  // fallback waters: off -> on
	eng.UpdateSnapshot(snapshot(600, 500, true))  // steady: no event
	eng.UpdateSnapshot(snapshot(600, 100, false)) // interlock: on -> off

	want := []bool{true, false}
	if len(events) != len(want) {
		t.Fatalf("expected %d transitions, got %d (%v)", len(want), len(events), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, events[i], want[i])
		}
	}
}

func TestReservoirListener(t *testing.T) {
	board := hal.NewMock()
	var events []bool
	eng := New(board, testCalibration(), WithReservoirListener(func(present bool) {
		events = append(events, present)
	}))

	// The first snapshot establishes the baseline without an event.
	eng.UpdateSnapshot(snapshot(1000, 500, true))
	eng.UpdateSnapshot(snapshot(1000, 100, false))
	eng.UpdateSnapshot(snapshot(1000, 100, false))
	eng.UpdateSnapshot(snapshot(1000, 500, true))

	want := []bool{false, true}
	if len(events) != len(want) {
		t.Fatalf("expected %d reservoir events, got %d (%v)", len(want), len(events), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, events[i], want[i])
		}
	}
}

func TestStatusClimateSentinels(t *testing.T) {
	board := hal.NewMock()
	eng := New(board, testCalibration())

	snap := snapshot(1000, 500, true)
	snap.Temperature = 23.46
	snap.TemperatureOK = true
	snap.Humidity = 55.6
	snap.HumidityOK = true
	eng.UpdateSnapshot(snap)

	st := eng.Status()
	if st.Temperature == nil || *st.Temperature != 23.5 {
		t.Errorf("expected temperature rounded to 23.5, got %v", st.Temperature)
	}
	if st.Humidity == nil || *st.Humidity != 56 {
		t.Errorf("expected humidity rounded to 56, got %v", st.Humidity)
	}

	snap = snapshot(1000, 500, true)
	eng.UpdateSnapshot(snap)
	st = eng.Status()
	if st.Temperature != nil || st.Humidity != nil {
		t.Error("unavailable climate readings must encode as null")
	}
}
