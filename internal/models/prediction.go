package models

// Prediction is the latest remote scoring state. The zero value is the boot
// state: no decision ever received, last attempt not successful, no message.
//
// HaveDecision latches true on the first valid decision and is never cleared;
// a stale decision remains usable as long as OK reports the most recent
// attempt succeeded. A failed attempt flips OK false and overwrites Message
// but leaves ShouldWater and HaveDecision untouched.
type Prediction struct {
	HaveDecision bool   `json:"have_decision"`
	ShouldWater  bool   `json:"should_water"`
	OK           bool   `json:"ok"`
	Message      string `json:"message"`
}

// ControlRequest is a partial update to the engine's operator-facing state.
// Nil fields are left untouched. LightThreshold is clamped into the raw
// sensor range before being stored.
type ControlRequest struct {
	ManualMode     *bool `json:"manual_mode,omitempty"`
	ManualState    *bool `json:"manual_state,omitempty"`
	LightThreshold *int  `json:"light_threshold,omitempty"`
}
