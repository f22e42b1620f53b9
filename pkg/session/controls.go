package session

// ControlState is the visual state of a feature toggle: whether the control
// accepts input, whether the feature is currently engaged, and the reason
// shown when it is unavailable.
type ControlState struct {
	Available bool   `json:"available"`
	Active    bool   `json:"active"`
	Reason    string `json:"reason,omitempty"`
}

// Control is the surface a toggle renders onto. Implementations live in the
// web bridge; NullControl is used when no surface is attached.
type Control interface {
	Apply(ControlState)
}

// Indicator is a boolean surface such as the recording indicator.
type Indicator interface {
	Set(on bool)
}

// Unavailable builds the disabled presentation with a reason.
func Unavailable(reason string) ControlState {
	return ControlState{Available: false, Reason: reason}
}

// Ready builds the enabled, idle presentation.
func Ready() ControlState {
	return ControlState{Available: true}
}

// Engaged builds the enabled, active presentation.
func Engaged() ControlState {
	return ControlState{Available: true, Active: true}
}

// NullControl discards all state updates.
type NullControl struct{}

func (NullControl) Apply(ControlState) {}

// NullIndicator discards all updates.
type NullIndicator struct{}

func (NullIndicator) Set(bool) {}
