package web

import (
	"time"

	"voiceloop/pkg/hub"
	"voiceloop/pkg/session"
)

type controlUpdate struct {
	Name  string               `json:"name"`
	State session.ControlState `json:"state"`
}

type indicatorUpdate struct {
	Name string `json:"name"`
	On   bool   `json:"on"`
}

// Control mirrors a toggle's visual state to every connected dashboard.
type Control struct {
	hub  *hub.Hub
	name string
}

// NewControl creates a control bound to the status hub under name.
func NewControl(h *hub.Hub, name string) *Control {
	return &Control{hub: h, name: name}
}

func (c *Control) Apply(st session.ControlState) {
	c.hub.BroadcastEnvelope("control", controlUpdate{Name: c.name, State: st})
}

// Indicator mirrors an on/off lamp to every connected dashboard.
type Indicator struct {
	hub  *hub.Hub
	name string
}

// NewIndicator creates an indicator bound to the status hub under name.
func NewIndicator(h *hub.Hub, name string) *Indicator {
	return &Indicator{hub: h, name: name}
}

func (i *Indicator) Set(on bool) {
	i.hub.BroadcastEnvelope("indicator", indicatorUpdate{Name: i.name, On: on})
}

type countdownUpdate struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
}

// RecordingIndicator is an Indicator that additionally announces a
// countdown ring when it turns on, which dashboards animate for the
// configured duration.
type RecordingIndicator struct {
	hub       *hub.Hub
	name      string
	countdown time.Duration
}

// NewRecordingIndicator creates the mic lamp with its countdown duration.
func NewRecordingIndicator(h *hub.Hub, name string, countdown time.Duration) *RecordingIndicator {
	return &RecordingIndicator{hub: h, name: name, countdown: countdown}
}

func (i *RecordingIndicator) Set(on bool) {
	i.hub.BroadcastEnvelope("indicator", indicatorUpdate{Name: i.name, On: on})
	if on && i.countdown > 0 {
		i.hub.BroadcastEnvelope("countdown", countdownUpdate{
			Name:       i.name,
			DurationMS: i.countdown.Milliseconds(),
		})
	}
}

var (
	_ session.Control   = (*Control)(nil)
	_ session.Indicator = (*Indicator)(nil)
	_ session.Indicator = (*RecordingIndicator)(nil)
)
