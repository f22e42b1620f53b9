// Package handsfree ties TTS completion, recognition completion, and
// message submission into a continuous voice-conversation loop. Its one
// job is deciding when the microphone may safely reopen.
package handsfree

import (
	"log/slog"
	"sync"
	"time"

	"voiceloop/pkg/host"
	"voiceloop/pkg/platform"
	"voiceloop/pkg/session"
)

// Listener is the recognition subsystem as seen from the loop.
type Listener interface {
	Recognizing() bool
	Start() error
	StopListening()
}

// Speech exposes the TTS subsystem's cached speaking flag for the stuck
// flag self-heal.
type Speech interface {
	Speaking() bool
	ClearSpeaking()
}

// Config is the static hands-free configuration.
type Config struct {
	RestartDelay time.Duration // default 1500ms
}

// Deps are the collaborators the orchestrator consumes.
type Deps struct {
	Session *session.Session
	Bus     *host.Bus
	Synth   platform.Synthesizer
	Control session.Control
	Logger  *slog.Logger
}

// Orchestrator is the hands-free restart scheduler. A single timer slot
// holds the pending restart; scheduling a new one always cancels the old,
// so at most one restart is ever pending.
type Orchestrator struct {
	cfg     Config
	sess    *session.Session
	bus     *host.Bus
	synth   platform.Synthesizer
	control session.Control
	logger  *slog.Logger

	mu       sync.Mutex
	listener Listener
	speech   Speech
	enabled  bool
	waiting  bool
	timer    *time.Timer
}

// New creates the orchestrator and subscribes it to the speech lifecycle
// events. Attach must be called before the loop is enabled.
func New(cfg Config, d Deps) *Orchestrator {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = 1500 * time.Millisecond
	}
	control := d.Control
	if control == nil {
		control = session.NullControl{}
	}
	o := &Orchestrator{
		cfg:     cfg,
		sess:    d.Session,
		bus:     d.Bus,
		synth:   d.Synth,
		control: control,
		logger:  d.Logger.With("component", "handsfree"),
	}

	// Speech starting means the speaker owns the audio path; any pending
	// mic restart is stale.
	d.Bus.On(host.EventTTSStart, func(any) { o.CancelRestart() })

	// Every terminal speech outcome resolves a pending wait: the reply was
	// spoken, failed, or carried nothing speakable.
	d.Bus.On(host.EventTTSEnd, func(any) { o.speechDone() })
	d.Bus.On(host.EventTTSError, func(any) { o.speechDone() })
	d.Bus.On(host.EventTTSSkipped, func(any) { o.speechDone() })

	return o
}

// Attach wires the recognition subsystem and the TTS speaking flag in.
func (o *Orchestrator) Attach(listener Listener, speech Speech) {
	o.mu.Lock()
	o.listener = listener
	o.speech = speech
	o.mu.Unlock()
}

// Enabled reports whether the loop is on.
func (o *Orchestrator) Enabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enabled
}

// Waiting reports whether a submitted utterance still awaits its spoken
// reply.
func (o *Orchestrator) Waiting() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.waiting
}

// SetWaiting records whether a reply is outstanding.
func (o *Orchestrator) SetWaiting(v bool) {
	o.mu.Lock()
	o.waiting = v
	o.mu.Unlock()
}

// PendingRestart reports whether a restart is currently scheduled.
func (o *Orchestrator) PendingRestart() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.timer != nil
}

// SetEnabled toggles the loop. Enabling while idle and not awaiting a
// reply opens the microphone immediately; disabling stops any active
// recognition and cancels the pending restart.
func (o *Orchestrator) SetEnabled(on bool) {
	o.mu.Lock()
	o.enabled = on
	listener := o.listener
	waiting := o.waiting
	if !on {
		o.waiting = false
		o.stopTimerLocked()
	}
	o.mu.Unlock()
	o.RefreshControl()

	if listener == nil {
		return
	}
	if on {
		if !waiting && o.canRestart() {
			if err := listener.Start(); err != nil {
				o.logger.Warn("start on enable failed", "error", err)
			}
		}
		return
	}
	listener.StopListening()
}

// CancelRestart drops the pending restart, if any.
func (o *Orchestrator) CancelRestart() {
	o.mu.Lock()
	o.stopTimerLocked()
	o.mu.Unlock()
}

// SafeRestart schedules a restart after delay (the configured default when
// delay <= 0). The schedule is advisory: preconditions are re-validated
// when the timer fires, and a restart that no longer applies is silently
// abandoned.
func (o *Orchestrator) SafeRestart(delay time.Duration) {
	o.mu.Lock()
	o.stopTimerLocked()
	if !o.enabled {
		o.mu.Unlock()
		return
	}
	if delay <= 0 {
		delay = o.cfg.RestartDelay
	}
	o.timer = time.AfterFunc(delay, o.fire)
	o.mu.Unlock()
}

func (o *Orchestrator) fire() {
	o.mu.Lock()
	o.timer = nil
	listener := o.listener
	o.mu.Unlock()

	if listener == nil || !o.canRestart() {
		return
	}
	if err := listener.Start(); err != nil {
		o.logger.Warn("scheduled restart failed", "error", err)
	}
}

// canRestart checks the loop is on, the microphone is closed, and the
// speaker is idle. If the cached speaking flag is set while the engine
// reports neither speaking nor pending, the flag is cleared first: a
// missed end callback must not wedge the loop forever.
func (o *Orchestrator) canRestart() bool {
	o.mu.Lock()
	enabled := o.enabled
	listener := o.listener
	speech := o.speech
	o.mu.Unlock()

	if !enabled || listener == nil {
		return false
	}
	if listener.Recognizing() {
		return false
	}

	engineIdle := !o.synth.Speaking() && !o.synth.Pending()
	if speech != nil && speech.Speaking() {
		if !engineIdle {
			return false
		}
		o.logger.Debug("clearing stuck speaking flag")
		speech.ClearSpeaking()
	}
	return engineIdle
}

func (o *Orchestrator) speechDone() {
	o.mu.Lock()
	resolve := o.enabled && o.waiting
	if resolve {
		o.waiting = false
	}
	o.mu.Unlock()
	if resolve {
		o.SafeRestart(0)
	}
}

func (o *Orchestrator) stopTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// RefreshControl renders the hands-free checkbox's visual state.
func (o *Orchestrator) RefreshControl() {
	switch {
	case !o.sess.AddonActive():
		o.control.Apply(session.Unavailable("voice addon unavailable"))
	case o.Enabled():
		o.control.Apply(session.Engaged())
	default:
		o.control.Apply(session.Ready())
	}
}
