// Package recognition wraps the platform speech recognizer: transcript
// accumulation, auto-submission of voice utterances, interruption
// detection, and per-error-code recovery.
package recognition

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"voiceloop/pkg/host"
	"voiceloop/pkg/platform"
	"voiceloop/pkg/session"
)

// State is the tagged state of the subsystem.
type State int

const (
	StateIdle State = iota
	StateListening
)

// InterruptSource says where an interruption came from; it decides whether
// a hands-free restart is allowed afterwards.
type InterruptSource int

const (
	// InterruptDocument is a click or touch outside the voice controls.
	InterruptDocument InterruptSource = iota
	// InterruptInputField is focus, click, or typing in the chat input.
	InterruptInputField
	// InterruptManualStop is the user toggling the mic off.
	InterruptManualStop
)

// Delay between the recognizer's end event and submitting the transcript.
const submitDelay = 100 * time.Millisecond

// Delay before the generic post-error and post-interruption hands-free
// restart.
const errorRestartDelay = time.Second

// Loop is the hands-free orchestrator as seen from this subsystem.
type Loop interface {
	Enabled() bool
	Waiting() bool
	SetWaiting(bool)
	SafeRestart(delay time.Duration)
	CancelRestart()
	SetEnabled(bool)
}

// Config is the static recognition configuration.
type Config struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

// Deps are the collaborators the subsystem consumes.
type Deps struct {
	Session    *session.Session
	Bus        *host.Bus
	Host       host.Host
	Input      host.Input
	Recognizer platform.Recognizer // nil when the platform lacks recognition
	Control    session.Control
	Indicator  session.Indicator
	Logger     *slog.Logger
}

// Service is the speech recognition subsystem.
type Service struct {
	cfg       Config
	sess      *session.Session
	bus       *host.Bus
	app       host.Host
	input     host.Input
	rec       platform.Recognizer
	control   session.Control
	indicator session.Indicator
	logger    *slog.Logger

	mu         sync.Mutex
	loop       Loop
	state      State
	transcript string
	pending    bool // submission deferred until the end event
	enabled    bool
}

// New creates the subsystem and registers the recognizer callbacks. The
// hands-free loop is attached afterwards via SetLoop.
func New(cfg Config, d Deps) *Service {
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	control := d.Control
	if control == nil {
		control = session.NullControl{}
	}
	indicator := d.Indicator
	if indicator == nil {
		indicator = session.NullIndicator{}
	}
	s := &Service{
		cfg:       cfg,
		sess:      d.Session,
		bus:       d.Bus,
		app:       d.Host,
		input:     d.Input,
		rec:       d.Recognizer,
		control:   control,
		indicator: indicator,
		logger:    d.Logger.With("component", "recognition"),
		enabled:   d.Recognizer != nil,
	}
	if s.rec != nil {
		s.rec.OnResult(s.handleResult)
		s.rec.OnEnd(s.handleEnd)
		s.rec.OnError(s.handleError)
	}
	// The assistant's own voice must never reach the microphone.
	d.Bus.On(host.EventTTSStart, func(any) {
		if s.Recognizing() {
			s.rec.Stop()
		}
	})
	return s
}

// SetLoop attaches the hands-free orchestrator. Must be called before any
// recognition starts.
func (s *Service) SetLoop(loop Loop) {
	s.mu.Lock()
	s.loop = loop
	s.mu.Unlock()
}

// Supported reports whether the platform offers speech recognition.
func (s *Service) Supported() bool { return s.rec != nil }

// Recognizing reports whether the microphone is currently open.
func (s *Service) Recognizing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateListening
}

// Transcript returns the latest accumulated transcript.
func (s *Service) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// Enabled reports whether the feature is allowed at all.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Disable force-stops recognition and marks the feature off. The
// coordinator calls this when the addon goes away.
func (s *Service) Disable() {
	s.mu.Lock()
	s.enabled = false
	active := s.state == StateListening
	s.state = StateIdle
	s.pending = false
	s.mu.Unlock()
	if active && s.rec != nil {
		s.rec.Abort()
	}
	s.indicator.Set(false)
	s.RefreshControl()
}

// Enable re-allows the feature after the addon returns.
func (s *Service) Enable() {
	s.mu.Lock()
	s.enabled = s.rec != nil
	s.mu.Unlock()
	s.RefreshControl()
}

// RefreshControl renders the mic toggle's visual state.
func (s *Service) RefreshControl() {
	switch {
	case !s.Supported():
		s.control.Apply(session.Unavailable("speech recognition not supported"))
	case !s.sess.AddonActive():
		s.control.Apply(session.Unavailable("voice addon unavailable"))
	case s.Recognizing():
		s.control.Apply(session.Engaged())
	default:
		s.control.Apply(session.Ready())
	}
}

// Toggle is the mic button. A manual stop always wins over automation:
// stopping while hands-free is on also turns hands-free off.
func (s *Service) Toggle() {
	if !s.Supported() {
		s.app.ShowToast("Speech recognition is not supported on this platform", 4*time.Second)
		return
	}
	if !s.sess.AddonActive() {
		s.app.ShowToast("Voice features are currently unavailable", 4*time.Second)
		return
	}

	if s.Recognizing() {
		s.rec.Stop()
		if loop := s.getLoop(); loop != nil && loop.Enabled() {
			loop.SetEnabled(false)
		}
		return
	}

	if loop := s.getLoop(); loop != nil {
		loop.CancelRestart()
		loop.SetWaiting(false)
	}
	s.mu.Lock()
	s.transcript = ""
	s.mu.Unlock()
	if err := s.Start(); err != nil {
		s.logger.Warn("recognition start failed", "error", err)
		s.app.ShowToast("Could not start listening", 4*time.Second)
	}
}

// Start opens the microphone. Also used by the hands-free restart path.
func (s *Service) Start() error {
	if s.rec == nil {
		return platform.ErrUnsupported
	}
	if !s.Enabled() || !s.sess.AddonActive() {
		return nil
	}
	if s.Recognizing() {
		return nil
	}
	s.rec.SetOptions(platform.RecognizerOptions{
		Continuous:     s.cfg.Continuous,
		InterimResults: s.cfg.InterimResults,
		Language:       s.cfg.Language,
	})
	if err := s.rec.Start(); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = StateListening
	s.mu.Unlock()
	s.indicator.Set(true)
	s.RefreshControl()
	return nil
}

// StopListening requests a graceful end of the current session, if any.
func (s *Service) StopListening() {
	if s.Recognizing() {
		s.rec.Stop()
	}
}

// NotifyInterruption stops recognition because the user did something else.
// Restart is suppressed when the interruption came from the input field,
// from a manual stop, or while a reply is pending.
func (s *Service) NotifyInterruption(src InterruptSource) {
	if !s.Recognizing() {
		return
	}
	s.rec.Stop()

	loop := s.getLoop()
	if loop == nil || !loop.Enabled() {
		return
	}
	if src == InterruptInputField || src == InterruptManualStop || loop.Waiting() {
		return
	}
	loop.SafeRestart(errorRestartDelay)
}

func (s *Service) getLoop() Loop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// handleResult accumulates interim and final transcript segments. The live
// transcript is mirrored into the input field flagged as voice input so
// interruption detection ignores the write.
func (s *Service) handleResult(transcript string, final bool) {
	s.mu.Lock()
	s.transcript = transcript
	s.mu.Unlock()
	s.input.SetValue(transcript, true)

	if !final {
		return
	}
	loop := s.getLoop()
	if loop != nil && loop.Enabled() {
		s.mu.Lock()
		s.pending = true
		s.mu.Unlock()
		// Submission happens on the end event, not here.
		s.rec.Stop()
		return
	}
	if !s.cfg.Continuous {
		s.rec.Stop()
	}
}

// handleEnd runs when the recognizer reports the session over. A pending
// submission with a non-empty transcript is the sole entry point that
// produces a new TTS poll expectation.
func (s *Service) handleEnd() {
	s.mu.Lock()
	s.state = StateIdle
	pending := s.pending
	s.pending = false
	s.mu.Unlock()
	s.indicator.Set(false)
	s.RefreshControl()
	s.bus.Trigger(host.EventRecognitionEnded, nil)

	loop := s.getLoop()
	if pending {
		text := strings.TrimSpace(s.input.Value())
		if text != "" {
			if loop != nil {
				loop.SetWaiting(true)
			}
			s.app.SetExpectingResponse(true)
			time.AfterFunc(submitDelay, func() {
				if err := s.app.SendMessage(); err != nil {
					s.logger.Warn("message submit failed", "error", err)
					s.app.ShowToast("Could not send your message", 4*time.Second)
					s.app.SetExpectingResponse(false)
					if loop != nil {
						loop.SetWaiting(false)
						loop.SafeRestart(0)
					}
				}
			})
			return
		}
		// Nothing worth sending; fall through to the restart logic.
	}

	if loop != nil && loop.Enabled() && !loop.Waiting() {
		loop.SafeRestart(0)
	}
}

// handleError applies the per-code policy, then the generic non-canceled
// hands-free restart. Both paths share the single restart timer slot, so
// the later call wins; the per-code schedule is deliberately placed last.
func (s *Service) handleError(code string) {
	s.mu.Lock()
	s.state = StateIdle
	s.pending = false
	s.mu.Unlock()
	s.indicator.Set(false)
	s.RefreshControl()

	pol := classifyError(code)
	if !pol.silent {
		s.logger.Debug("recognition error", "code", code)
		s.app.ShowToast(pol.notice, 4*time.Second)
	}
	if code == platform.RecErrCanceled {
		return
	}

	loop := s.getLoop()
	if loop == nil || !loop.Enabled() || loop.Waiting() {
		return
	}
	loop.SafeRestart(errorRestartDelay)
	if pol.restart {
		loop.SafeRestart(pol.restartDelay)
	}
}
