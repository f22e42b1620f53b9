// Package tts polls the latest assistant output and drives the speech
// synthesizer. One poll tick moves through Idle -> Fetching -> one of
// Speaking, skipped, or error; every terminal outcome is reconciled with
// the hands-free loop through bus events so the voice loop never stalls on
// an empty or failed reply.
package tts

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"voiceloop/internal/httpc"
	"voiceloop/pkg/host"
	"voiceloop/pkg/platform"
	"voiceloop/pkg/session"
)

// Phase is the tagged state of the subsystem.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseSpeaking
	PhasePaused
)

// requestTag guards against overlapping polls.
const requestTag = "tts-poll"

// cancelRetryDelay is how long to wait after cancelling pending speech
// before creating the replacement utterance. The engine misbehaves when a
// new utterance is created in the same turn as a cancel.
const cancelRetryDelay = 50 * time.Millisecond

// sentinelPrefixes mark message ids that carry no speakable content. They
// still advance LastMessageID so the same reply is not reprocessed.
var sentinelPrefixes = []string{"empty-", "error-", "no-response"}

// Header names for transport-level message correlation.
const (
	headerMessageID = "X-Message-Id"
	headerTimestamp = "X-Message-Timestamp"
)

// Config is the static TTS configuration.
type Config struct {
	Endpoint      string
	MinimumDelay  time.Duration
	VoicePriority string // exact voice name; silent fallback when absent
	Rate          float64
	Pitch         float64
}

// Deps are the collaborators the subsystem consumes.
type Deps struct {
	Session  *session.Session
	Bus      *host.Bus
	Host     host.Host
	Requests *host.Requests
	Synth    platform.Synthesizer
	Control  session.Control
	Logger   *slog.Logger
}

// Service is the TTS subsystem.
type Service struct {
	cfg     Config
	sess    *session.Session
	bus     *host.Bus
	app     host.Host
	reqs    *host.Requests
	synth   platform.Synthesizer
	control session.Control
	logger  *slog.Logger

	mu             sync.Mutex
	enabled        bool
	phase          Phase
	lastSpokenText string
	lastMessageID  string
	lastTimestamp  string
	lastPlayTime   time.Time
}

// New creates the subsystem. It starts disabled until the coordinator
// enables it.
func New(cfg Config, d Deps) *Service {
	if cfg.Rate == 0 {
		cfg.Rate = 1.0
	}
	if cfg.Pitch == 0 {
		cfg.Pitch = 1.0
	}
	if cfg.MinimumDelay == 0 {
		cfg.MinimumDelay = time.Second
	}
	control := d.Control
	if control == nil {
		control = session.NullControl{}
	}
	return &Service{
		cfg:     cfg,
		sess:    d.Session,
		bus:     d.Bus,
		app:     d.Host,
		reqs:    d.Requests,
		synth:   d.Synth,
		control: control,
		logger:  d.Logger.With("component", "tts"),
	}
}

// Enabled reports whether speech playback is on.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled turns playback on or off. Turning it off cancels any in-flight
// speech.
func (s *Service) SetEnabled(on bool) {
	s.mu.Lock()
	was := s.enabled
	s.enabled = on
	s.mu.Unlock()
	if was && !on {
		s.synth.Cancel()
		s.setPhase(PhaseIdle)
	}
	s.RefreshControl()
}

// Toggle flips the enabled state and returns the new value.
func (s *Service) Toggle() bool {
	s.SetEnabled(!s.Enabled())
	return s.Enabled()
}

// Speaking reports the cached speaking flag. The hands-free self-heal
// clears it via ClearSpeaking when the engine disagrees.
func (s *Service) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseSpeaking
}

// ClearSpeaking forcibly resets a wedged speaking flag. Only the hands-free
// restart check calls this, after confirming the engine is idle.
func (s *Service) ClearSpeaking() {
	s.mu.Lock()
	if s.phase == PhaseSpeaking || s.phase == PhasePaused {
		s.phase = PhaseIdle
	}
	s.mu.Unlock()
}

// LastMessageID returns the id of the last processed reply.
func (s *Service) LastMessageID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMessageID
}

// LastSpokenText returns the sanitized text of the last utterance.
func (s *Service) LastSpokenText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSpokenText
}

// Configured reports whether the poll endpoint is set.
func (s *Service) Configured() bool { return s.cfg.Endpoint != "" }

// RefreshControl renders the toggle's visual state.
func (s *Service) RefreshControl() {
	switch {
	case !s.Configured():
		s.control.Apply(session.Unavailable("no output endpoint configured"))
	case !s.sess.AddonActive():
		s.control.Apply(session.Unavailable("voice addon unavailable"))
	case s.Enabled():
		s.control.Apply(session.Engaged())
	default:
		s.control.Apply(session.Ready())
	}
}

// Poll fetches the latest assistant output and speaks it when it is new.
// Every guard failure is a silent no-op; the next tick tries again.
func (s *Service) Poll(ctx context.Context) {
	if !s.Enabled() || !s.sess.AddonActive() || !s.Configured() {
		return
	}
	if s.synth.Speaking() || s.synth.Pending() {
		return
	}
	s.mu.Lock()
	tooSoon := !s.lastPlayTime.IsZero() && time.Since(s.lastPlayTime) < s.cfg.MinimumDelay
	s.mu.Unlock()
	if tooSoon {
		return
	}
	if !s.reqs.Add(requestTag) {
		return
	}
	defer s.reqs.Remove(requestTag)

	s.setPhase(PhaseFetching)
	id, ts, text, err := s.fetch(ctx)
	if err != nil {
		s.setPhase(PhaseIdle)
		s.logger.Debug("poll failed", "error", err)
		s.reconcileNoContent()
		return
	}

	if !validMessageID(id) {
		s.mu.Lock()
		s.lastMessageID = id
		s.phase = PhaseIdle
		s.mu.Unlock()
		s.reconcileNoContent()
		return
	}

	s.mu.Lock()
	repeat := id == s.lastMessageID
	if !repeat {
		s.lastMessageID = id
		s.lastTimestamp = ts
	}
	s.phase = PhaseIdle
	s.mu.Unlock()
	if repeat {
		return
	}

	// The awaited reply is here. Clear the expectation now so it does not
	// outlive a successfully spoken utterance.
	s.app.SetExpectingResponse(false)
	s.Speak(text)
}

func (s *Service) fetch(ctx context.Context) (id, ts, text string, err error) {
	resp, err := httpc.GetNoStore(ctx, s.cfg.Endpoint, s.sess.ClientID())
	if err != nil {
		return "", "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", "", &httpError{status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", "", err
	}
	return resp.Header.Get(headerMessageID), resp.Header.Get(headerTimestamp), string(body), nil
}

type httpError struct{ status int }

func (e *httpError) Error() string { return http.StatusText(e.status) }

// validMessageID rejects empty ids and the sentinel prefixes the backend
// uses for "no content" and "error" replies.
func validMessageID(id string) bool {
	if id == "" {
		return false
	}
	for _, p := range sentinelPrefixes {
		if strings.HasPrefix(id, p) {
			return false
		}
	}
	return true
}

// reconcileNoContent clears a stale reply expectation and tells the
// hands-free loop the user spoke but got nothing speakable back.
func (s *Service) reconcileNoContent() {
	s.app.SetExpectingResponse(false)
	s.bus.Trigger(host.EventTTSSkipped, nil)
}

// Speak sanitizes and speaks text. Text that cleans to nothing is treated
// exactly like a fetch failure: expectations are cleared and nothing is
// spoken.
func (s *Service) Speak(text string) {
	cleaned := Sanitize(text)
	if cleaned == "" {
		s.reconcileNoContent()
		return
	}

	s.mu.Lock()
	s.lastSpokenText = cleaned
	s.mu.Unlock()

	if s.synth.Speaking() || s.synth.Pending() {
		s.synth.Cancel()
		time.AfterFunc(cancelRetryDelay, func() { s.startUtterance(cleaned) })
		return
	}
	s.startUtterance(cleaned)
}

func (s *Service) startUtterance(text string) {
	u := &platform.Utterance{
		Text:  text,
		Voice: s.pickVoice(),
		Rate:  s.cfg.Rate,
		Pitch: s.cfg.Pitch,
		OnStart: func() {
			s.setPhase(PhaseSpeaking)
			s.bus.Trigger(host.EventTTSStart, nil)
		},
		OnEnd: func() {
			s.setPhase(PhaseIdle)
			s.bus.Trigger(host.EventTTSEnd, nil)
		},
		OnError: func(code string) {
			s.setPhase(PhaseIdle)
			if code == platform.SynthErrCanceled || code == platform.SynthErrInterrupted {
				return
			}
			s.logger.Warn("synthesis error", "code", code)
			s.app.ShowToast("Speech playback failed", 4*time.Second)
			s.bus.Trigger(host.EventTTSError, code)
		},
		OnPause: func() {
			s.setPhase(PhasePaused)
			s.bus.Trigger(host.EventTTSPause, nil)
		},
		OnResume: func() {
			s.setPhase(PhaseSpeaking)
			s.bus.Trigger(host.EventTTSResume, nil)
		},
	}

	s.mu.Lock()
	s.lastPlayTime = time.Now()
	s.mu.Unlock()
	s.synth.Speak(u)
}

// pickVoice resolves the configured voice name against the platform's
// voice list; an absent voice silently falls back to the default.
func (s *Service) pickVoice() string {
	if s.cfg.VoicePriority == "" {
		return ""
	}
	for _, name := range s.synth.VoiceNames() {
		if name == s.cfg.VoicePriority {
			return name
		}
	}
	return ""
}

func (s *Service) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}
