package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"voiceloop/pkg/hub"
	"voiceloop/pkg/platform"
)

// Envelope types crossing the bridge socket. Outbound are commands to
// the browser; inbound are the browser's lifecycle events.
const (
	msgSynthSpeak  = "synth.speak"
	msgSynthCancel = "synth.cancel"
	msgRecStart    = "rec.start"
	msgRecStop     = "rec.stop"
	msgRecAbort    = "rec.abort"

	msgSynthEvent  = "synth.event"
	msgSynthVoices = "synth.voices"
	msgRecResult   = "rec.result"
	msgRecEnd      = "rec.end"
	msgRecError    = "rec.error"
	msgGesture     = "gesture"
	msgAddon       = "addon"
	msgInterrupt   = "interrupt"
)

type speakCmd struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
}

type recStartCmd struct {
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interim_results"`
	Language       string `json:"language"`
}

type synthEvent struct {
	ID    string `json:"id"`
	Event string `json:"event"` // start, end, error, pause, resume
	Code  string `json:"code,omitempty"`
}

type voicesEvent struct {
	Names []string `json:"names"`
}

type recResultEvent struct {
	Transcript string `json:"transcript"`
	Final      bool   `json:"final"`
}

type recErrorEvent struct {
	Code string `json:"code"`
}

type addonEvent struct {
	Active bool `json:"active"`
}

type interruptEvent struct {
	Source string `json:"source"` // document, input
}

// Bridge implements the speech synthesizer and recognizer ports on top
// of a websocket to the browser, which owns the actual Web Speech API
// objects. Commands go out as envelopes; lifecycle events come back in.
type Bridge struct {
	hub    *hub.Hub
	logger *slog.Logger

	mu          sync.Mutex
	current     *platform.Utterance
	utteranceID string
	speaking    bool
	pending     bool
	voices      []string

	opts     platform.RecognizerOptions
	onResult func(transcript string, final bool)
	onEnd    func()
	onError  func(code string)

	// Application hooks for browser-originated signals.
	OnGesture    func()
	OnAddonState func(active bool)
	OnInterrupt  func(source string)
}

// NewBridge creates the bridge on its own hub. The hub must be started
// with Run by the server.
func NewBridge(logger *slog.Logger) *Bridge {
	b := &Bridge{
		hub:    hub.New("bridge", logger),
		logger: logger.With("component", "bridge"),
	}
	b.hub.OnMessage(b.handleInbound)
	b.hub.OnDisconnect(b.handleDisconnect)
	return b
}

// Hub exposes the bridge hub so the server can run it and attach
// websocket clients.
func (b *Bridge) Hub() *hub.Hub { return b.hub }

// Connected reports whether at least one browser is attached.
func (b *Bridge) Connected() bool { return b.hub.ClientCount() > 0 }

// Speak sends the utterance to the browser. With no browser attached the
// utterance fails immediately through its error callback.
func (b *Bridge) Speak(u *platform.Utterance) {
	if !b.Connected() {
		b.logger.Warn("speak with no browser attached")
		if u.OnError != nil {
			u.OnError("synthesis-unavailable")
		}
		return
	}

	id := uuid.NewString()
	b.mu.Lock()
	b.current = u
	b.utteranceID = id
	b.pending = true
	b.mu.Unlock()

	b.hub.BroadcastEnvelope(msgSynthSpeak, speakCmd{
		ID:    id,
		Text:  u.Text,
		Voice: u.Voice,
		Rate:  u.Rate,
		Pitch: u.Pitch,
	})
}

// Cancel discards queued and in-flight speech.
func (b *Bridge) Cancel() {
	b.mu.Lock()
	b.speaking = false
	b.pending = false
	b.mu.Unlock()
	b.hub.BroadcastEnvelope(msgSynthCancel, nil)
}

// Speaking mirrors the browser engine's speaking flag.
func (b *Bridge) Speaking() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speaking
}

// Pending mirrors the browser engine's pending flag.
func (b *Bridge) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// VoiceNames returns the voice list the browser last reported.
func (b *Bridge) VoiceNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.voices))
	copy(out, b.voices)
	return out
}

// SetOptions stores the recognizer options for the next Start.
func (b *Bridge) SetOptions(opts platform.RecognizerOptions) {
	b.mu.Lock()
	b.opts = opts
	b.mu.Unlock()
}

// Start opens the browser microphone.
func (b *Bridge) Start() error {
	if !b.Connected() {
		return fmt.Errorf("bridge: no browser attached")
	}
	b.mu.Lock()
	opts := b.opts
	b.mu.Unlock()
	return b.hub.BroadcastEnvelope(msgRecStart, recStartCmd{
		Continuous:     opts.Continuous,
		InterimResults: opts.InterimResults,
		Language:       opts.Language,
	})
}

// Stop gracefully ends recognition; final results may still arrive.
func (b *Bridge) Stop() {
	b.hub.BroadcastEnvelope(msgRecStop, nil)
}

// Abort ends recognition discarding any pending results.
func (b *Bridge) Abort() {
	b.hub.BroadcastEnvelope(msgRecAbort, nil)
}

// OnResult registers the transcript callback.
func (b *Bridge) OnResult(fn func(transcript string, final bool)) {
	b.mu.Lock()
	b.onResult = fn
	b.mu.Unlock()
}

// OnEnd registers the session-over callback.
func (b *Bridge) OnEnd(fn func()) {
	b.mu.Lock()
	b.onEnd = fn
	b.mu.Unlock()
}

// OnError registers the error callback.
func (b *Bridge) OnError(fn func(code string)) {
	b.mu.Lock()
	b.onError = fn
	b.mu.Unlock()
}

func (b *Bridge) handleInbound(data []byte) {
	var env hub.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.logger.Debug("bad bridge message", "error", err)
		return
	}

	switch env.Type {
	case msgSynthEvent:
		var ev synthEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return
		}
		b.handleSynthEvent(ev)

	case msgSynthVoices:
		var ev voicesEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return
		}
		b.mu.Lock()
		b.voices = ev.Names
		b.mu.Unlock()

	case msgRecResult:
		var ev recResultEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return
		}
		b.mu.Lock()
		fn := b.onResult
		b.mu.Unlock()
		if fn != nil {
			fn(ev.Transcript, ev.Final)
		}

	case msgRecEnd:
		b.mu.Lock()
		fn := b.onEnd
		b.mu.Unlock()
		if fn != nil {
			fn()
		}

	case msgRecError:
		var ev recErrorEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return
		}
		b.mu.Lock()
		fn := b.onError
		b.mu.Unlock()
		if fn != nil {
			fn(ev.Code)
		}

	case msgGesture:
		if b.OnGesture != nil {
			b.OnGesture()
		}

	case msgAddon:
		var ev addonEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return
		}
		if b.OnAddonState != nil {
			b.OnAddonState(ev.Active)
		}

	case msgInterrupt:
		var ev interruptEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return
		}
		if b.OnInterrupt != nil {
			b.OnInterrupt(ev.Source)
		}

	default:
		b.logger.Debug("unknown bridge message", "type", env.Type)
	}
}

// handleDisconnect fails the in-flight utterance when the last browser
// goes away. No synth.event will ever arrive for it, and a stale
// speaking/pending mirror would block polling and hands-free restarts.
func (b *Bridge) handleDisconnect(remaining int) {
	if remaining > 0 {
		return
	}
	b.mu.Lock()
	u := b.current
	b.current = nil
	b.utteranceID = ""
	b.speaking = false
	b.pending = false
	b.mu.Unlock()
	if u != nil {
		b.logger.Warn("browser detached mid-utterance")
		if u.OnError != nil {
			u.OnError("connection-lost")
		}
	}
}

// handleSynthEvent routes a browser speech event to the matching
// utterance's callbacks. Events for a superseded utterance are dropped.
func (b *Bridge) handleSynthEvent(ev synthEvent) {
	b.mu.Lock()
	if ev.ID != b.utteranceID || b.current == nil {
		b.mu.Unlock()
		return
	}
	u := b.current
	switch ev.Event {
	case "start":
		b.pending = false
		b.speaking = true
	case "end", "error":
		b.pending = false
		b.speaking = false
		b.current = nil
	}
	b.mu.Unlock()

	switch ev.Event {
	case "start":
		if u.OnStart != nil {
			u.OnStart()
		}
	case "end":
		if u.OnEnd != nil {
			u.OnEnd()
		}
	case "error":
		if u.OnError != nil {
			u.OnError(ev.Code)
		}
	case "pause":
		if u.OnPause != nil {
			u.OnPause()
		}
	case "resume":
		if u.OnResume != nil {
			u.OnResume()
		}
	}
}

var (
	_ platform.Synthesizer = (*Bridge)(nil)
	_ platform.Recognizer  = (*Bridge)(nil)
)
