// Package coordinator owns cross-cutting lifecycle for the voice
// subsystems: construction, the addon-availability cascade, and the two
// polling loops.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"voiceloop/pkg/handsfree"
	"voiceloop/pkg/host"
	"voiceloop/pkg/platform"
	"voiceloop/pkg/recognition"
	"voiceloop/pkg/session"
	"voiceloop/pkg/soundfx"
	"voiceloop/pkg/tts"
)

// ErrAlreadyInitialized is returned when New is called twice; the
// subsystems are process singletons.
var ErrAlreadyInitialized = errors.New("coordinator: already initialized")

var initialized atomic.Bool

// Config gathers the per-subsystem static configuration plus the two poll
// intervals.
type Config struct {
	TTS         tts.Config
	Sound       soundfx.Config
	Recognition recognition.Config
	HandsFree   handsfree.Config

	TTSPollInterval   time.Duration
	SoundPollInterval time.Duration
}

// Controls are the toggle surfaces, one per feature. Nil entries are
// replaced with null controls.
type Controls struct {
	TTS       session.Control
	Sound     session.Control
	Mic       session.Control
	HandsFree session.Control
	Recording session.Indicator
}

// Deps are the external collaborators handed to the subsystems.
type Deps struct {
	Session    *session.Session
	Bus        *host.Bus
	Host       host.Host
	Input      host.Input // nil gets an in-memory input
	Requests   *host.Requests
	Synth      platform.Synthesizer
	Recognizer platform.Recognizer // nil when unsupported
	Clips      platform.ClipFactory
	Controls   Controls
	Logger     *slog.Logger
}

// Coordinator holds the constructed subsystems and the poll scheduler.
type Coordinator struct {
	cfg    Config
	sess   *session.Session
	app    host.Host
	logger *slog.Logger

	tts   *tts.Service
	sound *soundfx.Service
	rec   *recognition.Service
	loop  *handsfree.Orchestrator

	ttsPolling   bool
	soundPolling bool
}

// New constructs every subsystem once and wires them together. A second
// call is an error.
func New(cfg Config, d Deps) (*Coordinator, error) {
	if !initialized.CompareAndSwap(false, true) {
		return nil, ErrAlreadyInitialized
	}

	logger := d.Logger.With("component", "coordinator")
	if d.Input == nil {
		d.Input = &host.MemoryInput{}
	}

	ttsSvc := tts.New(cfg.TTS, tts.Deps{
		Session:  d.Session,
		Bus:      d.Bus,
		Host:     d.Host,
		Requests: d.Requests,
		Synth:    d.Synth,
		Control:  d.Controls.TTS,
		Logger:   d.Logger,
	})
	soundSvc := soundfx.New(cfg.Sound, soundfx.Deps{
		Session:  d.Session,
		Bus:      d.Bus,
		Requests: d.Requests,
		Clips:    d.Clips,
		Control:  d.Controls.Sound,
		Logger:   d.Logger,
	})
	recSvc := recognition.New(cfg.Recognition, recognition.Deps{
		Session:    d.Session,
		Bus:        d.Bus,
		Host:       d.Host,
		Input:      d.Input,
		Recognizer: d.Recognizer,
		Control:    d.Controls.Mic,
		Indicator:  d.Controls.Recording,
		Logger:     d.Logger,
	})
	loop := handsfree.New(cfg.HandsFree, handsfree.Deps{
		Session: d.Session,
		Bus:     d.Bus,
		Synth:   d.Synth,
		Control: d.Controls.HandsFree,
		Logger:  d.Logger,
	})
	recSvc.SetLoop(loop)
	loop.Attach(recSvc, ttsSvc)

	c := &Coordinator{
		cfg:    cfg,
		sess:   d.Session,
		app:    d.Host,
		logger: logger,
		tts:    ttsSvc,
		sound:  soundSvc,
		rec:    recSvc,
		loop:   loop,
	}

	// Polling viability is a startup-time decision, never retried.
	c.ttsPolling = cfg.TTSPollInterval > 0 && ttsSvc.Configured()
	if !c.ttsPolling {
		logger.Warn("tts polling disabled",
			"interval", cfg.TTSPollInterval, "configured", ttsSvc.Configured())
	}
	c.soundPolling = cfg.SoundPollInterval > 0 && soundSvc.Configured()
	if !c.soundPolling {
		logger.Warn("sound polling disabled",
			"interval", cfg.SoundPollInterval, "configured", soundSvc.Configured())
	}

	c.refreshControls()
	return c, nil
}

// AddonActive reports the session's addon availability.
func (c *Coordinator) AddonActive() bool { return c.sess.AddonActive() }

// TTS returns the TTS subsystem.
func (c *Coordinator) TTS() *tts.Service { return c.tts }

// Sound returns the sound-trigger subsystem.
func (c *Coordinator) Sound() *soundfx.Service { return c.sound }

// Recognition returns the speech recognition subsystem.
func (c *Coordinator) Recognition() *recognition.Service { return c.rec }

// HandsFree returns the hands-free orchestrator.
func (c *Coordinator) HandsFree() *handsfree.Orchestrator { return c.loop }

// UpdateAddonState reacts to addon availability transitions. Unchanged
// values are a no-op. Losing the addon force-disables every feature and
// cancels in-flight speech and audio; regaining it surfaces one
// availability notice per now-usable feature.
func (c *Coordinator) UpdateAddonState(active bool) {
	if !c.sess.SetAddonActive(active) {
		return
	}
	c.logger.Info("addon availability changed", "active", active)

	if !active {
		c.loop.SetEnabled(false)
		c.tts.SetEnabled(false)
		c.rec.Disable()
		c.sound.StopAll()
	} else {
		c.rec.Enable()
		if c.tts.Configured() {
			c.app.ShowToast("Voice playback is available", 3*time.Second)
		}
		if c.rec.Supported() {
			c.app.ShowToast("Voice input is available", 3*time.Second)
		}
		if c.sound.Enabled() {
			c.app.ShowToast("Sound effects are available", 3*time.Second)
		}
	}

	c.refreshControls()
}

// RefreshControls re-renders every toggle, for newly attached dashboards.
func (c *Coordinator) RefreshControls() { c.refreshControls() }

func (c *Coordinator) refreshControls() {
	c.tts.RefreshControl()
	c.sound.RefreshControl()
	c.rec.RefreshControl()
	c.loop.RefreshControl()
}

// Run drives the two poll loops until ctx is done. The loops are
// independent tickers; a feature whose polling was disabled at startup
// never runs.
func (c *Coordinator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if c.ttsPolling {
		g.Go(func() error {
			return pollLoop(ctx, c.cfg.TTSPollInterval, c.tts.Poll)
		})
	}
	if c.soundPolling {
		g.Go(func() error {
			return pollLoop(ctx, c.cfg.SoundPollInterval, c.sound.Poll)
		})
	}

	return g.Wait()
}

func pollLoop(ctx context.Context, interval time.Duration, tick func(context.Context)) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			tick(ctx)
		}
	}
}
