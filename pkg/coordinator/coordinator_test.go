package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"voiceloop/internal/log"
	"voiceloop/pkg/host"
	"voiceloop/pkg/platform"
	"voiceloop/pkg/recognition"
	"voiceloop/pkg/session"
	"voiceloop/pkg/soundfx"
	"voiceloop/pkg/tts"
)

type coordFixture struct {
	coord *Coordinator
	synth *platform.MockSynth
	rec   *platform.MockRecognizer
	clips *platform.MockClips
	app   *host.MockHost
	sess  *session.Session
}

func newCoordFixture(t *testing.T, cfg Config) *coordFixture {
	t.Helper()
	resetInit()
	f := &coordFixture{
		synth: platform.NewMockSynth(),
		rec:   platform.NewMockRecognizer(),
		clips: &platform.MockClips{},
		app:   &host.MockHost{},
		sess:  session.New(),
	}
	coord, err := New(cfg, Deps{
		Session:    f.sess,
		Bus:        host.NewBus(),
		Host:       f.app,
		Requests:   host.NewRequests(),
		Synth:      f.synth,
		Recognizer: f.rec,
		Clips:      f.clips,
		Logger:     log.L(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.coord = coord
	return f
}

func fullConfig() Config {
	return Config{
		TTS:               tts.Config{Endpoint: "http://unused/output"},
		Sound:             soundfx.Config{AssistantEndpoint: "http://unused/output", DefaultEnabled: true},
		Recognition:       recognition.Config{Language: "en-US"},
		TTSPollInterval:   time.Hour,
		SoundPollInterval: time.Hour,
	}
}

func TestNewIsSingleUse(t *testing.T) {
	f := newCoordFixture(t, fullConfig())
	if f.coord == nil {
		t.Fatal("expected a coordinator")
	}

	_, err := New(fullConfig(), Deps{Logger: log.L()})
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestAddonActivationNotices(t *testing.T) {
	f := newCoordFixture(t, fullConfig())

	f.coord.UpdateAddonState(true)

	// TTS configured, recognition supported, sound enabled: one notice each.
	if got := len(f.app.Toasts()); got != 3 {
		t.Errorf("expected 3 availability notices, got %d: %v", got, f.app.Toasts())
	}
	if !f.coord.AddonActive() {
		t.Error("expected addon active")
	}
}

func TestAddonUpdateIsTransitionOnly(t *testing.T) {
	f := newCoordFixture(t, fullConfig())

	f.coord.UpdateAddonState(true)
	n := len(f.app.Toasts())
	f.coord.UpdateAddonState(true)

	if len(f.app.Toasts()) != n {
		t.Error("expected a repeated state to produce no new notices")
	}
}

func TestAddonLossCascades(t *testing.T) {
	f := newCoordFixture(t, fullConfig())
	f.coord.UpdateAddonState(true)

	f.coord.TTS().SetEnabled(true)
	f.coord.HandsFree().SetEnabled(true)
	f.coord.Sound().NotifyUserGesture()
	f.coord.Sound().Play("/fx/a.mp3")

	f.coord.UpdateAddonState(false)

	if f.coord.TTS().Enabled() {
		t.Error("expected tts force-disabled")
	}
	if f.coord.HandsFree().Enabled() {
		t.Error("expected hands-free force-disabled")
	}
	if f.coord.Recognition().Enabled() {
		t.Error("expected recognition force-disabled")
	}
	if f.synth.Cancels() == 0 {
		t.Error("expected in-flight speech cancelled")
	}
	if f.coord.Sound().ActiveCount() != 0 {
		t.Error("expected active sounds stopped")
	}
}

func TestPollingDisabledWithoutEndpoint(t *testing.T) {
	cfg := fullConfig()
	cfg.TTS.Endpoint = ""
	f := newCoordFixture(t, cfg)

	if f.coord.ttsPolling {
		t.Error("expected tts polling disabled without an endpoint")
	}
	if !f.coord.soundPolling {
		t.Error("expected sound polling unaffected")
	}
}

func TestPollingDisabledWithZeroInterval(t *testing.T) {
	cfg := fullConfig()
	cfg.SoundPollInterval = 0
	f := newCoordFixture(t, cfg)

	if f.coord.soundPolling {
		t.Error("expected sound polling disabled with a zero interval")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	f := newCoordFixture(t, fullConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.coord.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
