package soundfx

import (
	"testing"

	"voiceloop/internal/log"
	"voiceloop/pkg/host"
	"voiceloop/pkg/platform"
	"voiceloop/pkg/session"
)

func newTestService(t *testing.T, cfg Config) (*Service, *platform.MockClips, *session.Session, *host.Bus) {
	t.Helper()
	if cfg.AssistantEndpoint == "" {
		cfg.AssistantEndpoint = "http://unused/latest"
	}
	clips := &platform.MockClips{}
	sess := session.New()
	sess.SetAddonActive(true)
	bus := host.NewBus()
	svc := New(cfg, Deps{
		Session:  sess,
		Bus:      bus,
		Requests: host.NewRequests(),
		Clips:    clips,
		Logger:   log.L(),
	})
	svc.NotifyUserGesture()
	return svc, clips, sess, bus
}

func TestEnabledGating(t *testing.T) {
	svc, _, sess, _ := newTestService(t, Config{DefaultEnabled: true})

	if !svc.Enabled() {
		t.Fatal("expected enabled")
	}
	sess.SetAddonActive(false)
	if svc.Enabled() {
		t.Error("expected addon loss to disable the feature")
	}
	sess.SetAddonActive(true)
	svc.SetUserPreference(false)
	if svc.Enabled() {
		t.Error("expected user preference off to disable the feature")
	}
}

func TestPlay(t *testing.T) {
	svc, clips, _, _ := newTestService(t, Config{DefaultEnabled: true, DefaultVolume: 0.4})

	svc.Play("/fx/rain.mp3")

	created := clips.Clips()
	if len(created) != 1 {
		t.Fatalf("expected 1 clip, got %d", len(created))
	}
	if created[0].URL != "/fx/rain.mp3" {
		t.Errorf("unexpected clip url %q", created[0].URL)
	}
	if created[0].Plays() != 1 {
		t.Errorf("expected clip to play once, got %d", created[0].Plays())
	}
	if created[0].Volume() != 0.4 {
		t.Errorf("expected configured volume 0.4, got %f", created[0].Volume())
	}
	if svc.ActiveCount() != 1 {
		t.Errorf("expected 1 active clip, got %d", svc.ActiveCount())
	}
}

func TestPlayGuards(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		svc, clips, _, _ := newTestService(t, Config{DefaultEnabled: false})
		svc.Play("/fx/rain.mp3")
		if len(clips.Clips()) != 0 {
			t.Error("expected no clip while disabled")
		}
	})

	t.Run("no user gesture yet", func(t *testing.T) {
		svc, clips, _, _ := newTestService(t, Config{DefaultEnabled: true})
		svc, clips = resetGesture(t, svc, clips)
		svc.Play("/fx/rain.mp3")
		if len(clips.Clips()) != 0 {
			t.Error("expected no clip before a user gesture")
		}
	})

	t.Run("bad url", func(t *testing.T) {
		svc, clips, _, _ := newTestService(t, Config{DefaultEnabled: true})
		for _, url := range []string{"", "javascript:alert(1)", "ftp://x/y.mp3", "rain.mp3"} {
			svc.Play(url)
		}
		if len(clips.Clips()) != 0 {
			t.Error("expected no clip for invalid urls")
		}
	})

	t.Run("already playing", func(t *testing.T) {
		svc, clips, _, _ := newTestService(t, Config{DefaultEnabled: true})
		svc.Play("/fx/rain.mp3")
		svc.Play("/fx/rain.mp3")
		if len(clips.Clips()) != 1 {
			t.Errorf("expected repeated url to be ignored, got %d clips", len(clips.Clips()))
		}
	})
}

// resetGesture rebuilds a service without the gesture flag set.
func resetGesture(t *testing.T, _ *Service, _ *platform.MockClips) (*Service, *platform.MockClips) {
	t.Helper()
	clips := &platform.MockClips{}
	sess := session.New()
	sess.SetAddonActive(true)
	svc := New(Config{AssistantEndpoint: "http://unused", DefaultEnabled: true}, Deps{
		Session:  sess,
		Bus:      host.NewBus(),
		Requests: host.NewRequests(),
		Clips:    clips,
		Logger:   log.L(),
	})
	return svc, clips
}

func TestPoolEviction(t *testing.T) {
	svc, clips, _, _ := newTestService(t, Config{DefaultEnabled: true, MaxSimultaneous: 2})

	svc.Play("/fx/a.mp3")
	svc.Play("/fx/b.mp3")
	svc.Play("/fx/c.mp3")

	created := clips.Clips()
	if len(created) != 3 {
		t.Fatalf("expected 3 clips created, got %d", len(created))
	}
	if !created[0].Stopped() {
		t.Error("expected the oldest clip to be evicted")
	}
	if created[1].Stopped() || created[2].Stopped() {
		t.Error("expected newer clips to keep playing")
	}
	if svc.ActiveCount() != 2 {
		t.Errorf("expected pool size 2, got %d", svc.ActiveCount())
	}

	urls := svc.ActiveURLs()
	if len(urls) != 2 || urls[0] != "/fx/b.mp3" || urls[1] != "/fx/c.mp3" {
		t.Errorf("unexpected active order %v", urls)
	}
}

func TestClipEndRemovesFromPool(t *testing.T) {
	svc, clips, _, _ := newTestService(t, Config{DefaultEnabled: true})

	svc.Play("/fx/a.mp3")
	clips.Clips()[0].FireEnded()

	if svc.ActiveCount() != 0 {
		t.Errorf("expected ended clip removed, pool has %d", svc.ActiveCount())
	}
	// The url may play again once its trigger key is invalidated.
	svc.Play("/fx/a.mp3")
	if len(clips.Clips()) != 2 {
		t.Errorf("expected the url to be playable again, got %d clips", len(clips.Clips()))
	}
}

func TestAutoplayBlockedClearsGesture(t *testing.T) {
	svc, _, _, _ := newTestService(t, Config{DefaultEnabled: true})
	blocked := &platform.MockClip{PlayErr: platform.ErrAutoplayBlocked}
	factory := &platform.MockClips{NewClipFunc: func(string) platform.Clip { return blocked }}
	svc.clips = factory

	svc.Play("/fx/a.mp3")

	if svc.UserInteracted() {
		t.Error("expected the gesture grant to be dropped")
	}
	if svc.ActiveCount() != 0 {
		t.Error("expected the blocked clip to be removed")
	}
}

func TestProcessDedupAndInvalidation(t *testing.T) {
	svc, clips, _, _ := newTestService(t, Config{DefaultEnabled: true})

	svc.Process("", "rain incoming soundstart:/fx/rain.mp3")
	if len(clips.Clips()) != 1 {
		t.Fatalf("expected 1 clip, got %d", len(clips.Clips()))
	}

	// Same text again: no source change, nothing rescans.
	svc.Process("", "rain incoming soundstart:/fx/rain.mp3")
	if len(clips.Clips()) != 1 {
		t.Errorf("expected unchanged text to be a no-op, got %d clips", len(clips.Clips()))
	}

	// Changed assistant text with the same token: the key was invalidated,
	// so it fires again once the first clip is gone.
	clips.Clips()[0].FireEnded()
	svc.Process("", "again! soundstart:/fx/rain.mp3")
	if len(clips.Clips()) != 2 {
		t.Errorf("expected the token to fire again after invalidation, got %d clips", len(clips.Clips()))
	}
}

func TestProcessRepeatedTokenFiresOnce(t *testing.T) {
	svc, clips, _, _ := newTestService(t, Config{DefaultEnabled: true})

	svc.Process("", "soundstart:/fx/echo.mp3 and again soundstart:/fx/echo.mp3")

	if len(clips.Clips()) != 1 {
		t.Errorf("expected the repeated token to play once, got %d clips", len(clips.Clips()))
	}
}

func TestProcessPerSourceInvalidation(t *testing.T) {
	svc, clips, _, _ := newTestService(t, Config{DefaultEnabled: true})

	svc.Process("soundstart:/fx/user.mp3", "soundstart:/fx/bot.mp3")
	if len(clips.Clips()) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(clips.Clips()))
	}

	// Only the user text changes; the assistant token stays deduped.
	for _, c := range clips.Clips() {
		c.FireEnded()
	}
	svc.Process("soundstart:/fx/user2.mp3", "soundstart:/fx/bot.mp3")

	created := clips.Clips()
	if len(created) != 3 {
		t.Fatalf("expected 3 clips total, got %d", len(created))
	}
	if created[2].URL != "/fx/user2.mp3" {
		t.Errorf("expected only the new user token to fire, got %q", created[2].URL)
	}
}

func TestVolumeTrigger(t *testing.T) {
	svc, clips, _, bus := newTestService(t, Config{DefaultEnabled: true})

	fired := 0
	bus.On(host.EventTriggerFired, func(any) { fired++ })

	svc.Process("", "soundstart:/fx/a.mp3 soundvolume:0.2")

	if svc.Volume() != 0.2 {
		t.Errorf("expected volume 0.2, got %f", svc.Volume())
	}
	if got := clips.Clips()[0].Volume(); got != 0.2 {
		t.Errorf("expected active clip volume 0.2, got %f", got)
	}
	if fired != 2 {
		t.Errorf("expected 2 trigger events, got %d", fired)
	}

	// Out-of-range values clamp; junk is ignored.
	svc.SetVolume(7)
	if svc.Volume() != 1 {
		t.Errorf("expected clamp to 1, got %f", svc.Volume())
	}
	svc.Process("", "soundvolume:loud")
	if svc.Volume() != 1 {
		t.Errorf("expected junk volume to be ignored, got %f", svc.Volume())
	}
}

func TestStopTrigger(t *testing.T) {
	svc, clips, _, _ := newTestService(t, Config{DefaultEnabled: true})

	svc.Process("", "soundstart:/fx/a.mp3 soundstart:/fx/b.mp3")
	svc.Process("", "enough soundstop")

	for i, c := range clips.Clips() {
		if !c.Stopped() {
			t.Errorf("expected clip %d stopped", i)
		}
	}
	if svc.ActiveCount() != 0 {
		t.Errorf("expected empty pool, got %d", svc.ActiveCount())
	}
}

func TestDisablingStopsPlayback(t *testing.T) {
	svc, clips, _, _ := newTestService(t, Config{DefaultEnabled: true})

	svc.Play("/fx/a.mp3")
	svc.SetUserPreference(false)

	if !clips.Clips()[0].Stopped() {
		t.Error("expected active clip stopped when sound turned off")
	}
	if svc.ActiveCount() != 0 {
		t.Errorf("expected empty pool, got %d", svc.ActiveCount())
	}
}

func TestProcessedHistoryBound(t *testing.T) {
	svc, _, _, _ := newTestService(t, Config{DefaultEnabled: true})

	for i := 0; i < historyMax+1; i++ {
		svc.markProcessed(string(rune('a'+i%26)) + string(rune('0'+i/26)))
	}

	svc.mu.Lock()
	n := len(svc.processedOrder)
	m := len(svc.processed)
	svc.mu.Unlock()
	if n != historyKeep || m != historyKeep {
		t.Errorf("expected history trimmed to %d, got order=%d map=%d", historyKeep, n, m)
	}
}
