package handsfree

import (
	"sync"
	"testing"
	"time"

	"voiceloop/internal/log"
	"voiceloop/pkg/host"
	"voiceloop/pkg/platform"
	"voiceloop/pkg/session"
)

type fakeListener struct {
	mu          sync.Mutex
	recognizing bool
	starts      int
	stops       int
}

func (l *fakeListener) Recognizing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recognizing
}

func (l *fakeListener) Start() error {
	l.mu.Lock()
	l.starts++
	l.recognizing = true
	l.mu.Unlock()
	return nil
}

func (l *fakeListener) StopListening() {
	l.mu.Lock()
	l.stops++
	l.recognizing = false
	l.mu.Unlock()
}

func (l *fakeListener) setRecognizing(v bool) {
	l.mu.Lock()
	l.recognizing = v
	l.mu.Unlock()
}

func (l *fakeListener) startCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.starts
}

type fakeSpeech struct {
	mu       sync.Mutex
	speaking bool
	cleared  int
}

func (s *fakeSpeech) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

func (s *fakeSpeech) ClearSpeaking() {
	s.mu.Lock()
	s.speaking = false
	s.cleared++
	s.mu.Unlock()
}

type loopFixture struct {
	o        *Orchestrator
	listener *fakeListener
	speech   *fakeSpeech
	synth    *platform.MockSynth
	bus      *host.Bus
	sess     *session.Session
}

func newLoopFixture(t *testing.T) *loopFixture {
	t.Helper()
	f := &loopFixture{
		listener: &fakeListener{},
		speech:   &fakeSpeech{},
		synth:    platform.NewMockSynth(),
		bus:      host.NewBus(),
		sess:     session.New(),
	}
	f.sess.SetAddonActive(true)
	f.o = New(Config{RestartDelay: 10 * time.Millisecond}, Deps{
		Session: f.sess,
		Bus:     f.bus,
		Synth:   f.synth,
		Logger:  log.L(),
	})
	f.o.Attach(f.listener, f.speech)
	return f
}

// settle waits out any pending restart timer.
func settle() { time.Sleep(60 * time.Millisecond) }

func TestEnableStartsListening(t *testing.T) {
	f := newLoopFixture(t)

	f.o.SetEnabled(true)

	if f.listener.startCount() != 1 {
		t.Errorf("expected an immediate start, got %d", f.listener.startCount())
	}
	if !f.o.Enabled() {
		t.Error("expected loop enabled")
	}
}

func TestEnableWhileSpeakingDefers(t *testing.T) {
	f := newLoopFixture(t)
	f.synth.SetState(true, false)

	f.o.SetEnabled(true)

	if f.listener.startCount() != 0 {
		t.Error("expected no start while the engine is speaking")
	}
}

func TestDisableStopsEverything(t *testing.T) {
	f := newLoopFixture(t)
	f.o.SetEnabled(true)
	f.listener.setRecognizing(false)
	f.o.SetWaiting(true)
	f.o.SafeRestart(time.Hour)

	f.o.SetEnabled(false)

	if f.o.Waiting() {
		t.Error("expected waiting cleared on disable")
	}
	if f.o.PendingRestart() {
		t.Error("expected pending restart cancelled on disable")
	}
	if f.listener.stops != 1 {
		t.Errorf("expected listener stopped, got %d stops", f.listener.stops)
	}
}

func TestSafeRestartSingleSlot(t *testing.T) {
	f := newLoopFixture(t)
	f.o.SetEnabled(true)
	f.listener.setRecognizing(false)
	before := f.listener.startCount()

	f.o.SafeRestart(5 * time.Millisecond)
	f.o.SafeRestart(5 * time.Millisecond)
	f.o.SafeRestart(5 * time.Millisecond)
	settle()

	if got := f.listener.startCount() - before; got != 1 {
		t.Errorf("expected exactly 1 restart, got %d", got)
	}
}

func TestSafeRestartWhileDisabled(t *testing.T) {
	f := newLoopFixture(t)

	f.o.SafeRestart(time.Millisecond)

	if f.o.PendingRestart() {
		t.Error("expected no restart scheduled while disabled")
	}
	settle()
	if f.listener.startCount() != 0 {
		t.Error("expected no start while disabled")
	}
}

func TestRestartAbandonedWhenPreconditionsFail(t *testing.T) {
	t.Run("engine speaking", func(t *testing.T) {
		f := newLoopFixture(t)
		f.o.SetEnabled(true)
		f.listener.setRecognizing(false)
		before := f.listener.startCount()

		f.o.SafeRestart(5 * time.Millisecond)
		f.synth.SetState(true, false)
		settle()

		if f.listener.startCount() != before {
			t.Error("expected restart abandoned while the engine speaks")
		}
	})

	t.Run("already recognizing", func(t *testing.T) {
		f := newLoopFixture(t)
		f.o.SetEnabled(true)
		before := f.listener.startCount()

		// The listener is still recognizing from the enable start.
		f.o.SafeRestart(5 * time.Millisecond)
		settle()

		if f.listener.startCount() != before {
			t.Error("expected restart abandoned while recognizing")
		}
	})

	t.Run("disabled before firing", func(t *testing.T) {
		f := newLoopFixture(t)
		f.o.SetEnabled(true)
		f.listener.setRecognizing(false)
		before := f.listener.startCount()

		f.o.SafeRestart(5 * time.Millisecond)
		f.o.SetEnabled(false)
		settle()

		if f.listener.startCount() != before {
			t.Error("expected restart abandoned after disable")
		}
	})
}

func TestStuckSpeakingFlagSelfHeals(t *testing.T) {
	f := newLoopFixture(t)
	f.o.SetEnabled(true)
	f.listener.setRecognizing(false)
	before := f.listener.startCount()

	// The cached flag says speaking but the engine is idle: a missed end
	// callback. The restart check clears it and proceeds.
	f.speech.speaking = true
	f.o.SafeRestart(5 * time.Millisecond)
	settle()

	if f.speech.cleared != 1 {
		t.Errorf("expected the stuck flag cleared once, got %d", f.speech.cleared)
	}
	if f.listener.startCount() != before+1 {
		t.Error("expected the restart to proceed after healing")
	}
}

func TestSpeechEndResolvesWaiting(t *testing.T) {
	for _, ev := range []string{host.EventTTSEnd, host.EventTTSError, host.EventTTSSkipped} {
		t.Run(ev, func(t *testing.T) {
			f := newLoopFixture(t)
			f.o.SetEnabled(true)
			f.listener.setRecognizing(false)
			f.o.SetWaiting(true)
			before := f.listener.startCount()

			f.bus.Trigger(ev, nil)

			if f.o.Waiting() {
				t.Error("expected waiting resolved")
			}
			settle()
			if f.listener.startCount() != before+1 {
				t.Error("expected the microphone to reopen")
			}
		})
	}
}

func TestSpeechEndWithoutWaitingIsNoop(t *testing.T) {
	f := newLoopFixture(t)
	f.o.SetEnabled(true)
	f.listener.setRecognizing(false)
	before := f.listener.startCount()

	f.bus.Trigger(host.EventTTSEnd, nil)
	settle()

	if f.listener.startCount() != before {
		t.Error("expected no restart when nothing was awaited")
	}
}

func TestSpeechStartCancelsPendingRestart(t *testing.T) {
	f := newLoopFixture(t)
	f.o.SetEnabled(true)
	f.listener.setRecognizing(false)
	before := f.listener.startCount()

	f.o.SafeRestart(20 * time.Millisecond)
	f.bus.Trigger(host.EventTTSStart, nil)

	if f.o.PendingRestart() {
		t.Error("expected pending restart cancelled by speech start")
	}
	settle()
	if f.listener.startCount() != before {
		t.Error("expected no start after cancellation")
	}
}

func TestDefaultDelayApplies(t *testing.T) {
	f := newLoopFixture(t)
	f.o.SetEnabled(true)
	f.listener.setRecognizing(false)

	f.o.SafeRestart(0)
	if !f.o.PendingRestart() {
		t.Error("expected zero delay to fall back to the configured default")
	}
	settle()
}
