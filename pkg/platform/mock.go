package platform

import "sync"

// MockSynth implements Synthesizer for testing. Utterances are recorded and
// lifecycle events are fired manually via the Fire helpers.
type MockSynth struct {
	mu         sync.Mutex
	utterances []*Utterance
	current    *Utterance
	speaking   bool
	pending    bool
	cancels    int
	voices     []string
}

func NewMockSynth(voices ...string) *MockSynth {
	return &MockSynth{voices: voices}
}

func (m *MockSynth) Speak(u *Utterance) {
	m.mu.Lock()
	m.utterances = append(m.utterances, u)
	m.current = u
	m.pending = true
	m.mu.Unlock()
}

func (m *MockSynth) Cancel() {
	m.mu.Lock()
	m.cancels++
	m.speaking = false
	m.pending = false
	m.current = nil
	m.mu.Unlock()
}

func (m *MockSynth) Speaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking
}

func (m *MockSynth) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

func (m *MockSynth) VoiceNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voices
}

// FireStart transitions the current utterance to speaking and invokes its
// OnStart callback.
func (m *MockSynth) FireStart() {
	m.mu.Lock()
	u := m.current
	m.speaking = true
	m.pending = false
	m.mu.Unlock()
	if u != nil && u.OnStart != nil {
		u.OnStart()
	}
}

// FireEnd completes the current utterance.
func (m *MockSynth) FireEnd() {
	m.mu.Lock()
	u := m.current
	m.speaking = false
	m.pending = false
	m.current = nil
	m.mu.Unlock()
	if u != nil && u.OnEnd != nil {
		u.OnEnd()
	}
}

// FireError fails the current utterance with the given code.
func (m *MockSynth) FireError(code string) {
	m.mu.Lock()
	u := m.current
	m.speaking = false
	m.pending = false
	m.current = nil
	m.mu.Unlock()
	if u != nil && u.OnError != nil {
		u.OnError(code)
	}
}

// SetState forces the live speaking/pending flags, for wedge scenarios.
func (m *MockSynth) SetState(speaking, pending bool) {
	m.mu.Lock()
	m.speaking = speaking
	m.pending = pending
	m.mu.Unlock()
}

// Utterances returns every utterance handed to Speak.
func (m *MockSynth) Utterances() []*Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Utterance, len(m.utterances))
	copy(out, m.utterances)
	return out
}

// Cancels returns how many times Cancel was called.
func (m *MockSynth) Cancels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}

// MockRecognizer implements Recognizer for testing.
type MockRecognizer struct {
	// StartErr, when set, is returned by Start.
	StartErr error

	mu       sync.Mutex
	opts     RecognizerOptions
	started  int
	stops    int
	aborts   int
	running  bool
	onResult func(string, bool)
	onEnd    func()
	onError  func(string)
}

func NewMockRecognizer() *MockRecognizer { return &MockRecognizer{} }

func (m *MockRecognizer) SetOptions(o RecognizerOptions) {
	m.mu.Lock()
	m.opts = o
	m.mu.Unlock()
}

func (m *MockRecognizer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.started++
	m.running = true
	return nil
}

func (m *MockRecognizer) Stop() {
	m.mu.Lock()
	m.stops++
	m.mu.Unlock()
}

func (m *MockRecognizer) Abort() {
	m.mu.Lock()
	m.aborts++
	m.running = false
	m.mu.Unlock()
}

func (m *MockRecognizer) OnResult(fn func(string, bool)) { m.mu.Lock(); m.onResult = fn; m.mu.Unlock() }
func (m *MockRecognizer) OnEnd(fn func())                { m.mu.Lock(); m.onEnd = fn; m.mu.Unlock() }
func (m *MockRecognizer) OnError(fn func(string))        { m.mu.Lock(); m.onError = fn; m.mu.Unlock() }

// FireResult delivers a transcript segment.
func (m *MockRecognizer) FireResult(transcript string, final bool) {
	m.mu.Lock()
	fn := m.onResult
	m.mu.Unlock()
	if fn != nil {
		fn(transcript, final)
	}
}

// FireEnd delivers the end-of-session event.
func (m *MockRecognizer) FireEnd() {
	m.mu.Lock()
	fn := m.onEnd
	m.running = false
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// FireError delivers a recognition error.
func (m *MockRecognizer) FireError(code string) {
	m.mu.Lock()
	fn := m.onError
	m.running = false
	m.mu.Unlock()
	if fn != nil {
		fn(code)
	}
}

// Options returns the last options set.
func (m *MockRecognizer) Options() RecognizerOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts
}

// Starts returns how many times Start succeeded.
func (m *MockRecognizer) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Stops returns how many times Stop was called.
func (m *MockRecognizer) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// MockClip implements Clip for testing.
type MockClip struct {
	// PlayErr, when set, is returned by Play.
	PlayErr error

	URL string

	mu      sync.Mutex
	plays   int
	stops   int
	volume  float64
	onEnded func()
	onError func(error)
}

func (c *MockClip) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PlayErr != nil {
		return c.PlayErr
	}
	c.plays++
	return nil
}

func (c *MockClip) Stop() {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
}

func (c *MockClip) SetVolume(v float64) {
	c.mu.Lock()
	c.volume = v
	c.mu.Unlock()
}

func (c *MockClip) OnEnded(fn func())      { c.mu.Lock(); c.onEnded = fn; c.mu.Unlock() }
func (c *MockClip) OnError(fn func(error)) { c.mu.Lock(); c.onError = fn; c.mu.Unlock() }

// FireEnded simulates natural completion.
func (c *MockClip) FireEnded() {
	c.mu.Lock()
	fn := c.onEnded
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// FireError simulates a load failure.
func (c *MockClip) FireError(err error) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Volume returns the last volume applied.
func (c *MockClip) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// Plays returns how many times Play succeeded.
func (c *MockClip) Plays() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plays
}

// Stopped reports whether Stop was called at least once.
func (c *MockClip) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops > 0
}

// MockClips is a ClipFactory returning MockClips, recorded per URL.
type MockClips struct {
	// NewClipFunc overrides clip construction when set.
	NewClipFunc func(url string) Clip

	mu    sync.Mutex
	clips []*MockClip
}

func (f *MockClips) NewClip(url string) Clip {
	if f.NewClipFunc != nil {
		return f.NewClipFunc(url)
	}
	c := &MockClip{URL: url}
	f.mu.Lock()
	f.clips = append(f.clips, c)
	f.mu.Unlock()
	return c
}

// Clips returns every clip created so far.
func (f *MockClips) Clips() []*MockClip {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*MockClip, len(f.clips))
	copy(out, f.clips)
	return out
}

var (
	_ Synthesizer = (*MockSynth)(nil)
	_ Recognizer  = (*MockRecognizer)(nil)
	_ Clip        = (*MockClip)(nil)
	_ ClipFactory = (*MockClips)(nil)
)
