package platform

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"

	"voiceloop/internal/httpc"
)

// speakerRate is the mixer sample rate; decoded clips are resampled to it
// so the speaker only needs to be initialized once.
const speakerRate beep.SampleRate = 44100

var speakerOnce sync.Once

func initSpeaker() error {
	var err error
	speakerOnce.Do(func() {
		err = speaker.Init(speakerRate, speakerRate.N(time.Second/10))
	})
	return err
}

// BeepClips creates clips that fetch an MP3 over HTTP and play it on the
// local speaker.
type BeepClips struct {
	logger *slog.Logger
	client *http.Client
}

// NewBeepClips creates the local clip factory.
func NewBeepClips(logger *slog.Logger) *BeepClips {
	return &BeepClips{
		logger: logger.With("component", "platform.clips"),
		client: httpc.Client,
	}
}

// NewClip creates a clip for url. Nothing is fetched until Play.
func (f *BeepClips) NewClip(url string) Clip {
	return &beepClip{url: url, logger: f.logger, client: f.client, volume: 1.0}
}

type beepClip struct {
	url    string
	logger *slog.Logger
	client *http.Client

	mu      sync.Mutex
	ctrl    *beep.Ctrl
	vol     *effects.Volume
	stopped bool
	volume  float64

	onEnded func()
	onError func(err error)
}

func (c *beepClip) OnEnded(fn func())        { c.mu.Lock(); c.onEnded = fn; c.mu.Unlock() }
func (c *beepClip) OnError(fn func(e error)) { c.mu.Lock(); c.onError = fn; c.mu.Unlock() }

// Play fetches and decodes the clip on a background goroutine, then hands
// it to the speaker. Errors after Play returns arrive via OnError.
func (c *beepClip) Play() error {
	if err := initSpeaker(); err != nil {
		return fmt.Errorf("platform: speaker init: %w", err)
	}
	go c.fetchAndPlay()
	return nil
}

func (c *beepClip) fetchAndPlay() {
	resp, err := c.client.Get(c.url)
	if err != nil {
		c.fail(fmt.Errorf("platform: fetch clip: %w", err))
		return
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		c.fail(fmt.Errorf("platform: fetch clip: status %d", resp.StatusCode))
		return
	}
	streamer, format, err := mp3.Decode(resp.Body)
	if err != nil {
		resp.Body.Close()
		c.fail(fmt.Errorf("platform: decode clip: %w", err))
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		streamer.Close()
		return
	}
	var s beep.Streamer = streamer
	if format.SampleRate != speakerRate {
		s = beep.Resample(4, format.SampleRate, speakerRate, streamer)
	}
	vol := &effects.Volume{Streamer: s, Base: 2, Volume: gainFor(c.volume), Silent: c.volume == 0}
	done := beep.Callback(func() {
		streamer.Close()
		c.mu.Lock()
		ended := c.onEnded
		already := c.stopped
		c.stopped = true
		c.mu.Unlock()
		if ended != nil && !already {
			ended()
		}
	})
	ctrl := &beep.Ctrl{Streamer: beep.Seq(vol, done)}
	c.vol = vol
	c.ctrl = ctrl
	c.mu.Unlock()

	speaker.Play(ctrl)
}

func (c *beepClip) fail(err error) {
	c.logger.Warn("clip playback failed", "url", c.url, "error", err)
	c.mu.Lock()
	fn := c.onError
	c.stopped = true
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Stop silences the clip immediately. OnEnded is not fired.
func (c *beepClip) Stop() {
	c.mu.Lock()
	c.stopped = true
	ctrl := c.ctrl
	c.mu.Unlock()
	if ctrl != nil {
		speaker.Lock()
		ctrl.Streamer = nil
		speaker.Unlock()
	}
}

// SetVolume adjusts playback gain; v is clamped to [0,1].
func (c *beepClip) SetVolume(v float64) {
	v = math.Min(1, math.Max(0, v))
	c.mu.Lock()
	c.volume = v
	vol := c.vol
	c.mu.Unlock()
	if vol != nil {
		speaker.Lock()
		vol.Volume = gainFor(v)
		vol.Silent = v == 0
		speaker.Unlock()
	}
}

// gainFor maps a linear [0,1] volume to the exponential gain the effects
// stage expects (base 2, so 0.5 is one halving).
func gainFor(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Log2(v)
}

var _ ClipFactory = (*BeepClips)(nil)
var _ Clip = (*beepClip)(nil)
