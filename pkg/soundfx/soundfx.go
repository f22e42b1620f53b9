// Package soundfx polls the latest chat texts for inline sound trigger
// tokens (soundstart:<url>, soundvolume:<n>, soundstop) and manages a
// bounded pool of concurrently playing clips.
package soundfx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"voiceloop/internal/httpc"
	"voiceloop/pkg/host"
	"voiceloop/pkg/platform"
	"voiceloop/pkg/session"
)

const requestTag = "sound-poll"

// Processed-trigger history bounds: once the key set grows past
// historyMax, only the most recent historyKeep keys are retained.
const (
	historyMax  = 100
	historyKeep = 50
)

// Config is the static sound system configuration.
type Config struct {
	// UserEndpoint serves the cleaned latest user input. Optional; fetch
	// failures are ignored.
	UserEndpoint string

	// AssistantEndpoint serves the latest assistant output. Failures are
	// logged as warnings.
	AssistantEndpoint string

	DefaultEnabled  bool
	DefaultVolume   float64
	MaxSimultaneous int
}

// Deps are the collaborators the subsystem consumes.
type Deps struct {
	Session  *session.Session
	Bus      *host.Bus
	Requests *host.Requests
	Clips    platform.ClipFactory
	Control  session.Control
	Logger   *slog.Logger
}

// Service is the sound-trigger subsystem.
type Service struct {
	cfg     Config
	sess    *session.Session
	bus     *host.Bus
	reqs    *host.Requests
	clips   platform.ClipFactory
	control session.Control
	logger  *slog.Logger

	mu             sync.Mutex
	userPref       bool
	userInteracted bool
	active         map[string]platform.Clip
	order          []string // play order, oldest first, for eviction
	processed      map[string]struct{}
	processedOrder []string
	volume         float64
	lastUser       string
	lastAssistant  string
}

// New creates the subsystem with the configured defaults.
func New(cfg Config, d Deps) *Service {
	if cfg.MaxSimultaneous <= 0 {
		cfg.MaxSimultaneous = 3
	}
	if cfg.DefaultVolume <= 0 {
		cfg.DefaultVolume = 0.5
	}
	control := d.Control
	if control == nil {
		control = session.NullControl{}
	}
	return &Service{
		cfg:       cfg,
		sess:      d.Session,
		bus:       d.Bus,
		reqs:      d.Requests,
		clips:     d.Clips,
		control:   control,
		logger:    d.Logger.With("component", "soundfx"),
		userPref:  cfg.DefaultEnabled,
		active:    make(map[string]platform.Clip),
		processed: make(map[string]struct{}),
		volume:    clamp01(cfg.DefaultVolume),
	}
}

// Enabled is the derived flag: the user preference gated by addon
// availability.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	pref := s.userPref
	s.mu.Unlock()
	return pref && s.sess.AddonActive()
}

// SetUserPreference records the user's sound on/off choice. Turning sound
// off stops everything currently playing.
func (s *Service) SetUserPreference(on bool) {
	s.mu.Lock()
	s.userPref = on
	s.mu.Unlock()
	if !on {
		s.StopAll()
	}
	s.RefreshControl()
}

// Toggle flips the user preference and returns the new derived state.
func (s *Service) Toggle() bool {
	s.mu.Lock()
	on := !s.userPref
	s.mu.Unlock()
	s.SetUserPreference(on)
	return s.Enabled()
}

// NotifyUserGesture records that a user interaction has been observed,
// satisfying the platform's autoplay policy.
func (s *Service) NotifyUserGesture() {
	s.mu.Lock()
	s.userInteracted = true
	s.mu.Unlock()
}

// UserInteracted reports whether playback is allowed yet.
func (s *Service) UserInteracted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userInteracted
}

// Configured reports whether the required assistant endpoint is set.
func (s *Service) Configured() bool { return s.cfg.AssistantEndpoint != "" }

// RefreshControl renders the toggle's visual state.
func (s *Service) RefreshControl() {
	switch {
	case !s.Configured():
		s.control.Apply(session.Unavailable("no text endpoint configured"))
	case !s.sess.AddonActive():
		s.control.Apply(session.Unavailable("voice addon unavailable"))
	case s.Enabled():
		s.control.Apply(session.Engaged())
	default:
		s.control.Apply(session.Ready())
	}
}

// ActiveCount returns the number of currently playing clips.
func (s *Service) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// ActiveURLs returns the urls of currently playing clips, oldest first.
func (s *Service) ActiveURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Volume returns the current clip volume.
func (s *Service) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Poll fetches both text sources and processes any new trigger tokens.
func (s *Service) Poll(ctx context.Context) {
	if !s.Enabled() || !s.UserInteracted() {
		return
	}
	if !s.reqs.Add(requestTag) {
		return
	}
	defer s.reqs.Remove(requestTag)

	userText, err := s.fetchText(ctx, s.cfg.UserEndpoint)
	if err != nil && s.cfg.UserEndpoint != "" {
		s.logger.Debug("user text fetch failed", "error", err)
		userText = s.lastSeen(SourceUser)
	}
	assistantText, err := s.fetchText(ctx, s.cfg.AssistantEndpoint)
	if err != nil {
		s.logger.Warn("assistant text fetch failed", "error", err)
		assistantText = s.lastSeen(SourceAssistant)
	}

	s.Process(userText, assistantText)
}

func (s *Service) lastSeen(source string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if source == SourceUser {
		return s.lastUser
	}
	return s.lastAssistant
}

func (s *Service) fetchText(ctx context.Context, endpoint string) (string, error) {
	if endpoint == "" {
		return "", nil
	}
	resp, err := httpc.GetNoStore(ctx, endpoint, s.sess.ClientID())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.New(http.StatusText(resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Process rescans both texts when either has changed since the last pass.
// A changed source invalidates only that source's previously seen trigger
// keys, so the same literal token can fire again in a fresh message.
func (s *Service) Process(userText, assistantText string) {
	s.mu.Lock()
	userChanged := userText != s.lastUser
	assistantChanged := assistantText != s.lastAssistant
	if !userChanged && !assistantChanged {
		s.mu.Unlock()
		return
	}
	if userChanged {
		s.invalidateSourceLocked(SourceUser)
		s.lastUser = userText
	}
	if assistantChanged {
		s.invalidateSourceLocked(SourceAssistant)
		s.lastAssistant = assistantText
	}
	s.mu.Unlock()

	triggers := append(Extract(userText, SourceUser), Extract(assistantText, SourceAssistant)...)
	for _, t := range triggers {
		if !s.markProcessed(t.Key) {
			continue
		}
		s.apply(t)
	}
}

func (s *Service) invalidateSourceLocked(source string) {
	prefix := source + ":"
	kept := s.processedOrder[:0]
	for _, key := range s.processedOrder {
		if strings.HasPrefix(key, prefix) {
			delete(s.processed, key)
		} else {
			kept = append(kept, key)
		}
	}
	s.processedOrder = kept
}

// markProcessed records a trigger key, trimming the history when it grows
// past its bound. Returns false when the key was already seen.
func (s *Service) markProcessed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.processed[key]; seen {
		return false
	}
	s.processed[key] = struct{}{}
	s.processedOrder = append(s.processedOrder, key)
	if len(s.processedOrder) > historyMax {
		drop := s.processedOrder[:len(s.processedOrder)-historyKeep]
		for _, k := range drop {
			delete(s.processed, k)
		}
		s.processedOrder = append([]string(nil), s.processedOrder[len(s.processedOrder)-historyKeep:]...)
	}
	return true
}

func (s *Service) apply(t Trigger) {
	switch t.Action {
	case ActionStart:
		s.Play(t.Value)
	case ActionVolume:
		v, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			s.logger.Debug("bad volume trigger", "value", t.Value)
			return
		}
		s.SetVolume(v)
	case ActionStop:
		s.StopAll()
	}
	s.bus.Trigger(host.EventTriggerFired, t)
}

// Play starts a clip for url, evicting the oldest active clip when the
// pool is full. Invalid urls and repeats are ignored.
func (s *Service) Play(url string) {
	if !s.Enabled() || !s.UserInteracted() || !playableURL(url) {
		return
	}

	s.mu.Lock()
	if _, playing := s.active[url]; playing {
		s.mu.Unlock()
		return
	}
	var evict platform.Clip
	if len(s.active) >= s.cfg.MaxSimultaneous && len(s.order) > 0 {
		oldest := s.order[0]
		evict = s.active[oldest]
		delete(s.active, oldest)
		s.order = s.order[1:]
	}
	clip := s.clips.NewClip(url)
	s.active[url] = clip
	s.order = append(s.order, url)
	volume := s.volume
	s.mu.Unlock()

	if evict != nil {
		evict.Stop()
	}

	clip.SetVolume(volume)
	clip.OnEnded(func() { s.remove(url) })
	clip.OnError(func(err error) {
		s.logger.Debug("clip failed", "url", url, "error", err)
		s.remove(url)
	})

	if err := clip.Play(); err != nil {
		if errors.Is(err, platform.ErrAutoplayBlocked) {
			// Lost the gesture grant; wait for the next interaction.
			s.mu.Lock()
			s.userInteracted = false
			s.mu.Unlock()
		} else {
			s.logger.Warn("clip start failed", "url", url, "error", err)
		}
		s.remove(url)
	}
}

func (s *Service) remove(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[url]; !ok {
		return
	}
	delete(s.active, url)
	for i, u := range s.order {
		if u == url {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

// SetVolume clamps v to [0,1] and applies it to every active clip and all
// future ones.
func (s *Service) SetVolume(v float64) {
	v = clamp01(v)
	s.mu.Lock()
	s.volume = v
	clips := make([]platform.Clip, 0, len(s.active))
	for _, c := range s.active {
		clips = append(clips, c)
	}
	s.mu.Unlock()
	for _, c := range clips {
		c.SetVolume(v)
	}
}

// StopAll stops and clears every active clip.
func (s *Service) StopAll() {
	s.mu.Lock()
	clips := make([]platform.Clip, 0, len(s.active))
	for _, c := range s.active {
		clips = append(clips, c)
	}
	s.active = make(map[string]platform.Clip)
	s.order = nil
	s.mu.Unlock()
	for _, c := range clips {
		c.Stop()
	}
}

// playableURL accepts absolute http(s) urls, protocol-relative urls, and
// host-relative paths.
func playableURL(url string) bool {
	return strings.HasPrefix(url, "http://") ||
		strings.HasPrefix(url, "https://") ||
		strings.HasPrefix(url, "//") ||
		strings.HasPrefix(url, "/")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
