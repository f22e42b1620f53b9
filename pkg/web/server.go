// Package web serves the voice control API, the live status websocket,
// and the browser voice bridge.
package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"voiceloop/pkg/coordinator"
	"voiceloop/pkg/host"
	"voiceloop/pkg/hub"
)

// Status is the dashboard's view of the voice subsystems.
type Status struct {
	AddonActive    bool     `json:"addon_active"`
	BridgeAttached bool     `json:"bridge_attached"`
	TTSEnabled     bool     `json:"tts_enabled"`
	Speaking       bool     `json:"speaking"`
	LastMessageID  string   `json:"last_message_id,omitempty"`
	Listening      bool     `json:"listening"`
	Transcript     string   `json:"transcript,omitempty"`
	HandsFree      bool     `json:"hands_free"`
	Waiting        bool     `json:"waiting"`
	SoundEnabled   bool     `json:"sound_enabled"`
	ActiveSounds   []string `json:"active_sounds,omitempty"`
	Volume         float64  `json:"volume"`
}

type toast struct {
	Message    string `json:"message"`
	DurationMS int64  `json:"duration_ms"`
}

// Server is the voiceloop web server.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	coord     *coordinator.Coordinator
	bridge    *Bridge
	statusHub *hub.Hub
}

// NewServer creates the server. statusHub carries status, control, and
// toast broadcasts; the bridge hub carries the browser speech traffic.
func NewServer(addr string, coord *coordinator.Coordinator, bridge *Bridge, statusHub *hub.Hub, bus *host.Bus, logger *slog.Logger) *Server {
	s := &Server{
		addr:      addr,
		logger:    logger.With("component", "web"),
		coord:     coord,
		bridge:    bridge,
		statusHub: statusHub,
	}

	app := fiber.New(fiber.Config{
		AppName:               "voiceloop",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/toggle/tts", s.handleToggleTTS)
	api.Post("/toggle/sound", s.handleToggleSound)
	api.Post("/toggle/mic", s.handleToggleMic)
	api.Post("/toggle/handsfree", s.handleToggleHandsFree)
	api.Post("/gesture", s.handleGesture)
	api.Post("/addon", s.handleAddon)
	api.Post("/interrupt", s.handleInterrupt)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/bridge", websocket.New(s.handleBridgeWS))

	// Every subsystem event changes something a dashboard shows.
	for _, ev := range []string{
		host.EventTTSStart, host.EventTTSEnd, host.EventTTSError,
		host.EventTTSPause, host.EventTTSResume, host.EventTTSSkipped,
		host.EventRecognitionEnded, host.EventTriggerFired,
	} {
		bus.On(ev, func(any) { s.PushStatus() })
	}

	s.app = app
	return s
}

// Run starts the hubs and the listener, and shuts down when ctx ends.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run()
	go s.bridge.Hub().Run()

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listen(s.addr) }()
	s.logger.Info("listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		s.app.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Toast broadcasts a user notice to every connected dashboard.
func (s *Server) Toast(message string, duration time.Duration) {
	s.statusHub.BroadcastEnvelope("toast", toast{
		Message:    message,
		DurationMS: duration.Milliseconds(),
	})
}

// PushStatus broadcasts the current status snapshot.
func (s *Server) PushStatus() {
	s.statusHub.BroadcastEnvelope("status", s.buildStatus())
}

func (s *Server) buildStatus() Status {
	tts := s.coord.TTS()
	rec := s.coord.Recognition()
	loop := s.coord.HandsFree()
	sound := s.coord.Sound()
	return Status{
		AddonActive:    s.coord.AddonActive(),
		BridgeAttached: s.bridge.Connected(),
		TTSEnabled:     tts.Enabled(),
		Speaking:       tts.Speaking(),
		LastMessageID:  tts.LastMessageID(),
		Listening:      rec.Recognizing(),
		Transcript:     rec.Transcript(),
		HandsFree:      loop.Enabled(),
		Waiting:        loop.Waiting(),
		SoundEnabled:   sound.Enabled(),
		ActiveSounds:   sound.ActiveURLs(),
		Volume:         sound.Volume(),
	}
}

var _ host.Toaster = (*Server)(nil)
