package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"voiceloop/internal/config"
	"voiceloop/internal/log"
	"voiceloop/pkg/coordinator"
	"voiceloop/pkg/handsfree"
	"voiceloop/pkg/host"
	"voiceloop/pkg/hub"
	"voiceloop/pkg/platform"
	"voiceloop/pkg/recognition"
	"voiceloop/pkg/session"
	"voiceloop/pkg/soundfx"
	"voiceloop/pkg/tts"
	"voiceloop/pkg/web"
)

func main() {
	configPath := flag.String("config", "voiceloop.yaml", "Path to config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Optional .env for local development; endpoints can live there.
	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	applyEnv(cfg)

	log.Init(cfg.LogLevel)
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.New()
	bus := host.NewBus()
	requests := host.NewRequests()
	input := &host.MemoryInput{}

	statusHub := hub.New("status", logger)
	bridge := web.NewBridge(logger)

	chat := host.NewChatClient(cfg.Endpoints.Chat, sess.ClientID(), input, nil, logger)
	defer chat.Close()

	coord, err := coordinator.New(coordinator.Config{
		TTS: tts.Config{
			Endpoint:      cfg.Endpoints.LatestOutput,
			MinimumDelay:  cfg.TTS.MinimumDelay.ToDuration(),
			VoicePriority: cfg.TTS.VoicePriority,
			Rate:          cfg.TTS.Rate,
			Pitch:         cfg.TTS.Pitch,
		},
		Sound: soundfx.Config{
			UserEndpoint:      cfg.Endpoints.LatestInput,
			AssistantEndpoint: cfg.Endpoints.LatestOutput,
			DefaultEnabled:    *cfg.Sound.Enabled,
			DefaultVolume:     cfg.Sound.Volume,
			MaxSimultaneous:   cfg.Sound.MaxSimultaneous,
		},
		Recognition: recognition.Config{
			Continuous:     cfg.Recognition.Continuous,
			InterimResults: *cfg.Recognition.InterimResults,
			Language:       cfg.Recognition.Language,
		},
		HandsFree: handsfree.Config{
			RestartDelay: cfg.HandsFree.RestartDelay.ToDuration(),
		},
		TTSPollInterval:   cfg.TTS.PollInterval.ToDuration(),
		SoundPollInterval: cfg.Sound.PollInterval.ToDuration(),
	}, coordinator.Deps{
		Session:    sess,
		Bus:        bus,
		Host:       chat,
		Input:      input,
		Requests:   requests,
		Synth:      bridge,
		Recognizer: bridge,
		Clips:      platform.NewBeepClips(logger),
		Controls: coordinator.Controls{
			TTS:       web.NewControl(statusHub, "tts"),
			Sound:     web.NewControl(statusHub, "sound"),
			Mic:       web.NewControl(statusHub, "mic"),
			HandsFree: web.NewControl(statusHub, "handsfree"),
			Recording: web.NewRecordingIndicator(statusHub, "recording", cfg.Recognition.Countdown.ToDuration()),
		},
		Logger: logger,
	})
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Bind, cfg.Server.Port)
	server := web.NewServer(addr, coord, bridge, statusHub, bus, logger)
	chat.SetToaster(server)

	// Browser-originated signals.
	bridge.OnGesture = coord.Sound().NotifyUserGesture
	bridge.OnAddonState = coord.UpdateAddonState
	bridge.OnInterrupt = func(source string) {
		switch source {
		case "input":
			coord.Recognition().NotifyInterruption(recognition.InterruptInputField)
		case "manual":
			coord.Recognition().NotifyInterruption(recognition.InterruptManualStop)
		default:
			coord.Recognition().NotifyInterruption(recognition.InterruptDocument)
		}
	}

	// The addon is considered present once the process is up; a browser
	// bridge can flip it off again.
	coord.UpdateAddonState(true)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx) })
	g.Go(func() error { return coord.Run(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("exited", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// applyEnv lets environment variables override the endpoint config, for
// .env-driven local setups.
func applyEnv(cfg *config.Config) {
	if v := os.Getenv("VOICELOOP_OUTPUT_URL"); v != "" {
		cfg.Endpoints.LatestOutput = v
	}
	if v := os.Getenv("VOICELOOP_INPUT_URL"); v != "" {
		cfg.Endpoints.LatestInput = v
	}
	if v := os.Getenv("VOICELOOP_CHAT_URL"); v != "" {
		cfg.Endpoints.Chat = v
	}
}
