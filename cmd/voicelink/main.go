// Voicelink - push-to-talk voice client for a remote assistant.
// Streams microphone audio over a duplex WebSocket and plays the
// assistant's reply with barge-in support.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/voicelink/voicelink/internal/config"
	"github.com/voicelink/voicelink/internal/log"
	"github.com/voicelink/voicelink/pkg/auth"
	"github.com/voicelink/voicelink/pkg/capture"
	"github.com/voicelink/voicelink/pkg/playback"
	"github.com/voicelink/voicelink/pkg/session"
	"github.com/voicelink/voicelink/pkg/transport"
	"github.com/voicelink/voicelink/pkg/web"
)

func main() {
	// .env is optional; real deployments set the environment directly
	godotenv.Load()

	configPath := flag.String("config", "voicelink.yaml", "Path to config file")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	mockMic := flag.Bool("mock-mic", false, "Use a synthetic microphone (no hardware)")
	dashboard := flag.Bool("dashboard", false, "Serve the status dashboard")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if *dashboard {
		cfg.Dashboard.Enabled = true
	}

	log.Init(cfg.LogLevel)
	logger := log.L()

	endpoint := cfg.EndpointRequired()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, endpoint, *mockMic, logger); err != nil {
		logger.Error("voicelink failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, endpoint string, mockMic bool, logger *slog.Logger) error {
	// Microphone
	capCfg := capture.DefaultConfig()
	capCfg.SampleRate = cfg.Capture.SampleRate
	capCfg.Channels = cfg.Capture.Channels
	capCfg.ChunkDuration = cfg.Capture.ChunkDuration
	if mockMic {
		capCfg.Backend = capture.BackendMock
	}

	engine, err := capture.New(capCfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	// Speaker
	var sink playback.Sink
	if mockMic {
		sink = playback.NewMockSink()
	} else {
		otoSink, err := playback.NewOtoSink(cfg.Playback.SampleRate, logger)
		if err != nil {
			return err
		}
		sink = otoSink
	}
	defer sink.Close()

	playCfg := playback.DefaultConfig()
	playCfg.TickInterval = cfg.Playback.TickInterval
	playCfg.MaxQueuedFrames = cfg.Playback.MaxQueuedFrames
	if cfg.Playback.Immediate {
		playCfg.Policy = playback.PolicyImmediate
	}

	scheduler, err := playback.NewScheduler(playCfg, sink, logger)
	if err != nil {
		return err
	}
	go scheduler.Run(ctx)

	// Auth collaborator
	var authn auth.Authenticator
	if cfg.Auth.CheckURL != "" {
		authn = auth.NewSessionChecker(cfg.Auth.CheckURL, cfg.Auth.Token)
	} else {
		authn = auth.NewStatic(cfg.Auth.Token)
	}

	// Transport
	transCfg := transport.DefaultConfig(endpoint)
	transCfg.PingInterval = cfg.Heartbeat.PingInterval
	sess := transport.NewSession(transCfg, authn, logger)

	ctrl := session.NewController(engine, scheduler, sess, logger)

	// Dashboard
	var dash *web.Server
	if cfg.Dashboard.Enabled {
		dash = web.NewServer(cfg.Dashboard.Port, logger)
		dash.SetMetrics(ctrl.Metrics())
		dash.StartAsync()
		defer dash.Shutdown()

		ctrl.OnSpeakingChange = func(user, assistant bool) {
			dash.UpdateState(func(st *web.SessionState) {
				st.UserSpeaking = user
				st.AssistantSpeaking = assistant
			})
		}
	}

	disconnected := make(chan struct{})

	ctrl.OnTranscript = func(text string) {
		fmt.Print(text)
		if dash != nil {
			dash.AddTranscript(text)
		}
	}

	sess.OnMessage = ctrl.HandleMessage
	sess.OnClose = func(err error) {
		ctrl.HandleDisconnect(err)
		close(disconnected)
	}

	if err := sess.Connect(ctx); err != nil {
		return err
	}
	defer sess.Close()

	if dash != nil {
		dash.UpdateState(func(st *web.SessionState) {
			st.Connected = true
			st.Endpoint = endpoint
		})
	}

	fmt.Println("Connected. Press Enter to start/stop talking, Ctrl-C to quit.")

	// Push-to-talk loop: Enter toggles the microphone
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if ctrl.UserSpeaking() {
				if err := ctrl.StopTalking(); err != nil {
					logger.Error("failed to stop talking", "error", err)
				}
				fmt.Println("\n[listening]")
			} else {
				if err := ctrl.StartTalking(ctx); err != nil {
					logger.Error("failed to start talking", "error", err)
					continue
				}
				fmt.Println("[talking]")
			}
		}
	}()

	select {
	case <-ctx.Done():
		ctrl.StopTalking()
		return nil
	case <-disconnected:
		// No automatic reconnect; the session is done
		return nil
	}
}
