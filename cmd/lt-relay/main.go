package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pitwall/lt-relay/internal/api"
	"github.com/pitwall/lt-relay/internal/config"
	"github.com/pitwall/lt-relay/internal/ingest"
	"github.com/pitwall/lt-relay/internal/metrics"
	"github.com/pitwall/lt-relay/internal/mqttpub"
	"github.com/pitwall/lt-relay/internal/replay"
	"github.com/pitwall/lt-relay/internal/signalr"
	"github.com/pitwall/lt-relay/internal/state"
	"github.com/pitwall/lt-relay/internal/ws"
)

var version = "dev"

func main() {
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env", "", "path to .env file")
	flag.StringVar(&overrides.Mode, "mode", "", "run mode: LIVE or REPLAY")
	flag.StringVar(&overrides.ReplayFile, "replay-file", "", "recorded session to replay")
	flag.Float64Var(&overrides.ReplaySpeed, "replay-speed", 0, "replay pacing multiplier")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "http listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level: trace|debug|info|warn|error")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Str("mode", cfg.Mode).Msg("lt-relay starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session store and fan-out hub
	st := state.New(log)
	hub := ws.NewHub(st, log)

	// MQTT mirror, optional: a broker outage never blocks the relay
	var mirror *mqttpub.Publisher
	if cfg.MQTTBrokerURL != "" {
		mirror, err = mqttpub.Connect(mqttpub.Options{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			Log:         log,
		})
		if err != nil {
			log.Warn().Err(err).Msg("mqtt mirror unavailable, continuing without it")
			mirror = nil
		}
	}

	// Ingest pipeline
	pipeOpts := ingest.Options{Store: st, Bus: hub, Mode: cfg.Mode, Log: log}
	if mirror != nil {
		pipeOpts.Mirror = mirror
	}
	pipe := ingest.NewPipeline(pipeOpts)
	pipe.Start()

	// Frame source: the upstream feed or a recorded session
	errCh := make(chan error, 2)
	var recorder *replay.Recorder
	switch cfg.Mode {
	case config.ModeLive:
		client := signalr.New(signalr.Options{BaseURL: cfg.BaseURL, Log: log})
		onText, onBinary := signalr.TextHandler(pipe.HandleText), signalr.BinaryHandler(pipe.HandleBinary)
		if cfg.CaptureFilePath != "" {
			recorder, err = replay.NewRecorder(cfg.CaptureFilePath, log)
			if err != nil {
				log.Fatal().Err(err).Str("path", cfg.CaptureFilePath).Msg("failed to open capture file")
			}
			onText = func(frame string, at time.Time) {
				recorder.RecordText(frame, at)
				pipe.HandleText(frame, at)
			}
			onBinary = func(data []byte, at time.Time) {
				recorder.RecordBinary(data, at)
				pipe.HandleBinary(data, at)
			}
		}
		client.SetHandlers(onText, onBinary)
		pipe.SetConnected(client.IsConnected)
		go func() { errCh <- client.Run(ctx) }()
	case config.ModeReplay:
		player := replay.NewPlayer(replay.Options{
			Path:     cfg.ReplayFilePath,
			Speed:    cfg.ReplaySpeed,
			OnText:   pipe.HandleText,
			OnBinary: pipe.HandleBinary,
			Log:      log,
		})
		go func() {
			err := player.Run(ctx)
			if err == nil {
				log.Info().Msg("replay finished")
			}
			errCh <- err
		}()
	}

	// Derived-state metrics scrape alongside the counters
	prometheus.MustRegister(metrics.NewCollector(pipe, hub))

	// HTTP server
	srv := api.NewServer(api.ServerOptions{
		Config:  cfg,
		Store:   st,
		Live:    pipe,
		Stream:  hub,
		Subs:    hub,
		Version: version,
		Log:     log,
	})
	go func() { errCh <- srv.Start() }()

	// Wait for shutdown signal, source completion, or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("runtime error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	pipe.Stop()
	hub.Close()
	if mirror != nil {
		mirror.Close()
	}
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.Error().Err(err).Msg("capture file close error")
		}
	}

	writeFinalState(st, cfg.StateFile, log)
	log.Info().Msg("lt-relay stopped")
}

// writeFinalState persists the store so a session survives for later
// inspection or replay comparison.
func writeFinalState(st *state.Store, path string, log zerolog.Logger) {
	if path == "" {
		return
	}
	data, err := json.MarshalIndent(st.Snapshot(), "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("final state marshal failed")
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Error().Err(err).Str("path", path).Msg("final state write failed")
		return
	}
	log.Info().Str("path", path).Msg("final state written")
}
