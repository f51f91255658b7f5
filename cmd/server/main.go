// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

// Command server runs the Studyloop backend: the lesson quiz generation
// pipeline consuming from JetStream, the optional chat service, and the
// HTTP shell exposing health, readiness, and metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/studyloop/studyloop/internal/api"
	"github.com/studyloop/studyloop/internal/chat"
	"github.com/studyloop/studyloop/internal/config"
	"github.com/studyloop/studyloop/internal/extractor"
	"github.com/studyloop/studyloop/internal/logging"
	"github.com/studyloop/studyloop/internal/pipeline"
	"github.com/studyloop/studyloop/internal/providers/quizgen"
	"github.com/studyloop/studyloop/internal/providers/tagging"
	"github.com/studyloop/studyloop/internal/providers/transcribe"
	"github.com/studyloop/studyloop/internal/providers/youtube"
	"github.com/studyloop/studyloop/internal/supervisor"
	"github.com/studyloop/studyloop/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Bool("nats_embedded", cfg.NATS.EmbeddedServer).
		Bool("chat_enabled", cfg.Chat.Enabled).
		Msg("Starting Studyloop")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Broker: embedded JetStream by default, external when configured.
	natsURL := cfg.NATS.URL
	var embedded *pipeline.EmbeddedServer
	if cfg.NATS.EmbeddedServer {
		serverCfg := pipeline.DefaultServerConfig()
		if cfg.NATS.StoreDir != "" {
			serverCfg.StoreDir = cfg.NATS.StoreDir
		}
		if cfg.NATS.MaxMemory > 0 {
			serverCfg.JetStreamMaxMem = cfg.NATS.MaxMemory
		}
		if cfg.NATS.MaxStore > 0 {
			serverCfg.JetStreamMaxStore = cfg.NATS.MaxStore
		}

		embedded, err = pipeline.NewEmbeddedServer(&serverCfg)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
			}
		}()
		natsURL = embedded.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server ready")
	}

	nc, err := nats.Connect(natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		logging.Fatal().Err(err).Str("url", natsURL).Msg("Failed to connect to NATS")
	}
	defer nc.Close()

	streamCfg := pipeline.DefaultStreamConfig()
	streams, err := pipeline.NewStreamManager(nc, &streamCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create stream manager")
	}
	if _, err := streams.EnsureStream(ctx); err != nil {
		logging.Fatal().Err(err).Str("stream", streamCfg.Name).Msg("Failed to ensure stream")
	}
	logging.Info().Str("stream", streamCfg.Name).Msg("JetStream stream ready")

	wmLogger := pipeline.NewWatermillLogger()

	subCfg := pipeline.DefaultSubscriberConfig(natsURL)
	subCfg.StreamName = streamCfg.Name
	if cfg.Pipeline.DurableName != "" {
		subCfg.DurableName = cfg.Pipeline.DurableName
	}
	if cfg.Pipeline.QueueGroup != "" {
		subCfg.QueueGroup = cfg.Pipeline.QueueGroup
	}
	if cfg.Pipeline.SubscribersCount > 0 {
		subCfg.SubscribersCount = cfg.Pipeline.SubscribersCount
	}
	if cfg.Pipeline.AckWaitTimeout > 0 {
		subCfg.AckWaitTimeout = cfg.Pipeline.AckWaitTimeout
	}
	if cfg.Pipeline.MaxDeliver > 0 {
		subCfg.MaxDeliver = cfg.Pipeline.MaxDeliver
	}

	subscriber, err := pipeline.NewSubscriber(&subCfg, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create subscriber")
	}
	defer func() {
		if err := subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing subscriber")
		}
	}()

	publisher, err := pipeline.NewPublisher(pipeline.DefaultPublisherConfig(natsURL), wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create publisher")
	}
	publisher.SetCircuitBreaker(pipeline.NewCircuitBreaker(
		pipeline.DefaultCircuitBreakerConfig("quiz-events"),
	))
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
	}()

	// Extraction providers.
	ytClient, err := youtube.New(ctx, youtube.Config{
		APIKey:       cfg.YouTube.APIKey,
		TimedTextURL: cfg.YouTube.TimedTextURL,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create YouTube client")
	}

	quizGen := quizgen.New(quizgen.Config{
		BaseURL:        cfg.QuizLLM.BaseURL,
		APIKey:         cfg.QuizLLM.APIKey,
		Model:          cfg.QuizLLM.Model,
		Temperature:    float32(cfg.QuizLLM.Temperature),
		MaxTokens:      cfg.QuizLLM.MaxTokens,
		RequestTimeout: cfg.QuizLLM.Timeout,
	})

	tagGen := tagging.New(tagging.Config{
		BaseURL:            cfg.TagLLM.BaseURL,
		APIKey:             cfg.TagLLM.APIKey,
		Model:              cfg.TagLLM.Model,
		MaxConcurrent:      cfg.TagLLM.MaxConcurrent,
		MaxTranscriptChars: cfg.TagLLM.MaxTranscriptChars,
		RequestTimeout:     cfg.TagLLM.Timeout,
	})

	transcriber, err := transcribe.New(transcribe.Config{
		ServerURL:       cfg.Transcriber.ServerURL,
		DownloadDir:     cfg.Transcriber.DownloadDir,
		DownloadTimeout: cfg.Transcriber.DownloadTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create transcription client")
	}

	selector := extractor.NewSelector(
		extractor.NewYouTubeStrategy(ytClient, ytClient, quizGen),
		extractor.NewHostedStrategy(transcriber, quizGen, tagGen),
	)

	runner := pipeline.NewRunner(subscriber, publisher, selector, transcriber)

	readiness := map[string]api.ReadinessChecker{
		"broker": api.ReadinessFunc(func(_ context.Context) error {
			if status := nc.Status(); status != nats.CONNECTED {
				return fmt.Errorf("nats connection %s", status)
			}
			return nil
		}),
	}

	// Chat service, optional.
	var chatRoutes api.ChatRoutes
	if cfg.Chat.Enabled {
		store, err := chat.Open(cfg.Chat.PostgresDSN)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open chat store")
		}
		defer func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing chat store")
			}
		}()

		responder, err := chat.NewResponder(responderConfig(cfg.Chat.LLM))
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create chat responder")
		}

		chatRoutes = chat.NewHandlers(store, responder)
		readiness["chat-db"] = api.ReadinessFunc(store.Ping)
		logging.Info().Msg("Chat service enabled")
	}

	router := api.NewRouter(readiness, chatRoutes)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(services.NewPipelineService(runner))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Studyloop stopped")
}

// responderConfig maps the chat LLM settings onto the responder,
// keeping defaults for anything unset.
func responderConfig(llm config.LLMConfig) chat.ResponderConfig {
	rc := chat.DefaultResponderConfig()
	rc.APIKey = llm.APIKey
	if llm.BaseURL != "" {
		rc.BaseURL = llm.BaseURL
	}
	if llm.Model != "" {
		rc.Model = llm.Model
	}
	if llm.Temperature > 0 {
		rc.Temperature = float32(llm.Temperature)
	}
	if llm.MaxTokens > 0 {
		rc.MaxTokens = llm.MaxTokens
	}
	if llm.Timeout > 0 {
		rc.RequestTimeout = llm.Timeout
	}
	return rc
}
