// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/studyloop/config.yaml",
	"/etc/studyloop/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns built-in defaults, overridden by the config
// file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8000,
			Timeout: 30 * time.Second,
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			MaxMemory:      1 << 30,  // 1GB
			MaxStore:       10 << 30, // 10GB
		},
		Pipeline: PipelineConfig{
			DurableName:      "quiz-generator",
			QueueGroup:       "quiz-workers",
			SubscribersCount: 1,
			AckWaitTimeout:   5 * time.Minute,
			MaxDeliver:       5,
		},
		QuizLLM: LLMConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.35,
			MaxTokens:   2048,
			Timeout:     90 * time.Second,
		},
		TagLLM: TagLLMConfig{
			BaseURL:            "https://api.groq.com/openai/v1",
			Model:              "llama-3.1-8b-instant",
			MaxTokens:          256,
			Timeout:            60 * time.Second,
			MaxConcurrent:      2,
			MaxTranscriptChars: 6000,
		},
		YouTube: YouTubeConfig{},
		Transcriber: TranscriberConfig{
			DownloadDir:     "downloads",
			DownloadTimeout: 2 * time.Minute,
		},
		Chat: ChatConfig{
			Enabled: false,
			LLM: LLMConfig{
				BaseURL:     "https://api.groq.com/openai/v1",
				Model:       "llama-3.3-70b-versatile",
				Temperature: 0.5,
				MaxTokens:   1024,
				Timeout:     60 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds configuration from layered sources with precedence
// ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables are skipped so stray environment noise cannot
// pollute the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// NATS
		"nats_url":        "nats.url",
		"nats_embedded":   "nats.embedded_server",
		"nats_store_dir":  "nats.store_dir",
		"nats_max_memory": "nats.max_memory",
		"nats_max_store":  "nats.max_store",

		// Pipeline
		"pipeline_durable_name":     "pipeline.durable_name",
		"pipeline_queue_group":      "pipeline.queue_group",
		"pipeline_subscribers":      "pipeline.subscribers_count",
		"pipeline_ack_wait_timeout": "pipeline.ack_wait_timeout",
		"pipeline_max_deliver":      "pipeline.max_deliver",

		// Quiz LLM
		"quiz_llm_base_url":    "quiz_llm.base_url",
		"quiz_llm_api_key":     "quiz_llm.api_key",
		"groq_api_key":         "quiz_llm.api_key",
		"quiz_llm_model":       "quiz_llm.model",
		"quiz_llm_temperature": "quiz_llm.temperature",
		"quiz_llm_max_tokens":  "quiz_llm.max_tokens",
		"quiz_llm_timeout":     "quiz_llm.timeout",

		// Tag LLM
		"tag_llm_base_url":       "tag_llm.base_url",
		"tag_llm_api_key":        "tag_llm.api_key",
		"hf_api_key":             "tag_llm.api_key",
		"tag_llm_model":          "tag_llm.model",
		"tag_llm_max_concurrent": "tag_llm.max_concurrent",
		"tag_llm_transcript_cap": "tag_llm.max_transcript_chars",
		"tag_llm_timeout":        "tag_llm.timeout",

		// YouTube
		"youtube_api_key":       "youtube.api_key",
		"youtube_timedtext_url": "youtube.timed_text_url",

		// Transcriber
		"whisper_server_url": "transcriber.server_url",
		"download_dir":       "transcriber.download_dir",
		"download_timeout":   "transcriber.download_timeout",

		// Chat
		"chat_enabled":         "chat.enabled",
		"chat_postgres_dsn":    "chat.postgres_dsn",
		"chat_llm_base_url":    "chat.llm.base_url",
		"chat_llm_api_key":     "chat.llm.api_key",
		"chat_llm_model":       "chat.llm.model",
		"chat_llm_temperature": "chat.llm.temperature",
		"chat_llm_max_tokens":  "chat.llm.max_tokens",
		"chat_llm_timeout":     "chat.llm.timeout",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
