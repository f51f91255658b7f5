// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

// Package config loads layered service configuration: built-in
// defaults, an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"time"
)

// Config is the root service configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	NATS        NATSConfig        `koanf:"nats"`
	Pipeline    PipelineConfig    `koanf:"pipeline"`
	QuizLLM     LLMConfig         `koanf:"quiz_llm"`
	TagLLM      TagLLMConfig      `koanf:"tag_llm"`
	YouTube     YouTubeConfig     `koanf:"youtube"`
	Transcriber TranscriberConfig `koanf:"transcriber"`
	Chat        ChatConfig        `koanf:"chat"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds the HTTP shell settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// NATSConfig holds broker settings. With EmbeddedServer the service
// runs its own JetStream instance; otherwise URL points at an external
// broker.
type NATSConfig struct {
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`
}

// PipelineConfig holds quiz pipeline consumer settings.
type PipelineConfig struct {
	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	SubscribersCount int           `koanf:"subscribers_count"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`
	MaxDeliver       int           `koanf:"max_deliver"`
}

// LLMConfig holds settings for an OpenAI-compatible completion
// endpoint.
type LLMConfig struct {
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Model       string        `koanf:"model"`
	Temperature float64       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
	Timeout     time.Duration `koanf:"timeout"`
}

// TagLLMConfig holds the tag-generation endpoint settings plus its
// admission gate. The LLM fields are spelled out rather than embedded:
// the struct-defaults provider nests embedded structs under their type
// name, stranding the defaults away from the tag_llm.* keys the other
// layers use.
type TagLLMConfig struct {
	BaseURL            string        `koanf:"base_url"`
	APIKey             string        `koanf:"api_key"`
	Model              string        `koanf:"model"`
	Temperature        float64       `koanf:"temperature"`
	MaxTokens          int           `koanf:"max_tokens"`
	Timeout            time.Duration `koanf:"timeout"`
	MaxConcurrent      int64         `koanf:"max_concurrent"`
	MaxTranscriptChars int           `koanf:"max_transcript_chars"`
}

// YouTubeConfig holds YouTube Data API settings.
type YouTubeConfig struct {
	APIKey       string `koanf:"api_key"`
	TimedTextURL string `koanf:"timed_text_url"`
}

// TranscriberConfig holds hosted-video transcription settings.
type TranscriberConfig struct {
	ServerURL       string        `koanf:"server_url"`
	DownloadDir     string        `koanf:"download_dir"`
	DownloadTimeout time.Duration `koanf:"download_timeout"`
}

// ChatConfig holds the optional chat service settings.
type ChatConfig struct {
	Enabled     bool      `koanf:"enabled"`
	PostgresDSN string    `koanf:"postgres_dsn"`
	LLM         LLMConfig `koanf:"llm"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.embedded_server is false")
	}
	if c.QuizLLM.APIKey == "" {
		return fmt.Errorf("quiz_llm.api_key is required")
	}
	if c.Pipeline.SubscribersCount < 1 {
		return fmt.Errorf("pipeline.subscribers_count must be at least 1")
	}
	if c.Chat.Enabled {
		if c.Chat.PostgresDSN == "" {
			return fmt.Errorf("chat.postgres_dsn is required when chat.enabled")
		}
		if c.Chat.LLM.APIKey == "" {
			return fmt.Errorf("chat.llm.api_key is required when chat.enabled")
		}
	}
	return nil
}
