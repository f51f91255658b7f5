// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

// Package transcribe adapts a Whisper-compatible inference server into the
// pipeline's transcription provider. The hosted video is downloaded to a
// local temp file, posted as multipart form data, and the resulting text
// returned together with the artifact path so the runner can delete it after
// event publication.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/studyloop/studyloop/internal/logging"
	"github.com/studyloop/studyloop/internal/metrics"
)

// Config holds transcription settings.
type Config struct {
	// ServerURL is the Whisper inference endpoint, e.g.
	// http://whisper:9000/inference.
	ServerURL string

	// DownloadDir receives temporary video files. Created if missing.
	DownloadDir string

	// DownloadTimeout bounds the video fetch; transcription itself is
	// bounded by the caller's context.
	DownloadTimeout time.Duration
}

// DefaultConfig returns production defaults for the transcription provider.
func DefaultConfig() Config {
	return Config{
		DownloadDir:     "downloads",
		DownloadTimeout: 2 * time.Minute,
	}
}

// Transcription is the provider output: the text plus the local artifact
// that produced it. Artifact cleanup is the caller's responsibility.
type Transcription struct {
	Text     string
	Artifact string
}

// Client talks to the transcription server.
type Client struct {
	httpc  *http.Client
	cfg    Config
	logger zerolog.Logger
}

// New creates a transcription client and ensures the download directory
// exists.
func New(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("transcriber server URL is required")
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = "downloads"
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0o750); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	return &Client{
		httpc:  &http.Client{},
		cfg:    cfg,
		logger: logging.With().Str("component", "transcribe").Logger(),
	}, nil
}

// Transcribe downloads the video and runs it through the inference server.
// On success the returned Transcription carries the local artifact path even
// though the file is no longer needed, so the runner can release it after
// publication. If transcription fails after a successful download, the
// artifact path is returned alongside the error for the same reason.
func (c *Client) Transcribe(ctx context.Context, videoURL, language string) (Transcription, error) {
	path, err := c.download(ctx, videoURL)
	if err != nil {
		return Transcription{}, fmt.Errorf("download video: %w", err)
	}

	start := time.Now()
	text, err := c.infer(ctx, path, language)
	metrics.ProviderRequestDuration.WithLabelValues("transcribe").Observe(time.Since(start).Seconds())
	if err != nil {
		return Transcription{Artifact: path}, fmt.Errorf("transcribe %s: %w", videoURL, err)
	}

	return Transcription{Text: text, Artifact: path}, nil
}

// Cleanup removes a downloaded artifact. Missing files are not an error.
func (c *Client) Cleanup(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove artifact %s: %w", path, err)
	}
	return nil
}

func (c *Client) download(ctx context.Context, videoURL string) (string, error) {
	if c.cfg.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.DownloadTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	path := filepath.Join(c.cfg.DownloadDir, uuid.NewString()+".mp4")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}

	c.logger.Debug().Str("path", path).Msg("Video downloaded")
	return path, nil
}

// inferenceResponse matches the whisper-server JSON reply.
type inferenceResponse struct {
	Text string `json:"text"`
}

func (c *Client) infer(ctx context.Context, path, language string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := mw.WriteField("language", language); err != nil {
		return "", err
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServerURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("inference server status %d: %s", resp.StatusCode, data)
	}

	var decoded inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode inference response: %w", err)
	}
	return decoded.Text, nil
}
