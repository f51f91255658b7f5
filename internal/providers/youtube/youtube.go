// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

// Package youtube resolves platform metadata and captions for YouTube
// videos. Metadata (tags, category) comes from the YouTube Data API v3;
// captions come from the public timedtext endpoint, which the Data API does
// not expose without OAuth.
package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/studyloop/studyloop/internal/logging"
	"github.com/studyloop/studyloop/internal/metrics"
)

// DefaultTimedTextURL is the public caption endpoint.
const DefaultTimedTextURL = "https://video.google.com/timedtext"

// Config holds YouTube provider settings.
type Config struct {
	// APIKey authenticates against the YouTube Data API v3.
	APIKey string

	// TimedTextURL overrides the caption endpoint, used in tests.
	TimedTextURL string
}

// Metadata is the platform-supplied description of a video.
type Metadata struct {
	VideoID  string
	Category string
	Tags     []string
}

// Client resolves metadata and captions for YouTube videos.
type Client struct {
	svc    *ytapi.Service
	httpc  *http.Client
	cfg    Config
	logger zerolog.Logger
}

// New creates a YouTube client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("youtube API key is required")
	}
	if cfg.TimedTextURL == "" {
		cfg.TimedTextURL = DefaultTimedTextURL
	}

	svc, err := ytapi.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &Client{
		svc:    svc,
		httpc:  &http.Client{Timeout: 30 * time.Second},
		cfg:    cfg,
		logger: logging.With().Str("component", "youtube").Logger(),
	}, nil
}

// Lookup resolves platform metadata for a video locator. An unknown video is
// an error; a video without tags or category is not.
func (c *Client) Lookup(ctx context.Context, videoURL string) (*Metadata, error) {
	videoID, err := ExtractVideoID(videoURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.svc.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	metrics.ProviderRequestDuration.WithLabelValues("youtube").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("videos.list %s: %w", videoID, err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("video %s not found", videoID)
	}

	snippet := resp.Items[0].Snippet
	meta := &Metadata{VideoID: videoID}
	if snippet != nil {
		meta.Tags = snippet.Tags
		meta.Category = c.resolveCategory(ctx, snippet.CategoryId)
	}
	return meta, nil
}

// resolveCategory maps a numeric category id to its display name. Category
// is optional downstream, so lookup failures degrade to empty.
func (c *Client) resolveCategory(ctx context.Context, categoryID string) string {
	if categoryID == "" {
		return ""
	}
	resp, err := c.svc.VideoCategories.List([]string{"snippet"}).Id(categoryID).Context(ctx).Do()
	if err != nil || len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		c.logger.Debug().Str("category_id", categoryID).Msg("Category lookup failed")
		return ""
	}
	return resp.Items[0].Snippet.Title
}

// Fetch retrieves the caption track for a video in the given language.
// A video with captions disabled or no track in that language returns
// ok=false with no error: transcript unavailability is an expected outcome,
// not a fault.
func (c *Client) Fetch(ctx context.Context, videoID, language string) (transcript string, ok bool, err error) {
	u, err := url.Parse(c.cfg.TimedTextURL)
	if err != nil {
		return "", false, err
	}
	q := u.Query()
	q.Set("v", videoID)
	q.Set("lang", language)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", false, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("fetch captions %s: %w", videoID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("caption endpoint status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, err
	}
	// The endpoint answers 200 with an empty body when no track exists.
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", false, nil
	}

	text, err := parseTimedText(body)
	if err != nil {
		return "", false, fmt.Errorf("parse captions %s: %w", videoID, err)
	}
	return text, text != "", nil
}

// timedText matches the timedtext XML document.
type timedText struct {
	XMLName xml.Name `xml:"transcript"`
	Lines   []string `xml:"text"`
}

func parseTimedText(body []byte) (string, error) {
	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " "), nil
}

// ExtractVideoID parses the video identifier out of the common YouTube URL
// forms: watch?v=ID, youtu.be/ID, embed/ID, and shorts/ID.
func ExtractVideoID(videoURL string) (string, error) {
	u, err := url.Parse(videoURL)
	if err != nil {
		return "", fmt.Errorf("parse video URL: %w", err)
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtu.be":
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "youtube-nocookie.com":
		if id := u.Query().Get("v"); id != "" {
			return id, nil
		}
		for _, prefix := range []string{"/embed/", "/shorts/", "/v/"} {
			if strings.HasPrefix(u.Path, prefix) {
				if id := strings.Trim(strings.TrimPrefix(u.Path, prefix), "/"); id != "" {
					return id, nil
				}
			}
		}
	}
	return "", fmt.Errorf("no video id in URL %q", videoURL)
}
