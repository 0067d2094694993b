/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package imagegen talks to an OpenAI-compatible image generation API and
// degrades to a fixed fallback image when the API is unavailable.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Seednode/promptbox/internal/game"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultModel    = "dall-e-2"
	DefaultSize     = "512x512"
	DefaultFallback = game.ImageRef("/fallback.svg")

	generationsPath = "/images/generations"
	maxErrorBody    = 1 << 20
)

type generationRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type generationResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

type packageRand struct{}

func (packageRand) IntN(n int) int { return rand.IntN(n) }

// Client implements game.Gateway. With no base URL it runs offline and
// answers every request with the fallback image.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	size       string
	fallback   game.ImageRef
	httpClient *http.Client
	rand       game.Rand
	log        zerolog.Logger
}

var _ game.Gateway = (*Client)(nil)

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithTimeout bounds every request, including reading the response.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithFallback(img game.ImageRef) Option {
	return func(c *Client) {
		if img != "" {
			c.fallback = img
		}
	}
}

func WithModel(model, size string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
		if size != "" {
			c.size = size
		}
	}
}

func WithRand(r game.Rand) Option {
	return func(c *Client) { c.rand = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    DefaultModel,
		size:     DefaultSize,
		fallback: DefaultFallback,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		rand: packageRand{},
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Offline reports whether the client has no backend configured.
func (c *Client) Offline() bool { return c.baseURL == "" }

func (c *Client) Fallback() game.ImageRef { return c.fallback }

// GenerateOriginal picks a prompt for category and renders it. It never
// fails: any backend error yields the fallback image with the chosen prompt.
func (c *Client) GenerateOriginal(ctx context.Context, category string) (game.Original, error) {
	prompt := PromptFor(c.rand, category)

	if c.Offline() {
		return game.Original{Prompt: prompt, Image: c.fallback}, nil
	}

	img, err := c.generate(ctx, prompt)
	if err != nil {
		c.log.Warn().Err(err).Str("category", category).Msg("IMAGES: Original generation failed, using fallback")
		return game.Original{Prompt: prompt, Image: c.fallback}, nil
	}

	return game.Original{Prompt: prompt, Image: img}, nil
}

// GenerateFromPrompt renders a player's prompt. Backend errors are returned
// so the caller can record the player as having no image; offline clients
// return the fallback.
func (c *Client) GenerateFromPrompt(ctx context.Context, prompt string) (game.ImageRef, error) {
	if c.Offline() {
		return c.fallback, nil
	}

	img, err := c.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("imagegen.GenerateFromPrompt: %w", err)
	}

	return img, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (game.ImageRef, error) {
	start := time.Now()

	data, err := json.Marshal(generationRequest{
		Model:  c.model,
		Prompt: prompt,
		N:      1,
		Size:   c.size,
	})
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generationsPath, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			return "", &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
		}
		return "", &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var out generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(out.Data) == 0 {
		return "", ErrNoImage
	}

	var img game.ImageRef
	switch {
	case out.Data[0].URL != "":
		img = game.ImageRef(out.Data[0].URL)
	case out.Data[0].B64JSON != "":
		img = game.ImageRef("data:image/png;base64," + out.Data[0].B64JSON)
	default:
		return "", ErrNoImage
	}

	c.log.Debug().Dur("took", time.Since(start)).Msg("IMAGES: Generated image")

	return img, nil
}
