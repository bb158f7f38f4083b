// Package gemini wraps the Google GenAI SDK behind the two calls the
// engine needs: text embedding and answer generation. All requests go
// through a shared rate limiter so batch ingestion cannot starve chat.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/AskCampusAI/askcampus-mvp/pkg/fn"
)

const (
	// DefaultEmbedModel produces 768-dimensional embeddings.
	DefaultEmbedModel = "text-embedding-004"
	// EmbedDims is the dimensionality of DefaultEmbedModel vectors.
	EmbedDims = 768

	DefaultGenModel = "gemini-2.0-flash"

	// defaultRPM is conservative against the free-tier quota.
	defaultRPM = 60
)

// apiRetry covers transient 429s and 5xx responses from the API.
var apiRetry = fn.RetryOpts{
	MaxAttempts: 3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     5 * time.Second,
	Jitter:      true,
}

// Config configures a Client. Zero values fall back to defaults; only
// APIKey is required.
type Config struct {
	APIKey     string
	EmbedModel string
	GenModel   string
	// RequestsPerMinute caps the combined embed and generate call rate.
	RequestsPerMinute int
}

// Client is a rate-limited Gemini API client.
type Client struct {
	client     *genai.Client
	embedModel string
	genModel   string
	limiter    *rate.Limiter
}

// New creates a Client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if cfg.GenModel == "" {
		cfg.GenModel = DefaultGenModel
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRPM
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Client{
		client:     client,
		embedModel: cfg.EmbedModel,
		genModel:   cfg.GenModel,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}, nil
}

// Embed returns one embedding per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gemini: embed: %w", err)
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	result := fn.Retry(ctx, apiRetry, func(ctx context.Context) fn.Result[*genai.EmbedContentResponse] {
		return fn.FromPair(c.client.Models.EmbedContent(ctx, c.embedModel, contents, nil))
	})
	resp, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("gemini: embed %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: embed: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

// EmbedQuery embeds a single text.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Generate produces a completion for the prompt.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}

	result := fn.Retry(ctx, apiRetry, func(ctx context.Context) fn.Result[*genai.GenerateContentResponse] {
		return fn.FromPair(c.client.Models.GenerateContent(ctx, c.genModel, genai.Text(prompt), &genai.GenerateContentConfig{
			Temperature: genai.Ptr(temperature),
		}))
	})
	resp, err := result.Unwrap()
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	return resp.Text(), nil
}

// GenerateStream produces a completion token by token, calling onToken
// for each fragment, and returns the full concatenated text.
func (c *Client) GenerateStream(ctx context.Context, prompt string, temperature float32, onToken func(string) error) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("gemini: generate stream: %w", err)
	}

	var sb strings.Builder
	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.genModel, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}) {
		if err != nil {
			return "", fmt.Errorf("gemini: generate stream: %w", err)
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		sb.WriteString(text)
		if err := onToken(text); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}
