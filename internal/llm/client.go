// ABOUTME: OpenAI-compatible client for embeddings and chat generation
// ABOUTME: Retries each model with backoff, then falls back along an ordered model chain
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harper/bookbuddy/internal/config"
	"github.com/harper/bookbuddy/internal/logger"
	"github.com/harper/bookbuddy/internal/util"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

// Embedder turns text into vectors of a fixed dimension
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float64, error)
}

// Generator produces text from a prompt and system instruction
type Generator interface {
	Generate(ctx context.Context, prompt, system string, opts ...GenerateOption) (string, error)
	GenerateStructured(ctx context.Context, prompt, system string) (string, error)
}

// GenerateOptions tunes a single generation call
type GenerateOptions struct {
	Temperature float32
	MaxTokens   int
	JSON        bool
}

// GenerateOption configures GenerateOptions
type GenerateOption func(*GenerateOptions)

func WithTemperature(t float32) GenerateOption {
	return func(o *GenerateOptions) { o.Temperature = t }
}

func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) { o.MaxTokens = n }
}

// WithJSON asks the provider for a JSON object response
func WithJSON() GenerateOption {
	return func(o *GenerateOptions) { o.JSON = true }
}

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey          string
	BaseURL         string
	ChatModels      []string
	EmbeddingModels []string
	Dimension       int
	MaxRetries      int
	RetryDelay      time.Duration
	Timeout         time.Duration
	Concurrency     int
}

// NewClientConfig derives client settings from application config
func NewClientConfig(cfg *config.Config) *ClientConfig {
	return &ClientConfig{
		APIKey:          cfg.OpenAIKey,
		BaseURL:         cfg.OpenAIBaseURL,
		ChatModels:      cfg.ChatModels,
		EmbeddingModels: cfg.EmbeddingModels,
		Dimension:       cfg.VectorDimension,
		MaxRetries:      cfg.MaxRetries,
		RetryDelay:      cfg.RetryDelay,
		Timeout:         cfg.Timeout,
		Concurrency:     cfg.EmbedConcurrency,
	}
}

// OpenAIClient wraps the OpenAI API client with retry and fallback logic
type OpenAIClient struct {
	client      *openai.Client
	chat        ModelChain
	embedding   ModelChain
	dimension   int
	maxRetries  int
	retryDelay  time.Duration
	timeout     time.Duration
	concurrency int
	log         logger.Logger
}

// NewOpenAIClient creates a client. An API key is required unless a custom
// base URL points at a local OpenAI-compatible server.
func NewOpenAIClient(cfg *ClientConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &OpenAIClient{
		client:      openai.NewClientWithConfig(apiCfg),
		chat:        NewModelChain(cfg.ChatModels, cfg.RetryDelay),
		embedding:   NewModelChain(cfg.EmbeddingModels, cfg.RetryDelay),
		dimension:   cfg.Dimension,
		maxRetries:  max(cfg.MaxRetries, 0),
		retryDelay:  cfg.RetryDelay,
		timeout:     timeout,
		concurrency: max(cfg.Concurrency, 1),
		log:         logger.Component("llm"),
	}
	if len(c.chat.Models) == 0 || len(c.embedding.Models) == 0 {
		return nil, fmt.Errorf("at least one chat model and one embedding model are required")
	}
	return c, nil
}

// Dimension returns the vector size every embedding is validated against
func (c *OpenAIClient) Dimension() int {
	return c.dimension
}

// Embed generates one embedding, falling back across embedding models
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	var vector []float64
	err := c.embedding.Walk(ctx, func(ctx context.Context, model string) error {
		v, err := c.embedWithRetry(ctx, model, text)
		if err != nil {
			c.log.Warn("embedding model failed", "model", model, "error", err)
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	return vector, nil
}

// EmbedMany embeds texts concurrently, bounded by the configured concurrency.
// The whole batch comes from one model: a failure on any text moves the
// entire batch to the next model in the chain. Output order matches input order.
func (c *OpenAIClient) EmbedMany(ctx context.Context, texts []string) ([][]float64, error) {
	var vectors [][]float64
	err := c.embedding.Walk(ctx, func(ctx context.Context, model string) error {
		out, err := c.embedBatch(ctx, model, texts)
		if err != nil {
			c.log.Warn("embedding model failed for batch", "model", model, "texts", len(texts), "error", err)
			return err
		}
		vectors = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	return vectors, nil
}

func (c *OpenAIClient) embedBatch(ctx context.Context, model string, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			v, err := c.embedWithRetry(gctx, model, text)
			if err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (c *OpenAIClient) embedWithRetry(ctx context.Context, model, text string) ([]float64, error) {
	req := openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	}
	// text-embedding-3 models can shorten their output to the stored dimension
	if strings.HasPrefix(model, "text-embedding-3") {
		req.Dimensions = c.dimension
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := util.Sleep(ctx, util.CalculateBackoff(c.retryDelay, attempt)); err != nil {
				return nil, err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.client.CreateEmbeddings(callCtx, req)
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		if len(resp.Data) == 0 {
			lastErr = fmt.Errorf("attempt %d: no embeddings returned", attempt+1)
			continue
		}

		embedding32 := resp.Data[0].Embedding
		if len(embedding32) != c.dimension {
			// A wrong-sized vector will not change on retry
			return nil, fmt.Errorf("invalid embedding dimension: expected %d, got %d", c.dimension, len(embedding32))
		}

		// Convert []float32 to []float64
		embedding64 := make([]float64, len(embedding32))
		for i, v := range embedding32 {
			embedding64[i] = float64(v)
		}
		return embedding64, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// Generate produces a chat completion, falling back across chat models
func (c *OpenAIClient) Generate(ctx context.Context, prompt, system string, opts ...GenerateOption) (string, error) {
	o := GenerateOptions{Temperature: 0.7}
	for _, opt := range opts {
		opt(&o)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	var content string
	err := c.chat.Walk(ctx, func(ctx context.Context, model string) error {
		req := openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			Temperature: o.Temperature,
			MaxTokens:   o.MaxTokens,
		}
		if o.JSON {
			req.ResponseFormat = &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			}
		}

		out, err := c.completeWithRetry(ctx, req)
		if err != nil {
			c.log.Warn("chat model failed", "model", model, "error", err)
			return err
		}
		content = out
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	return content, nil
}

// GenerateStructured requests a JSON object. The output is advisory; callers
// parse it with ParseStructured and keep a plain-text fallback.
func (c *OpenAIClient) GenerateStructured(ctx context.Context, prompt, system string) (string, error) {
	return c.Generate(ctx, prompt, system, WithJSON())
}

func (c *OpenAIClient) completeWithRetry(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := util.Sleep(ctx, util.CalculateBackoff(c.retryDelay, attempt)); err != nil {
				return "", err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.client.CreateChatCompletion(callCtx, req)
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("attempt %d: no completion choices returned", attempt+1)
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries+1, lastErr)
}
