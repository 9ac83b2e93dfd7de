// ABOUTME: OpenAI client for embeddings and chat completions
// ABOUTME: Bounds every call with a timeout, retries transient failures, and paces embedding batches
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BASF-LSU-Collaborations/ragui/internal/config"
	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/util"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default model for embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
)

var (
	errEmptyInput    = errors.New("empty input")
	errEmptyResponse = errors.New("empty response from API")
)

// API is the subset of the go-openai client this package calls
type API interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Message is one chat turn sent to the model
type Message struct {
	Role    string
	Content string
}

// Chat roles
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// ChatOptions tunes a single completion
type ChatOptions struct {
	Temperature float32
	MaxTokens   int
}

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel openai.EmbeddingModel
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	BatchSize      int
	BatchDelay     time.Duration
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) ClientConfig {
	return ClientConfig{
		APIKey:         apiKey,
		ChatModel:      DefaultChatModel,
		EmbeddingModel: DefaultEmbeddingModel,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
		BatchSize:      100,
		BatchDelay:     500 * time.Millisecond,
	}
}

// ConfigFrom maps service configuration onto client settings
func ConfigFrom(cfg *config.Config) ClientConfig {
	return ClientConfig{
		APIKey:         cfg.OpenAIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
		BatchSize:      cfg.BatchSize,
		BatchDelay:     cfg.BatchDelay,
	}
}

// OpenAIClient wraps the OpenAI API client with retry logic
type OpenAIClient struct {
	api            API
	chatModel      string
	embeddingModel openai.EmbeddingModel
	timeout        time.Duration
	retry          util.RetryPolicy
	batchSize      int
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// NewOpenAIClient creates a client that talks to the OpenAI API
func NewOpenAIClient(cfg ClientConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return NewOpenAIClientWithAPI(openai.NewClientWithConfig(oc), cfg, logger), nil
}

// NewOpenAIClientWithAPI creates a client over any API implementation
func NewOpenAIClientWithAPI(api API, cfg ClientConfig, logger *zap.Logger) *OpenAIClient {
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.BatchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.BatchDelay), 1)
	}

	return &OpenAIClient{
		api:            api,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		timeout:        cfg.Timeout,
		retry: util.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryDelay,
			Retryable:  isTransient,
		},
		batchSize: cfg.BatchSize,
		limiter:   limiter,
		logger:    logging.OrNop(logger).Named("openai"),
	}
}

// ModelName returns the embedding model identifier
func (c *OpenAIClient) ModelName() string {
	return string(c.embeddingModel)
}

// Embed converts one text into a vector
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.NewOpError("embed", models.ErrEmbedding, errEmptyInput)
	}
	vectors, err := c.embedOnce(ctx, []string{text})
	if err != nil {
		return nil, models.NewOpError("embed", models.ErrEmbedding, err)
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in order, one request per batch. Batches are sent
// sequentially and paced by the configured inter-batch delay.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, models.NewOpError("embed_batch", models.ErrEmbedding, errEmptyInput)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, models.NewOpError("embed_batch", models.ErrEmbedding, fmt.Errorf("text %d: %w", i, errEmptyInput))
		}
	}

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, models.NewOpError("embed_batch", models.ErrEmbedding, err)
		}

		vectors, err := c.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, models.NewOpError("embed_batch", models.ErrEmbedding, fmt.Errorf("batch starting at %d: %w", start, err))
		}
		out = append(out, vectors...)

		c.logger.Debug("embedded batch",
			zap.Int("start", start),
			zap.Int("size", end-start),
			zap.Int("total", len(texts)))
	}
	return out, nil
}

func (c *OpenAIClient) embedOnce(ctx context.Context, texts []string) ([][]float64, error) {
	var vectors [][]float64
	err := c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.api.CreateEmbeddings(callCtx, openai.EmbeddingRequestStrings{
			Input: texts,
			Model: c.embeddingModel,
		})
		if err != nil {
			err = c.deadline(callCtx, err)
			c.logger.Warn("embedding request failed", zap.Int("attempt", attempt+1), zap.Error(err))
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("%w: got %d embeddings for %d inputs", errEmptyResponse, len(resp.Data), len(texts))
		}

		// The API reports each vector's input position; order by it rather than by arrival
		vectors = make([][]float64, len(texts))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(texts) || vectors[d.Index] != nil {
				return fmt.Errorf("%w: bad embedding index %d", errEmptyResponse, d.Index)
			}
			vectors[d.Index] = toFloat64(d.Embedding)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// Chat sends messages to the chat model and returns the trimmed reply
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	if len(messages) == 0 {
		return "", models.NewOpError("chat", models.ErrGeneration, errEmptyInput)
	}

	req := openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	var content string
	err := c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.api.CreateChatCompletion(callCtx, req)
		if err != nil {
			err = c.deadline(callCtx, err)
			c.logger.Warn("chat request failed", zap.Int("attempt", attempt+1), zap.Error(err))
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: no completion choices returned", errEmptyResponse)
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", models.NewOpError("chat", models.ErrGeneration, err)
	}
	return content, nil
}

// deadline tags errors caused by the per-call timeout so they surface as timeouts
func (c *OpenAIClient) deadline(callCtx context.Context, err error) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", context.DeadlineExceeded, c.timeout, err)
	}
	return err
}

// isTransient reports whether a failed call is worth retrying
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errEmptyResponse) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	// Network failures carry no status
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError || code == 0
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
