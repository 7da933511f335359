package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/garyjia/expense-capture/internal/infrastructure/external/llm"
	"github.com/garyjia/expense-capture/internal/infrastructure/resilience"
)

// Config holds OpenAI connection settings
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// RequestsPerMinute throttles calls. Zero disables throttling.
	RequestsPerMinute int
	Retry             resilience.RetryConfig
}

// chatClient is the shared completion path of the extractor and planner
type chatClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	prompts *llm.PromptConfig
	logger  *zap.Logger
}

func newChatClient(cfg Config, prompts *llm.PromptConfig, logger *zap.Logger) chatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if prompts == nil {
		prompts = llm.DefaultPrompts()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), 1)
	}

	return chatClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		limiter: limiter,
		retry:   cfg.Retry,
		prompts: prompts,
		logger:  logger,
	}
}

// complete sends one JSON-mode chat request and returns the reply text.
// Rate limits and 5xx replies are retried.
func (c chatClient) complete(ctx context.Context, prompt llm.Prompt, user openai.ChatCompletionMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   prompt.MaxTokens,
		Temperature: prompt.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			user,
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	retry := c.retry
	retry.OnRetry = func(attempt int, err error) {
		c.logger.Warn("Retrying OpenAI call", zap.Int("attempt", attempt), zap.Error(err))
	}

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return openai.ChatCompletionResponse{}, err
		}
		resp, err := c.client.CreateChatCompletion(ctx, req)
		return resp, classify(err)
	})
	if err != nil {
		c.logger.Error("OpenAI API call failed", zap.Error(err))
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

// classify marks retryable API failures as transient
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.HTTPStatusCode) {
		return resilience.NewTransientError(err, apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && resilience.IsTransientHTTPStatus(reqErr.HTTPStatusCode) {
		return resilience.NewTransientError(err, reqErr.HTTPStatusCode)
	}
	return err
}
