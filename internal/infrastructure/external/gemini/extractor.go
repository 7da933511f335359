// Package gemini implements bill extraction on the Gemini API, which reads
// PDFs and images inline without rasterizing.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/infrastructure/document"
	"github.com/garyjia/expense-capture/internal/infrastructure/external/llm"
	"github.com/garyjia/expense-capture/internal/infrastructure/resilience"
)

// Config holds Gemini connection settings
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerMinute int
	Retry             resilience.RetryConfig
}

// Extractor implements port.DocumentExtractor
type Extractor struct {
	client  *genai.Client
	model   string
	prompts *llm.PromptConfig
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	logger  *zap.Logger
}

// NewExtractor creates a Gemini extractor. A nil prompts uses the built-in prompts.
func NewExtractor(ctx context.Context, cfg Config, prompts *llm.PromptConfig, logger *zap.Logger) (*Extractor, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if prompts == nil {
		prompts = llm.DefaultPrompts()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), 1)
	}

	return &Extractor{
		client:  client,
		model:   cfg.Model,
		prompts: prompts,
		limiter: limiter,
		retry:   cfg.Retry,
		logger:  logger,
	}, nil
}

// Extract sends the document inline and decodes the bill the model returns
func (e *Extractor) Extract(ctx context.Context, file port.UploadFile) (*port.Extraction, error) {
	mime := document.DetectMIME(file)
	switch mime {
	case "application/pdf", "image/jpeg", "image/png":
	default:
		return nil, fmt.Errorf("%w: %s", document.ErrUnsupportedType, mime)
	}

	prompt := e.prompts.Extraction
	text, err := prompt.Render(llm.NewExtractionPromptData(""))
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{Text: text},
				{InlineData: &genai.Blob{MIMEType: mime, Data: file.Data}},
			},
		},
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: prompt.System}}},
		Temperature:       genai.Ptr(prompt.Temperature),
		MaxOutputTokens:   int32(prompt.MaxTokens),
		ResponseMIMEType:  "application/json",
	}

	e.logger.Info("Extracting bill with Gemini",
		zap.String("file", file.Name),
		zap.String("mime_type", mime))

	retry := e.retry
	retry.OnRetry = func(attempt int, err error) {
		e.logger.Warn("Retrying Gemini call", zap.Int("attempt", attempt), zap.Error(err))
	}

	content, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", err
		}
		resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, config)
		if err != nil {
			return "", classify(err)
		}
		return resp.Text(), nil
	})
	if err != nil {
		e.logger.Error("Gemini call failed", zap.Error(err))
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if content == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	ext, err := llm.DecodeExtraction(content, "")
	if err != nil {
		e.logger.Error("Failed to parse Gemini response", zap.Error(err), zap.String("content", content))
		return nil, err
	}
	return ext, nil
}

func classify(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}
	if resilience.IsTransientHTTPStatus(code) {
		return resilience.NewTransientError(err, code)
	}
	return err
}

// Verify interface compliance
var _ port.DocumentExtractor = (*Extractor)(nil)
