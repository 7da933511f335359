// Package openai implements bill extraction and query planning on the
// OpenAI chat completions API.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/infrastructure/document"
	"github.com/garyjia/expense-capture/internal/infrastructure/external/llm"
)

// Extractor implements port.DocumentExtractor with a vision model
type Extractor struct {
	chat     chatClient
	renderer *document.Renderer
	logger   *zap.Logger
}

// NewExtractor creates an extractor. A nil prompts uses the built-in prompts.
func NewExtractor(cfg Config, prompts *llm.PromptConfig, renderer *document.Renderer, logger *zap.Logger) *Extractor {
	return &Extractor{
		chat:     newChatClient(cfg, prompts, logger),
		renderer: renderer,
		logger:   logger,
	}
}

// Extract renders the upload and asks the model for the bill it shows
func (e *Extractor) Extract(ctx context.Context, file port.UploadFile) (*port.Extraction, error) {
	rendered, err := e.renderer.Render(file)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare document: %w", err)
	}

	e.logger.Info("Extracting bill with Vision API",
		zap.String("file", file.Name),
		zap.String("mime_type", rendered.MIMEType),
		zap.Int("pages", len(rendered.Pages)))

	prompt := e.chat.prompts.Extraction
	text, err := prompt.Render(llm.NewExtractionPromptData(rendered.Text))
	if err != nil {
		return nil, err
	}

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: text}}
	for _, page := range rendered.Pages {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:%s;base64,%s", page.MIMEType, base64.StdEncoding.EncodeToString(page.Data)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	content, err := e.chat.complete(ctx, prompt, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	})
	if err != nil {
		return nil, err
	}

	ext, err := llm.DecodeExtraction(content, rendered.Text)
	if err != nil {
		e.logger.Error("Failed to parse Vision API response",
			zap.Error(err),
			zap.String("content", content))
		return nil, err
	}

	e.logger.Info("Bill extracted",
		zap.String("file", file.Name),
		zap.String("vendor", ext.Draft.Vendor),
		zap.Int("items", len(ext.Draft.Items)),
		zap.Int("raw_text_length", len(ext.RawText)))
	return ext, nil
}

// Verify interface compliance
var _ port.DocumentExtractor = (*Extractor)(nil)
