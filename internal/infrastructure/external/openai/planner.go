package openai

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
	"github.com/garyjia/expense-capture/internal/infrastructure/external/llm"
)

// Planner implements port.QueryPlanner
type Planner struct {
	chat   chatClient
	logger *zap.Logger
}

// NewPlanner creates a planner. A nil prompts uses the built-in prompts.
func NewPlanner(cfg Config, prompts *llm.PromptConfig, logger *zap.Logger) *Planner {
	return &Planner{
		chat:   newChatClient(cfg, prompts, logger),
		logger: logger,
	}
}

type planPromptData struct {
	Today          string
	Question       string
	Categories     string
	PaymentMethods string
}

// Plan asks the model to structure a question about stored bills
func (p *Planner) Plan(ctx context.Context, question string, today time.Time) (*entity.QueryPlan, error) {
	prompt := p.chat.prompts.QueryPlan
	text, err := prompt.Render(planPromptData{
		Today:          today.Format("2006-01-02"),
		Question:       question,
		Categories:     strings.Join(entity.Categories, ", "),
		PaymentMethods: strings.Join(entity.PaymentMethods, ", "),
	})
	if err != nil {
		return nil, err
	}

	content, err := p.chat.complete(ctx, prompt, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	if err != nil {
		return nil, err
	}

	var plan entity.QueryPlan
	if err := llm.Decode(content, &plan); err != nil {
		p.logger.Error("Failed to parse query plan", zap.Error(err), zap.String("content", content))
		return nil, err
	}
	plan = plan.Normalize()

	p.logger.Info("Query planned",
		zap.String("operation", string(plan.Operation)),
		zap.String("from", plan.From),
		zap.String("to", plan.To))
	return &plan, nil
}

// Verify interface compliance
var _ port.QueryPlanner = (*Planner)(nil)
