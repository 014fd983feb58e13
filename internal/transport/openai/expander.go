package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/prepgenie/pyqsearch/internal/domain"
)

const expandSystemPrompt = "You are an expert in competitive civil-services examinations. " +
	"Expand search queries to include related concepts and synonyms for finding " +
	"relevant previous year exam questions."

const expandPromptTemplate = `Expand this search query: %q

Include:
1. Related exam concepts
2. Alternative terminology
3. Governance and policy context
4. Synonyms and variations

Return only the expanded query text, no explanations.`

// Expander rewrites a raw query with exam-domain context via an LLM to
// improve embedding recall. Failures are soft: the orchestrator falls back
// to the raw query.
type Expander struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// StageConfig holds the settings for an LLM chat stage.
type StageConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewExpander creates an LLM-backed query expander.
func NewExpander(cfg *StageConfig) *Expander {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Expander{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: timeout,
		logger:  cfg.Logger,
	}
}

// Expand returns an expanded form of the raw query. Errors wrap
// domain.ErrExpansionUnavailable.
func (e *Expander) Expand(ctx context.Context, rawQuery string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   150,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: expandSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(expandPromptTemplate, rawQuery)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: expand chat completion: %w", domain.ErrExpansionUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty expansion response", domain.ErrExpansionUnavailable)
	}

	expanded := strings.TrimSpace(resp.Choices[0].Message.Content)
	if expanded == "" {
		return "", fmt.Errorf("%w: blank expansion", domain.ErrExpansionUnavailable)
	}

	e.logger.Debug("query expanded",
		zap.String("raw", rawQuery),
		zap.Int("expanded_len", len(expanded)),
	)
	return expanded, nil
}
