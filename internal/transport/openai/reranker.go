package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/prepgenie/pyqsearch/internal/domain"
	"github.com/prepgenie/pyqsearch/internal/domain/search/candidate"
)

const rerankSystemPrompt = "You rank exam questions by relevance to a search query. " +
	"Respond with a JSON array of the question numbers in order of decreasing " +
	"relevance, nothing else. Example: [3,1,2]"

// Reranker reorders a bounded candidate prefix with a listwise LLM call.
// Failures are soft: the orchestrator keeps the similarity-only ordering.
type Reranker struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewReranker creates an LLM-backed re-ranker.
func NewReranker(cfg *StageConfig) *Reranker {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Reranker{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: timeout,
		logger:  cfg.Logger,
	}
}

// Rerank returns the candidates annotated with rerank scores and reordered
// by them, most relevant first. Errors (transport or malformed model output)
// wrap domain.ErrRerankUnavailable.
func (r *Reranker) Rerank(
	ctx context.Context, query string, candidates []candidate.Candidate,
) ([]candidate.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		MaxTokens:   100,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rerankSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildRerankPrompt(query, candidates)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: rerank chat completion: %w", domain.ErrRerankUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty rerank response", domain.ErrRerankUnavailable)
	}

	order, err := parseRerankOrder(resp.Choices[0].Message.Content, len(candidates))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRerankUnavailable, err)
	}

	return applyOrder(candidates, order), nil
}

// buildRerankPrompt numbers the candidate texts 1..n for the model.
func buildRerankPrompt(query string, candidates []candidate.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nQuestions:\n", query)
	for i := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, candidates[i].SourceText())
	}
	return b.String()
}

// parseRerankOrder extracts a 1-based ranking from the model output.
// Out-of-range and duplicate numbers are dropped; candidates the model never
// mentioned keep their similarity order at the tail.
func parseRerankOrder(content string, n int) ([]int, error) {
	content = strings.TrimSpace(content)

	// Models occasionally wrap the array in prose; cut to the brackets.
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in rerank output")
	}

	var ranked []int
	if err := json.Unmarshal([]byte(content[start:end+1]), &ranked); err != nil {
		return nil, fmt.Errorf("parse rerank output: %w", err)
	}

	seen := make(map[int]bool, n)
	order := make([]int, 0, n)
	for _, num := range ranked {
		idx := num - 1
		if idx < 0 || idx >= n || seen[idx] {
			continue
		}
		seen[idx] = true
		order = append(order, idx)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("rerank output ranked nothing")
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order, nil
}

// applyOrder rebuilds the slice in ranked order, assigning each position a
// descending rerank score in (0,1].
func applyOrder(candidates []candidate.Candidate, order []int) []candidate.Candidate {
	n := len(order)
	out := make([]candidate.Candidate, 0, n)
	for pos, idx := range order {
		score := float64(n-pos) / float64(n)
		out = append(out, candidates[idx].WithRerankScore(score))
	}
	return out
}
