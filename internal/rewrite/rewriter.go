// Package rewrite resolves conversational follow-up queries into standalone
// queries before retrieval. The rewrite is a single LLM call; any failure
// falls back to the original query so retrieval never blocks on it.
package rewrite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const systemPrompt = `You rewrite a user's follow-up question into a standalone question.
Resolve pronouns and ellipses using only the conversation history provided.
Reply with the rewritten question and nothing else.
If the question is already standalone, reply with it unchanged.`

// Turn is one prior (question, answer) exchange supplied by the caller.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Model is the narrow slice of langchaingo's llms.Model the rewriter needs.
type Model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// NewOpenAIModel builds a chat model client for any OpenAI-compatible
// endpoint.
func NewOpenAIModel(baseURL, apiKey, model string) (Model, error) {
	opts := []openai.Option{openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	if apiKey == "" {
		// Local OpenAI-compatible services don't require a token.
		apiKey = "none"
	}
	opts = append(opts, openai.WithToken(apiKey))
	return openai.New(opts...)
}

type Rewriter struct {
	model    Model
	maxTurns int
	timeout  time.Duration
}

func NewRewriter(model Model, maxTurns int, timeout time.Duration) *Rewriter {
	if maxTurns <= 0 {
		maxTurns = 5
	}
	return &Rewriter{model: model, maxTurns: maxTurns, timeout: timeout}
}

// Rewrite produces a standalone version of query. With no history, no model,
// or any model failure the original query is returned unchanged.
func (r *Rewriter) Rewrite(ctx context.Context, query string, history []Turn) string {
	if len(history) == 0 || r.model == nil {
		return query
	}
	if len(history) > r.maxTurns {
		history = history[len(history)-r.maxTurns:]
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var transcript strings.Builder
	for _, turn := range history {
		fmt.Fprintf(&transcript, "User: %s\nAssistant: %s\n", turn.Question, turn.Answer)
	}
	fmt.Fprintf(&transcript, "\nFollow-up question: %s", query)

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, transcript.String()),
	}

	resp, err := r.model.GenerateContent(ctx, messages)
	if err != nil {
		slog.WarnContext(ctx, "query rewrite failed, using original query", "error", err)
		return query
	}
	if len(resp.Choices) == 0 {
		return query
	}

	rewritten := strings.TrimSpace(resp.Choices[0].Content)
	if rewritten == "" {
		return query
	}

	slog.DebugContext(ctx, "query rewritten", "original_len", len(query), "rewritten_len", len(rewritten))
	return rewritten
}
