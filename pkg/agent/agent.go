// Package agent generates assistant replies through an OpenAI-compatible
// chat completion endpoint.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"
	"go.mau.fi/util/random"

	"github.com/nestorlabs/nestor/pkg/threads"
)

// Defaults applied by New for unset Config fields.
const (
	DefaultModel        = "gpt-5-mini"
	DefaultSystemPrompt = "You are Néstor, a helpful assistant living in a chat room. " +
		"Answer concisely and use the conversation so far for context. " +
		"Format answers as plain Markdown."
)

// Config carries provider settings for an Agent.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	// MaxTokens caps the completion length. Zero leaves the provider default.
	MaxTokens int
	// HistoryTokenBudget bounds how much thread history is sent per request.
	// Zero disables trimming.
	HistoryTokenBudget int
}

// Agent sends prompts with thread history to a chat completion model.
type Agent struct {
	client        openai.Client
	log           zerolog.Logger
	model         string
	systemPrompt  string
	maxTokens     int
	historyBudget int
	tokens        *tokenizer
}

// New builds an Agent from cfg, applying defaults for unset fields.
func New(cfg Config, log zerolog.Logger) *Agent {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, option.WithMiddleware(makeRequestTraceMiddleware(log)))

	return &Agent{
		client:        openai.NewClient(opts...),
		log:           log.With().Str("component", "agent").Logger(),
		model:         model,
		systemPrompt:  systemPrompt,
		maxTokens:     cfg.MaxTokens,
		historyBudget: cfg.HistoryTokenBudget,
		tokens:        newTokenizer(model),
	}
}

// Run asks the model to answer prompt given the preceding thread turns and
// returns the reply text.
func (a *Agent) Run(ctx context.Context, prompt string, history []threads.Turn) (string, error) {
	history = trimHistory(history, a.systemPrompt, prompt, a.historyBudget, a.tokens.count)

	req := openai.ChatCompletionNewParams{
		Model:    a.model,
		Messages: a.buildMessages(prompt, history),
	}
	if a.maxTokens > 0 {
		req.MaxCompletionTokens = openai.Int(int64(a.maxTokens))
	}

	resp, err := a.client.Chat.Completions.New(ctx, req)
	if err != nil {
		a.logFailure(err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	choice := resp.Choices[0]
	reply := strings.TrimSpace(choice.Message.Content)
	if reply == "" {
		return "", fmt.Errorf("chat completion returned empty content (finish reason %q)", choice.FinishReason)
	}
	return reply, nil
}

func (a *Agent) buildMessages(prompt string, history []threads.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(a.systemPrompt))
	for _, turn := range history {
		if turn.Role == threads.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(turn.Text))
		} else {
			messages = append(messages, openai.UserMessage(turn.Text))
		}
	}
	return append(messages, openai.UserMessage(prompt))
}

func (a *Agent) logFailure(err error) {
	evt := a.log.Warn().Err(err).Str("reason", string(ClassifyFailure(err)))
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		evt = evt.Int("status_code", apiErr.StatusCode)
	}
	evt.Msg("Chat completion request failed")
}

func newOutboundRequestID() string {
	return "nst_" + random.String(12)
}

func makeRequestTraceMiddleware(log zerolog.Logger) option.Middleware {
	traceLog := log.With().Str("component", "openai_http").Logger()
	return func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		start := time.Now()
		requestID := strings.TrimSpace(req.Header.Get("x-request-id"))
		if requestID == "" {
			requestID = newOutboundRequestID()
			req.Header.Set("x-request-id", requestID)
		}
		reqPath := ""
		if req.URL != nil {
			reqPath = req.URL.Path
		}

		resp, err := next(req)
		elapsedMs := time.Since(start).Milliseconds()
		if err != nil {
			traceLog.Error().
				Err(err).
				Str("request_id", requestID).
				Str("request_path", reqPath).
				Int64("duration_ms", elapsedMs).
				Msg("Provider HTTP request failed")
			return nil, err
		}

		evt := traceLog.Debug().
			Str("request_id", requestID).
			Str("request_path", reqPath).
			Int("status_code", resp.StatusCode).
			Int64("duration_ms", elapsedMs)
		if upstreamRequestID := strings.TrimSpace(resp.Header.Get("x-request-id")); upstreamRequestID != "" {
			evt = evt.Str("upstream_request_id", upstreamRequestID)
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			evt.Msg("Provider HTTP response error")
		} else {
			evt.Msg("Provider HTTP response")
		}
		return resp, nil
	}
}
