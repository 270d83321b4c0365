package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	jsonResponseType  = "json_object"
	defaultLLMBaseURL = "https://openrouter.ai/api/v1/chat/completions"
)

// LLMConfig captures the chat-completion connection settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// LLMClient wraps an OpenAI-compatible chat completion API.
type LLMClient struct {
	cfg LLMConfig
	transport
}

// NewLLMClient constructs a chat-completion client.
func NewLLMClient(cfg LLMConfig, opts ...Option) *LLMClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultLLMBaseURL
	}
	return &LLMClient{cfg: cfg, transport: newTransport(cfg.TimeoutSeconds, opts)}
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers return the streaming schema even when stream=false.
		Delta        chatCompletionMessage `json:"delta"`
		Text         string                `json:"text"`
		FinishReason string                `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content   string `json:"content"`
	Refusal   string `json:"refusal"`
	ToolCalls []struct {
		Function struct {
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}

// CompleteJSON issues a JSON-only completion and returns the raw payload.
func (c *LLMClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, "llm complete", systemPrompt, userPrompt, 0.2, true)
}

// CompleteText issues a free-form completion, used for page code.
func (c *LLMClient) CompleteText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, "llm code", systemPrompt, userPrompt, 0.7, false)
}

// HealthCheck issues a tiny request to verify the key and model are usable.
func (c *LLMClient) HealthCheck(ctx context.Context) error {
	content, err := c.complete(ctx, "llm health", "You must respond with JSON only.", `Respond with {"ok":true}`, 0, true)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

func (c *LLMClient) complete(ctx context.Context, op, systemPrompt, userPrompt string, temperature float64, jsonOnly bool) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", fmt.Errorf("%s: system and user prompts required", op)
	}
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%s: api key required", op)
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
	}
	if jsonOnly {
		payload.ResponseFormat = map[string]string{"type": jsonResponseType}
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"HTTP-Referer":  c.cfg.Referer,
		"X-Title":       c.cfg.Title,
	}

	var content string
	err := c.withRetry(ctx, op, func() error {
		body, err := c.postJSON(ctx, op, c.cfg.BaseURL, headers, payload)
		if err != nil {
			return err
		}
		var completion chatCompletionResponse
		if err := json.Unmarshal(body, &completion); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
		if completion.Error != nil {
			return fmt.Errorf("%s: api error: %s", op, strings.TrimSpace(completion.Error.Message))
		}
		text, finish, refusal := extractCompletion(completion)
		if text == "" {
			return &retryableError{err: fmt.Errorf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
				op, finish, refusal, summarizePayloadSnippet(string(body)))}
		}
		content = text
		return nil
	})
	return content, err
}

func extractCompletion(completion chatCompletionResponse) (content, finishReason, refusal string) {
	for _, choice := range completion.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if refusal == "" {
			refusal = firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal)
		}
		if text := firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); text != "" {
			return text, finishReason, refusal
		}
		for _, call := range choice.Message.ToolCalls {
			if args := strings.TrimSpace(call.Function.Arguments); args != "" {
				return args, finishReason, refusal
			}
		}
	}
	return "", finishReason, refusal
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// DecodeLLMJSON decodes JSON from model output, tolerating code fences and
// prose around the object.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, summarizePayloadSnippet(sanitized))
	}
	return nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := stripCodeFence(content)
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

// stripCodeFence removes a surrounding ``` or ```lang fence.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if nl := strings.IndexAny(body, "\r\n"); nl >= 0 && !strings.ContainsAny(body[:nl], "<{[") {
		body = body[nl:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
