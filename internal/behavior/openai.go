package behavior

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	maxPromptCode = 6000
	maxSummaryLen = 200
	systemPrompt  = `You describe what a single function does for a code map.
Reply with a JSON object only:
{"summary": "<one line, at most 200 characters>",
 "flags": {"databaseRead": bool, "databaseWrite": bool, "httpCall": bool, "fileRead": bool,
           "fileWrite": bool, "sendsNotification": bool, "modifiesGlobalState": bool, "hasSideEffects": bool}}`
	truncateMarker = "\n// ... truncated"
)

// OpenAI analyzes functions through an OpenAI-compatible chat endpoint.
type OpenAI struct {
	client *openai.Client
	cfg    Config
}

// NewOpenAI creates a client for cfg.Endpoint (the public API when empty).
func NewOpenAI(cfg Config) *OpenAI {
	cfg = cfg.withDefaults()
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		oc.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	return &OpenAI{client: openai.NewClientWithConfig(oc), cfg: cfg}
}

// Analyze implements Client.
func (c *OpenAI) Analyze(ctx context.Context, req Request) (Result, error) {
	creq := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
	}
	if reasoningModel(c.cfg.Model) {
		creq.MaxCompletionTokens = c.cfg.MaxTokens
		creq.Temperature = 0
	} else {
		creq.MaxTokens = c.cfg.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return Result{}, fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return Result{}, fmt.Errorf("chat completion for %s: %w", req.Name, err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, ErrEmptyResponse
	}
	return ParseResponse(resp.Choices[0].Message.Content)
}

// reasoningModel reports whether model takes MaxCompletionTokens instead of
// MaxTokens.
func reasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func userPrompt(req Request) string {
	code := req.Code
	if len(code) > maxPromptCode {
		code = code[:maxPromptCode] + truncateMarker
	}
	return fmt.Sprintf("File: %s\nFunction: %s\n\n```\n%s\n```", req.FilePath, req.Name, code)
}

// ParseResponse decodes a model reply into a Result. Markdown code fences
// around the JSON are tolerated; the summary is collapsed to one line of at
// most 200 characters.
func ParseResponse(content string) (Result, error) {
	body := strings.TrimSpace(content)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	}
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}
	if body == "" {
		return Result{}, ErrEmptyResponse
	}

	var res Result
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return Result{}, fmt.Errorf("decoding analysis response: %w", err)
	}
	res.Summary = strings.Join(strings.Fields(res.Summary), " ")
	if res.Summary == "" {
		return Result{}, ErrEmptyResponse
	}
	if r := []rune(res.Summary); len(r) > maxSummaryLen {
		res.Summary = string(r[:maxSummaryLen-1]) + "…"
	}
	f := &res.Flags
	if f.DatabaseWrite || f.FileWrite || f.HTTPCall || f.SendsNotification || f.ModifiesGlobalState {
		f.HasSideEffects = true
	}
	return res, nil
}
