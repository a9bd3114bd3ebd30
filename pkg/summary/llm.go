package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const summaryMaxTokens = 300

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

// HTTPModel completes prompts against the OpenAI chat completions or the
// Anthropic messages API.
type HTTPModel struct {
	client   *http.Client
	provider string // "openai" or "anthropic"
	model    string
	apiKey   string
	baseURL  string
}

// NewHTTPModel creates an OpenAI or Anthropic model client.
func NewHTTPModel(provider, model, apiKey, baseURL string, timeout time.Duration) *HTTPModel {
	if model == "" {
		switch provider {
		case "anthropic":
			model = "claude-sonnet-4-20250514"
		default:
			model = "gpt-4o-mini"
		}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPModel{
		client:   &http.Client{Timeout: timeout},
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
	}
}

func (m *HTTPModel) Name() string { return m.provider + "/" + m.model }

func (m *HTTPModel) Complete(ctx context.Context, prompt string) (string, error) {
	if m.provider == "anthropic" {
		return m.callAnthropic(ctx, prompt)
	}
	return m.callOpenAI(ctx, prompt)
}

func (m *HTTPModel) callOpenAI(ctx context.Context, prompt string) (string, error) {
	baseURL := m.baseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	payload := openAIRequest{
		Model:       m.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.3,
		MaxTokens:   summaryMaxTokens,
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + m.apiKey}
	if err := m.post(ctx, "openai", baseURL+"/v1/chat/completions", headers, payload, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}

func (m *HTTPModel) callAnthropic(ctx context.Context, prompt string) (string, error) {
	baseURL := m.baseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	payload := anthropicRequest{
		Model:     m.model,
		MaxTokens: summaryMaxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{
		"x-api-key":         m.apiKey,
		"anthropic-version": "2023-06-01",
	}
	if err := m.post(ctx, "anthropic", baseURL+"/v1/messages", headers, payload, &result); err != nil {
		return "", err
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic: no content returned")
	}
	return result.Content[0].Text, nil
}

func (m *HTTPModel) post(ctx context.Context, name, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s status %d: %s", name, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", name, err)
	}
	return nil
}
