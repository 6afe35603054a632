package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultGPTModel      = "gpt-3.5-turbo"
)

// GPT talks to an OpenAI-compatible chat completion endpoint.
type GPT struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewGPT builds the OpenAI-backed provider. Empty baseURL and model
// fall back to the public API and gpt-3.5-turbo.
func NewGPT(baseURL, apiKey, model string, timeout time.Duration) *GPT {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if model == "" {
		model = defaultGPTModel
	}
	return &GPT{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Model returns the model name requests are made with.
func (g *GPT) Model() string {
	return g.model
}

type gptRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type gptResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements Provider.
func (g *GPT) Generate(ctx context.Context, history []Turn, asUser, draft string) (string, error) {
	body, err := json.Marshal(gptRequest{
		Model:    g.model,
		Messages: buildPrompt(history, asUser, draft),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var parsed gptResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("completion request failed: %s", parsed.Error.Message)
		}
		return "", fmt.Errorf("completion request failed: status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("completion response has no choices")
	}
	return cleanReply(parsed.Choices[0].Message.Content), nil
}
