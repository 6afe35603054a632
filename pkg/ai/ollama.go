package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaHost  = "http://localhost:11434"
	defaultOllamaModel = "mistral"
)

// Ollama talks to a local Ollama server's chat endpoint.
type Ollama struct {
	host   string
	model  string
	client *http.Client
}

// NewOllama builds the Ollama-backed provider. Empty host and model
// fall back to the local default server and mistral.
func NewOllama(host, model string, timeout time.Duration) *Ollama {
	if host == "" {
		host = defaultOllamaHost
	}
	if model == "" {
		model = defaultOllamaModel
	}
	return &Ollama{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

// Model returns the model name requests are made with.
func (o *Ollama) Model() string {
	return o.model
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

// Generate implements Provider.
func (o *Ollama) Generate(ctx context.Context, history []Turn, asUser, draft string) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:    o.model,
		Messages: buildPrompt(history, asUser, draft),
		Stream:   false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != "" {
			return "", fmt.Errorf("chat request failed: %s", parsed.Error)
		}
		return "", fmt.Errorf("chat request failed: status %d", resp.StatusCode)
	}
	return cleanReply(parsed.Message.Content), nil
}
