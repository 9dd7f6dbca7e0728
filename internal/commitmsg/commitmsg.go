// Package commitmsg asks a language model for a one-line summary of staged
// vault changes.
package commitmsg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vault-backup/internal/config"
	"vault-backup/internal/vb"
)

const (
	// DefaultTimeout bounds each model request.
	DefaultTimeout = 10 * time.Second

	// maxPromptFiles caps how many changed paths are listed in the prompt.
	maxPromptFiles = 200

	maxTokens        = 100
	anthropicVersion = "2023-06-01"
)

// BuildPrompt renders the summarization prompt for files and the git stat line.
func BuildPrompt(files []string, stats string) string {
	listed := files
	if len(listed) > maxPromptFiles {
		listed = append(listed[:maxPromptFiles:maxPromptFiles], fmt.Sprintf("... and %d more", len(files)-maxPromptFiles))
	}
	return "Summarize these Obsidian vault changes in one concise commit message line (max 60 chars). " +
		"Be specific about what changed based on filenames. Use lowercase, no period at end.\n\n" +
		"Changed files:\n" + strings.Join(listed, "\n") + "\n\n" +
		"Stats: " + stats
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

func newChatRequest(model, prompt string) chatRequest {
	return chatRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	}
}

// Anthropic calls the Anthropic Messages API.
type Anthropic struct {
	URL    string
	APIKey string
	Model  string
	Client *http.Client
	Logger vb.Logger
}

var _ vb.MessageGenerator = (*Anthropic)(nil)

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (a *Anthropic) Generate(ctx context.Context, files []string, stats string) (string, error) {
	logger(a.Logger).Info("requesting commit message", "provider", "anthropic", "model", a.Model)

	headers := map[string]string{
		"x-api-key":         a.APIKey,
		"anthropic-version": anthropicVersion,
	}
	var resp anthropicResponse
	if err := postJSON(ctx, a.Client, a.URL, headers, newChatRequest(a.Model, BuildPrompt(files, stats)), &resp); err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("anthropic: response has no content")
	}
	return firstLine(resp.Content[0].Text), nil
}

// OpenAI calls any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	URL    string
	APIKey string
	Model  string
	Client *http.Client
	Logger vb.Logger
}

var _ vb.MessageGenerator = (*OpenAI)(nil)

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Generate(ctx context.Context, files []string, stats string) (string, error) {
	logger(o.Logger).Info("requesting commit message", "provider", "openai", "url", o.URL, "model", o.Model)

	headers := map[string]string{}
	if o.APIKey != "" {
		headers["Authorization"] = "Bearer " + o.APIKey
	}
	var resp openAIResponse
	if err := postJSON(ctx, o.Client, o.URL, headers, newChatRequest(o.Model, BuildPrompt(files, stats)), &resp); err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: response has no choices")
	}
	return firstLine(resp.Choices[0].Message.Content), nil
}

// NewFromConfig returns the configured generator, or nil when none is set.
func NewFromConfig(cfg config.LLMConfig, logger vb.Logger) (vb.MessageGenerator, error) {
	client := &http.Client{Timeout: DefaultTimeout}
	switch cfg.Type {
	case "":
		return nil, nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic commit messages require api_key")
		}
		url := cfg.APIURL
		if url == "" {
			url = config.DefaultAnthropicURL
		}
		model := cfg.Model
		if model == "" {
			model = config.DefaultAnthropicModel
		}
		return &Anthropic{URL: url, APIKey: cfg.APIKey, Model: model, Client: client, Logger: logger}, nil
	case "openai":
		if cfg.APIURL == "" {
			return nil, fmt.Errorf("openai commit messages require api_url")
		}
		model := cfg.Model
		if model == "" {
			model = config.DefaultOpenAIModel
		}
		return &OpenAI{URL: cfg.APIURL, APIKey: cfg.APIKey, Model: model, Client: client, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown llm type: %s", cfg.Type)
	}
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out any) error {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// firstLine keeps the first non-empty line and strips wrapping quotes models like to add.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return strings.Trim(line, "\"'`")
		}
	}
	return ""
}

func logger(l vb.Logger) vb.Logger {
	if l == nil {
		return vb.NewNopLogger()
	}
	return l
}
