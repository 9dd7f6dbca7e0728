package commitmsg

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vault-backup/internal/config"
)

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	got := BuildPrompt([]string{"daily/2024-01-15.md", "projects/vb.md"}, "2 files changed, 5 insertions(+)")
	for _, want := range []string{
		"max 60 chars",
		"Changed files:\ndaily/2024-01-15.md\nprojects/vb.md\n\n",
		"Stats: 2 files changed, 5 insertions(+)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildPrompt_CapsFileList(t *testing.T) {
	t.Parallel()

	files := make([]string, maxPromptFiles+5)
	for i := range files {
		files[i] = fmt.Sprintf("note-%d.md", i)
	}
	got := BuildPrompt(files, "")
	if strings.Contains(got, fmt.Sprintf("note-%d.md", maxPromptFiles)) {
		t.Error("prompt lists files past the cap")
	}
	if !strings.Contains(got, "... and 5 more") {
		t.Error("prompt missing overflow line")
	}
	if len(files) != maxPromptFiles+5 || files[maxPromptFiles] != fmt.Sprintf("note-%d.md", maxPromptFiles) {
		t.Error("BuildPrompt modified the caller's slice")
	}
}

func TestFirstLine(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"add meeting notes":                    "add meeting notes",
		"\n  \"update daily journal\"  \nmore": "update daily journal",
		"":                                     "",
	}
	for in, want := range tests {
		if got := firstLine(in); got != want {
			t.Errorf("firstLine(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAnthropic_Generate(t *testing.T) {
	t.Parallel()

	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "secret" || r.Header.Get("anthropic-version") != anthropicVersion {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, `{"content":[{"type":"text","text":"add weekly review notes"}]}`)
	}))
	defer srv.Close()

	a := &Anthropic{URL: srv.URL, APIKey: "secret", Model: "test-model"}
	got, err := a.Generate(context.Background(), []string{"weekly.md"}, "1 file changed")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "add weekly review notes" {
		t.Errorf("Generate() = %q", got)
	}
	if gotReq.Model != "test-model" || gotReq.MaxTokens != maxTokens {
		t.Errorf("request = %+v", gotReq)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" || !strings.Contains(gotReq.Messages[0].Content, "weekly.md") {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestOpenAI_Generate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"rename project notes"}}]}`)
	}))
	defer srv.Close()

	o := &OpenAI{URL: srv.URL, APIKey: "key", Model: "m"}
	got, err := o.Generate(context.Background(), []string{"a.md"}, "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "rename project notes" {
		t.Errorf("Generate() = %q", got)
	}
}

func TestGenerate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"overloaded"}`},
		{"malformed json", http.StatusOK, `not json`},
		{"empty content", http.StatusOK, `{"content":[],"choices":[]}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			if _, err := (&Anthropic{URL: srv.URL}).Generate(context.Background(), nil, ""); err == nil {
				t.Error("Anthropic.Generate() expected error")
			}
			if _, err := (&OpenAI{URL: srv.URL}).Generate(context.Background(), nil, ""); err == nil {
				t.Error("OpenAI.Generate() expected error")
			}
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		got, err := NewFromConfig(config.LLMConfig{}, nil)
		if err != nil || got != nil {
			t.Errorf("NewFromConfig() = %v, %v, want nil, nil", got, err)
		}
	})

	t.Run("anthropic defaults", func(t *testing.T) {
		got, err := NewFromConfig(config.LLMConfig{Type: "anthropic", APIKey: "k"}, nil)
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		a, ok := got.(*Anthropic)
		if !ok {
			t.Fatalf("NewFromConfig() = %T, want *Anthropic", got)
		}
		if a.URL != config.DefaultAnthropicURL || a.Model != config.DefaultAnthropicModel {
			t.Errorf("Anthropic = %+v", a)
		}
	})

	t.Run("openai", func(t *testing.T) {
		got, err := NewFromConfig(config.LLMConfig{Type: "openai", APIURL: "http://llm/v1/chat/completions"}, nil)
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		if _, ok := got.(*OpenAI); !ok {
			t.Errorf("NewFromConfig() = %T, want *OpenAI", got)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for _, cfg := range []config.LLMConfig{
			{Type: "anthropic"},
			{Type: "openai"},
			{Type: "markov"},
		} {
			if _, err := NewFromConfig(cfg, nil); err == nil {
				t.Errorf("NewFromConfig(%+v) expected error", cfg)
			}
		}
	})
}
