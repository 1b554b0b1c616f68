package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaProvider_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("Expected non-streaming request")
		}
		if req.Model != "qwen2.5:7b" {
			t.Errorf("Expected model qwen2.5:7b, got %s", req.Model)
		}

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:    "qwen2.5:7b",
			Response: "[1, 2]|Transformers were introduced in 2017.\n",
			Done:     true,
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{Model: "qwen2.5:7b", BaseURL: server.URL + "/", Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	got, err := provider.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "[1, 2]|Transformers were introduced in 2017." {
		t.Errorf("Unexpected reply: %q", got)
	}
}

func TestOllamaProvider_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model not found"}`))
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{Model: "missing", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if _, err := provider.Complete(context.Background(), "prompt"); err == nil {
		t.Fatal("Expected error, got nil")
	}
}

func TestOllamaProvider_NoModel(t *testing.T) {
	if _, err := NewOllamaProvider(Config{}); err == nil {
		t.Fatal("Expected error when model is empty")
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		config   Config
		wantName string
		wantErr  bool
	}{
		{"zhipu", Config{APIKey: "k"}, "zhipu", false},
		{"glm", Config{APIKey: "k"}, "zhipu", false},
		{"openai", Config{APIKey: "k"}, "openai", false},
		{"Claude", Config{APIKey: "k"}, "anthropic", false},
		{"ollama", Config{Model: "llama3.1:8b"}, "ollama", false},
		{"openai", Config{}, "", true},
		{"bard", Config{APIKey: "k"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := tt.config
			cfg.Provider = tt.provider
			p, err := NewProvider(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %s", tt.provider)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProvider(%s): %v", tt.provider, err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Expected name %s, got %s", tt.wantName, p.Name())
			}
		})
	}
}

func TestAPIKeyEnv(t *testing.T) {
	if got := APIKeyEnv("GLM"); got != "ZHIPUAI_API_KEY" {
		t.Errorf("Expected ZHIPUAI_API_KEY, got %s", got)
	}
	if got := APIKeyEnv("ollama"); got != "" {
		t.Errorf("Expected no key for ollama, got %s", got)
	}
}
