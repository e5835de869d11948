//go:build integration

package inference

import (
	"context"
	"os"
	"testing"
	"time"
)

// Integration tests for real API calls.
// Run with: go test -tags=integration -v ./pkg/inference/...

func TestOpenAIIntegration(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set")
	}

	client, err := NewClient(
		WithBaseURL("https://api.openai.com/v1"),
		WithAPIKey(apiKey),
		WithModel("gpt-4o-mini"),
		WithBeamSearchParams(false),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t.Run("Unguided", func(t *testing.T) {
		text, err := client.Generate(ctx, testRequest(""))
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		t.Logf("Caption: %s", text)
	})

	t.Run("Guided", func(t *testing.T) {
		text, err := client.Generate(ctx, testRequest("Describe the lighting in one sentence."))
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		t.Logf("Caption: %s", text)
	})
}

func TestOllamaIntegration(t *testing.T) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		t.Skip("OLLAMA_BASE_URL not set")
	}

	client, err := NewClient(WithBaseURL(baseURL), WithModel("llava"))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	text, err := client.Generate(ctx, testRequest(""))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	t.Logf("Caption: %s", text)
}

func TestGeminiIntegration(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	g, err := NewGemini(ctx, WithAPIKey(apiKey))
	if err != nil {
		t.Fatalf("Failed to create Gemini provider: %v", err)
	}
	defer g.Close()

	text, err := g.Generate(ctx, testRequest(""))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	t.Logf("Caption: %s", text)
}
