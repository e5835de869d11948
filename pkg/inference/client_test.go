package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-caption/pkg/caption"
)

// captured is the subset of the request body the tests inspect.
type captured struct {
	Model         string  `json:"model"`
	MaxTokens     int     `json:"max_tokens"`
	N             int     `json:"n"`
	Temperature   float64 `json:"temperature"`
	UseBeamSearch bool    `json:"use_beam_search"`
	BestOf        int     `json:"best_of"`
	Messages      []struct {
		Role    string `json:"role"`
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			ImageURL struct {
				URL string `json:"url"`
			} `json:"image_url"`
		} `json:"content"`
	} `json:"messages"`
}

func captionServer(t *testing.T, content string, got *captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}

		resp := chatCompletionResponse{
			ID:    "test-id",
			Model: "llava",
			Choices: []chatChoice{{
				FinishReason: "stop",
			}},
			Usage: chatUsageStats{PromptTokens: 600, CompletionTokens: 8, TotalTokens: 608},
		}
		resp.Choices[0].Message.Role = "assistant"
		resp.Choices[0].Message.Content = content

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClientGenerateUnguided(t *testing.T) {
	var got captured
	server := captionServer(t, "a living room with a sofa", &got)
	defer server.Close()

	client, err := NewClient(
		WithBaseURL(server.URL+"/"),
		WithAPIKey("test-key"),
		WithModel("llava"),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	text, err := client.Generate(context.Background(), testRequest(""))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "a living room with a sofa" {
		t.Errorf("Unexpected text %q", text)
	}

	if got.Model != "llava" {
		t.Errorf("Expected model llava, got %s", got.Model)
	}
	if got.MaxTokens != 40 {
		t.Errorf("Expected max_tokens 40, got %d", got.MaxTokens)
	}
	if got.N != 1 || got.Temperature != 0 {
		t.Errorf("Expected n=1 and temperature=0, got n=%d temperature=%v", got.N, got.Temperature)
	}
	if !got.UseBeamSearch || got.BestOf != 3 {
		t.Errorf("Expected beam search with width 3, got %v/%d", got.UseBeamSearch, got.BestOf)
	}

	if len(got.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(got.Messages))
	}
	parts := got.Messages[0].Content
	if len(parts) != 1 || parts[0].Type != "image_url" {
		t.Fatalf("Expected a single image part in unguided mode, got %+v", parts)
	}
	if !strings.HasPrefix(parts[0].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Errorf("Expected JPEG data URL, got %.40s", parts[0].ImageURL.URL)
	}
}

func TestClientGenerateGuided(t *testing.T) {
	var got captured
	server := captionServer(t, "a dim room lit by a desk lamp", &got)
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL), WithModel("llava"))
	defer client.Close()

	if _, err := client.Generate(context.Background(), testRequest("describe the lighting")); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	parts := got.Messages[0].Content
	if len(parts) != 2 {
		t.Fatalf("Expected text and image parts, got %d", len(parts))
	}
	if parts[0].Type != "text" || parts[0].Text != "describe the lighting" {
		t.Errorf("Expected prompt as the text part, got %+v", parts[0])
	}
	if parts[1].Type != "image_url" {
		t.Errorf("Expected image part second, got %s", parts[1].Type)
	}
}

func TestClientWithoutBeamSearchParams(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(`{"choices":[{"message":{"content":"a cat"}}]}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL), WithBeamSearchParams(false))
	if _, err := client.Generate(context.Background(), testRequest("")); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, ok := raw["use_beam_search"]; ok {
		t.Error("Expected use_beam_search to be omitted")
	}
	if _, ok := raw["best_of"]; ok {
		t.Error("Expected best_of to be omitted")
	}
}

func TestClientEmptyContentIsNotAnError(t *testing.T) {
	server := captionServer(t, "", nil)
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	text, err := client.Generate(context.Background(), testRequest(""))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "" {
		t.Errorf("Expected empty text, got %q", text)
	}
}

func TestClientNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	_, err := client.Generate(context.Background(), testRequest(""))
	if !errors.Is(err, ErrNoOutput) {
		t.Errorf("Expected ErrNoOutput, got %v", err)
	}
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid API key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL), WithAPIKey("bad-key"))
	_, err := client.Generate(context.Background(), testRequest(""))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if !apiErr.IsUnauthorized() {
		t.Errorf("Expected 401, got %d", apiErr.StatusCode)
	}
	if apiErr.Code != "invalid_api_key" {
		t.Errorf("Expected code invalid_api_key, got %s", apiErr.Code)
	}
}

func TestClientDoesNotRetryByDefault(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	if _, err := client.Generate(context.Background(), testRequest("")); err == nil {
		t.Fatal("Expected error on 503")
	}
	if hits.Load() != 1 {
		t.Errorf("Expected exactly 1 request, got %d", hits.Load())
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"a hallway"}}]}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL), WithRetry(2, time.Millisecond))
	text, err := client.Generate(context.Background(), testRequest(""))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "a hallway" {
		t.Errorf("Unexpected text %q", text)
	}
	if hits.Load() != 2 {
		t.Errorf("Expected 2 requests, got %d", hits.Load())
	}
}

func TestClientDoesNotRetryNonRetryableStatus(t *testing.T) {
	tests := []int{http.StatusBadRequest, http.StatusUnauthorized, 600}

	for _, status := range tests {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(status)
		}))

		client, _ := NewClient(WithBaseURL(server.URL), WithRetry(2, time.Millisecond))
		_, err := client.Generate(context.Background(), testRequest(""))
		server.Close()

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != status {
			t.Errorf("status %d: expected APIError, got %v", status, err)
		}
		if hits.Load() != 1 {
			t.Errorf("status %d: expected 1 request, got %d", status, hits.Load())
		}
	}
}

func TestClientRejectsMissingImage(t *testing.T) {
	client, _ := NewClient()
	_, err := client.Generate(context.Background(), &caption.Request{})
	if !errors.Is(err, ErrEmptyImage) {
		t.Errorf("Expected ErrEmptyImage, got %v", err)
	}
}
