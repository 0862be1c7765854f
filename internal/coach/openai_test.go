package coach

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewOpenAI_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewOpenAI("", "m"); err == nil {
		t.Error("expected error for empty baseURL")
	}
	if _, err := NewOpenAI("http://localhost:8000/v1/", ""); err == nil {
		t.Error("expected error for empty model")
	}
	p, err := NewOpenAI("http://localhost:8000/v1/", "qwen", WithAPIKey("k"), WithOrganization("org"))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	if p.model != "qwen" {
		t.Errorf("model = %q", p.model)
	}
}

func TestOpenAI_BuildParams(t *testing.T) {
	t.Parallel()
	p, err := NewOpenAI("http://localhost:8000/v1/", "qwen")
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	params := p.buildParams(Request{System: "sys", Prompt: "hi", MaxTokens: 64, Temperature: 0.4})
	if string(params.Model) != "qwen" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil || params.Messages[1].OfUser == nil {
		t.Errorf("roles = %+v", params.Messages)
	}
	if params.Temperature.Value != 0.4 || params.MaxCompletionTokens.Value != 64 {
		t.Errorf("temperature = %v, max tokens = %v", params.Temperature.Value, params.MaxCompletionTokens.Value)
	}

	bare := p.buildParams(Request{Prompt: "hi"})
	if len(bare.Messages) != 1 {
		t.Errorf("bare messages = %d, want 1", len(bare.Messages))
	}
	if bare.Temperature.Valid() || bare.MaxCompletionTokens.Valid() {
		t.Error("unset options should not be sent")
	}
}

func TestOpenAI_Complete(t *testing.T) {
	t.Parallel()

	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "c1", "object": "chat.completion", "created": 1, "model": "qwen",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Round your lips for w."}}]
		}`)
	}))
	defer srv.Close()

	p, err := NewOpenAI(srv.URL+"/v1/", "qwen")
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	text, err := p.Complete(context.Background(), Request{System: "sys", Prompt: "world"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.Contains(text, "Round your lips") {
		t.Errorf("text = %q", text)
	}
	if got.Model != "qwen" || len(got.Messages) != 2 || got.Messages[1].Content != "world" {
		t.Errorf("request = %+v", got)
	}
}
