package gigachat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"linklens/internal/parser"
)

func TestClient_AnalyzeReusesToken(t *testing.T) {
	authCalls := 0
	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCalls++
		if got := r.Header.Get("Authorization"); got != "Basic secret" {
			t.Errorf("Expected basic credentials, got %q", got)
		}
		if r.Header.Get("RqUID") == "" {
			t.Error("Expected a RqUID header")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"expires_at":   time.Now().Add(time.Hour).UnixMilli(),
		})
	}))
	defer authServer.Close()

	chatServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Expected bearer token, got %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode chat request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("Expected a system prompt followed by user data, got %+v", req.Messages)
		}
		if !strings.Contains(req.Messages[1].Content, "пост о горах") {
			t.Error("Expected the profile data in the user message")
		}
		fmt.Fprint(w, `{"choices": [{"message": {"role": "assistant", "content": "личные качества: активный"}}]}`)
	}))
	defer chatServer.Close()

	client := NewClient(Config{
		Credentials: "secret",
		Scope:       "GIGACHAT_API_PERS",
		AuthURL:     authServer.URL,
		BaseURL:     chatServer.URL,
	}, zap.NewNop())

	profile := &parser.Profile{
		Success: true,
		Posts:   map[string]parser.Post{"post1": {Text: "пост о горах", Date: 1700000000}},
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		text, err := client.Analyze(ctx, profile)
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if text != "личные качества: активный" {
			t.Errorf("Unexpected analysis text: %q", text)
		}
	}

	if authCalls != 1 {
		t.Errorf("Expected the token to be fetched once, got %d auth calls", authCalls)
	}
}

func TestClient_AnalyzeAuthFailure(t *testing.T) {
	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer authServer.Close()

	client := NewClient(Config{
		Credentials: "bad",
		AuthURL:     authServer.URL,
		BaseURL:     "http://127.0.0.1:0",
	}, zap.NewNop())

	if _, err := client.Analyze(context.Background(), &parser.Profile{Success: true}); err == nil {
		t.Error("Expected an error when authentication fails")
	}
}
