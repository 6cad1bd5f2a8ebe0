package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trivia-arena/internal/domain"
	"trivia-arena/internal/engine"
)

func chatServer(t *testing.T, content string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateParsesFencedJSON(t *testing.T) {
	content := "```json\n" + `{"questions":[
		{"text":"Which gas do plants absorb?","options":["Oxygen","Carbon dioxide","Helium","Neon"],"correct_index":1,"category":"Science","explanation":"Photosynthesis."},
		{"text":"Broken","options":["only","three","options"],"correct_index":0},
		{"text":"Out of range","options":["a","b","c","d"],"correct_index":7}
	]}` + "\n```"
	var seen chatRequest
	srv := chatServer(t, content, &seen)

	gen := NewGenerator("secret", srv.URL+"/", "test-model", 0)
	qs, err := gen.Generate(context.Background(), engine.GenerateRequest{
		Topic:               "Botany",
		Difficulty:          domain.DifficultyAllStar,
		Count:               3,
		Mode:                domain.ModeSurvival,
		RecentQuestionTexts: []string{"What is chlorophyll?"},
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("expected malformed questions to be dropped, got %d", len(qs))
	}
	q := qs[0]
	if q.ID == "" || q.CorrectOptionIndex != 1 || q.DifficultyTag != domain.DifficultyAllStar || q.Category != "Science" {
		t.Fatalf("unexpected question %+v", q)
	}

	if seen.Model != "test-model" || len(seen.Messages) != 2 {
		t.Fatalf("unexpected request %+v", seen)
	}
	prompt := seen.Messages[1].Content
	if !strings.Contains(prompt, `"Botany"`) || !strings.Contains(prompt, "What is chlorophyll?") {
		t.Fatalf("prompt missing topic or recent questions: %s", prompt)
	}
}

func TestGenerateReportsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gen := NewGenerator("secret", srv.URL, "m", 0)
	if _, err := gen.Generate(context.Background(), engine.GenerateRequest{Topic: "x", Count: 1}); err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestGenerateRejectsInvalidJSON(t *testing.T) {
	srv := chatServer(t, "Sure! Here are some questions.", nil)
	gen := NewGenerator("secret", srv.URL, "m", 0)
	if _, err := gen.Generate(context.Background(), engine.GenerateRequest{Topic: "x", Count: 1}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestGenerateRequiresKey(t *testing.T) {
	gen := NewGenerator("", "http://127.0.0.1:0", "m", 0)
	if gen.Available() {
		t.Fatalf("expected generator without key to be unavailable")
	}
	if _, err := gen.Generate(context.Background(), engine.GenerateRequest{}); err == nil {
		t.Fatalf("expected error without key")
	}
}
