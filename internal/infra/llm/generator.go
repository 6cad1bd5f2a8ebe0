package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"trivia-arena/internal/domain"
	"trivia-arena/internal/engine"
)

// Generator asks an OpenAI-compatible chat-completions endpoint for questions.
type Generator struct {
	httpClient *http.Client
	apiKey     string
	apiURL     string
	model      string
}

func NewGenerator(apiKey, apiURL, model string, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Generator{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		apiURL:     strings.TrimRight(apiURL, "/"),
		model:      model,
	}
}

// Available reports whether an API key is configured.
func (g *Generator) Available() bool {
	return g.apiKey != ""
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type generatedBatch struct {
	Questions []generatedQuestion `json:"questions"`
}

type generatedQuestion struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Category     string   `json:"category"`
	Explanation  string   `json:"explanation"`
}

const systemPrompt = `You write multiple-choice trivia questions. Respond with ONLY valid JSON (no markdown, no code fences, no explanations) in this format:

{
  "questions": [
    {
      "text": "Question text?",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correct_index": 0,
      "category": "Short category name",
      "explanation": "One sentence on why the answer is right"
    }
  ]
}

Rules:
- Every question has exactly 4 options and exactly one correct answer
- correct_index is the 0-based position of the correct option; vary it between questions
- Questions must be factually accurate and must not repeat any question listed by the user
- Return ONLY the JSON object, nothing else`

// Generate implements engine.Generator.
func (g *Generator) Generate(ctx context.Context, req engine.GenerateRequest) ([]domain.Question, error) {
	if !g.Available() {
		return nil, fmt.Errorf("content generation is not configured")
	}

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("api error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	var batch generatedBatch
	if err := json.Unmarshal([]byte(cleanJSONContent(chatResp.Choices[0].Message.Content)), &batch); err != nil {
		return nil, fmt.Errorf("invalid question JSON: %w", err)
	}
	return convert(batch, req.Difficulty), nil
}

func userPrompt(req engine.GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d questions about %q at %s difficulty", req.Count, req.Topic, strings.ToLower(string(req.Difficulty)))
	switch req.Mode {
	case domain.ModeTimeAttack:
		b.WriteString(", short enough to read in two seconds.")
	case domain.ModeSurvival:
		b.WriteString(", getting gradually harder.")
	default:
		b.WriteString(".")
	}
	if p := req.Player; p != nil && p.Accuracy > 0 {
		fmt.Fprintf(&b, "\nThe player has answered %.0f%% correctly so far (current streak %d).", p.Accuracy*100, p.Streak)
	}
	if len(req.RecentQuestionTexts) > 0 {
		b.WriteString("\nDo not repeat these questions:")
		for _, text := range req.RecentQuestionTexts {
			b.WriteString("\n- ")
			b.WriteString(text)
		}
	}
	return b.String()
}

func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// convert drops malformed questions and assigns fresh ids.
func convert(batch generatedBatch, difficulty domain.Difficulty) []domain.Question {
	out := make([]domain.Question, 0, len(batch.Questions))
	for _, gq := range batch.Questions {
		q := domain.Question{
			ID:                 uuid.NewString(),
			Text:               strings.TrimSpace(gq.Text),
			Options:            gq.Options,
			CorrectOptionIndex: gq.CorrectIndex,
			Category:           strings.TrimSpace(gq.Category),
			Explanation:        strings.TrimSpace(gq.Explanation),
			DifficultyTag:      difficulty,
		}
		if !q.Valid() {
			continue
		}
		out = append(out, q)
	}
	return out
}
