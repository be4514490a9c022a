package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Drafter generates platform-tailored post drafts from a topic prompt.
type Drafter interface {
	Draft(ctx context.Context, topic string, platforms []Platform) (map[Platform]string, error)
}

// OpenAIDrafter asks a chat-completion model for one draft per platform,
// each within the platform's character limit.
type OpenAIDrafter struct {
	apiKey string
	apiURL string
	model  string
	client *http.Client
}

func NewOpenAIDrafter(apiKey, apiURL, model string) *OpenAIDrafter {
	apiURL = strings.TrimRight(apiURL, "/")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIDrafter{
		apiKey: apiKey,
		apiURL: apiURL,
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (d *OpenAIDrafter) Draft(ctx context.Context, topic string, platforms []Platform) (map[Platform]string, error) {
	if d.apiKey == "" {
		return nil, Errorf(KindCredentialsMissing, "missing OPENAI_API_KEY")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, Errorf(KindValidation, "draft topic cannot be empty")
	}
	if len(platforms) == 0 {
		platforms = AllPlatforms()
	}

	var sb strings.Builder
	sb.WriteString("Write a social media post about the following topic for each listed platform. ")
	sb.WriteString("Respond with a single JSON object mapping platform key to post text, no commentary. Platforms and their character limits:\n")
	for _, p := range platforms {
		fmt.Fprintf(&sb, "- %s: at most %d characters\n", p, p.Limit())
	}
	sb.WriteString("\nTopic: ")
	sb.WriteString(topic)

	payload, err := json.Marshal(chatRequest{
		Model: d.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You draft concise social media posts. Output only valid JSON."},
			{Role: "user", Content: sb.String()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("drafts_marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("drafts_request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	res, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drafts_call: %w", err)
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, Errorf(KindProvider, "openai api status=%d body=%s", res.StatusCode, truncate(string(b), 400))
	}

	var cr chatResponse
	if err := json.Unmarshal(b, &cr); err != nil || len(cr.Choices) == 0 {
		return nil, Errorf(KindProvider, "openai api unexpected response body=%s", truncate(string(b), 400))
	}

	raw := stripCodeFence(cr.Choices[0].Message.Content)
	var perKey map[string]string
	if err := json.Unmarshal([]byte(raw), &perKey); err != nil {
		return nil, Errorf(KindProvider, "draft response is not a json object body=%s", truncate(raw, 400))
	}

	out := make(map[Platform]string, len(perKey))
	for key, text := range perKey {
		p, err := ParsePlatform(key)
		if err != nil {
			log.Printf("[Drafts] dropping unknown platform key %q", key)
			continue
		}
		out[p] = text
	}
	return out, nil
}

// stripCodeFence unwraps ```json ... ``` blocks that chat models like to
// wrap JSON answers in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
