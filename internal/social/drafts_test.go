package social

import (
	"context"
	"net/http"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}
	for _, c := range cases {
		if got := stripCodeFence(c.in); got != c.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestOpenAIDrafter_Draft(t *testing.T) {
	d := NewOpenAIDrafter("sk-test", "", "")

	orig := http.DefaultTransport
	defer func() { http.DefaultTransport = orig }()
	http.DefaultTransport = stubTransport{fn: func(r *http.Request) (*http.Response, error) {
		if r.URL.Host != "api.openai.com" || r.URL.Path != "/v1/chat/completions" {
			return httpJSON(404, `{"error":"not_found"}`, nil), nil
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			return httpJSON(401, `{"error":"unauthorized"}`, nil), nil
		}
		// Fenced JSON with an unknown key the drafter must drop.
		content := "```json\n{\"twitter\":\"short post\",\"linkedin\":\"long post\",\"myspace\":\"??\"}\n```"
		return httpJSON(200, `{"choices":[{"message":{"role":"assistant","content":`+jsonString(content)+`}}]}`, nil), nil
	}}

	drafts, err := d.Draft(context.Background(), "product launch", []Platform{Twitter, LinkedIn})
	if err != nil {
		t.Fatalf("draft err: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d: %v", len(drafts), drafts)
	}
	if drafts[Twitter] != "short post" || drafts[LinkedIn] != "long post" {
		t.Fatalf("unexpected drafts: %v", drafts)
	}
}

func TestOpenAIDrafter_Validation(t *testing.T) {
	noKey := NewOpenAIDrafter("", "", "")
	if _, err := noKey.Draft(context.Background(), "topic", nil); KindOf(err) != KindCredentialsMissing {
		t.Fatalf("expected credentials_missing, got %v", err)
	}

	d := NewOpenAIDrafter("sk-test", "", "")
	if _, err := d.Draft(context.Background(), "   ", nil); KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// jsonString quotes s as a JSON string literal.
func jsonString(s string) string {
	out := `"`
	for _, r := range s {
		switch r {
		case '"':
			out += `\"`
		case '\\':
			out += `\\`
		case '\n':
			out += `\n`
		default:
			out += string(r)
		}
	}
	return out + `"`
}
