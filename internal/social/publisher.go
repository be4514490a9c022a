package social

import "context"

// PublishOptions carries the optional attachment reference and
// provider-specific hints for a publish call.
type PublishOptions struct {
	// Attachment is a handle resolvable through the configured MediaSource
	// to bytes + MIME type (and a publicly fetchable URL for platforms that
	// pull media server-side).
	Attachment string
	// Hints are passed through to individual publishers untouched.
	Hints map[string]string
}

// PublishResult is the normalized outcome of a publish attempt.
type PublishResult struct {
	Success  bool     `json:"success"`
	ID       string   `json:"id,omitempty"`
	Platform Platform `json:"platform"`
	// Note is set for graceful degradation: the platform cannot take this
	// post (no API, media required, ...) and it must be posted manually.
	Note  string `json:"note,omitempty"`
	Error string `json:"error,omitempty"`
}

// Publisher posts content to a single platform. Implementations raise on
// missing credentials or transport failure, and return Success=false with
// a Note for structural platform limitations that are not errors.
type Publisher interface {
	Platform() Platform
	Publish(ctx context.Context, content string, opts PublishOptions) (PublishResult, error)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
