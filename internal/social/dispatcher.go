package social

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// PostInput is one entry in a publish-all request.
type PostInput struct {
	Content    string `json:"content"`
	Attachment string `json:"attachment,omitempty"`
}

// Dispatcher validates publish requests, routes them to the platform
// publisher, and writes exactly one audit record per call. It never lets a
// publisher error escape to the caller; every path ends in a PublishResult.
type Dispatcher struct {
	publishers map[Platform]Publisher
	audit      AuditLog
	actor      string
	limiter    *rate.Limiter
}

// DefaultInterCallDelay paces successive provider calls in PublishAll to
// stay under provider rate limits.
const DefaultInterCallDelay = 500 * time.Millisecond

// NewDispatcher wires one publisher per platform over the shared credential
// store and media source.
func NewDispatcher(creds CredentialStore, media MediaSource, tokens *TokenManager, audit AuditLog, actor string, delay time.Duration) *Dispatcher {
	if delay <= 0 {
		delay = DefaultInterCallDelay
	}
	pubs := []Publisher{
		NewTwitterPublisher(creds, media),
		NewLinkedInPublisher(creds, media),
		NewGBPPublisher(creds, media, tokens),
		NewTikTokPublisher(creds, media),
		NewYouTubePublisher(creds, tokens),
		NewTelegramPublisher(creds, media),
		NewFacebookPublisher(creds, media),
		NewInstagramPublisher(creds, media),
		NewThreadsPublisher(creds, media),
		NewSkoolPublisher(),
		NewPatreonPublisher(),
	}
	byPlatform := make(map[Platform]Publisher, len(pubs))
	for _, p := range pubs {
		byPlatform[p.Platform()] = p
	}
	return &Dispatcher{
		publishers: byPlatform,
		audit:      audit,
		actor:      actor,
		limiter:    rate.NewLimiter(rate.Every(delay), 1),
	}
}

// Publish posts content to a single platform. The returned result carries
// the outcome; it never panics and never returns an error.
func (d *Dispatcher) Publish(ctx context.Context, platformKey, content string, opts PublishOptions) PublishResult {
	result, status := d.publishOnce(ctx, platformKey, content, opts)

	detail := result.Error
	if detail == "" {
		detail = result.Note
	}
	rec := AuditRecord{
		Timestamp: time.Now().UTC(),
		Platform:  result.Platform,
		Preview:   contentPreview(content),
		Status:    status,
		Detail:    detail,
		Actor:     d.actor,
	}
	if rec.Platform == "" {
		rec.Platform = Platform(strings.ToLower(strings.TrimSpace(platformKey)))
	}
	if err := d.audit.Record(ctx, rec); err != nil {
		log.Printf("[Publish] audit write failed platform=%s err=%v", rec.Platform, err)
	}
	return result
}

func (d *Dispatcher) publishOnce(ctx context.Context, platformKey, content string, opts PublishOptions) (result PublishResult, status string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Publish] panic platform=%s: %v", platformKey, r)
			result = PublishResult{Success: false, Platform: Platform(platformKey), Error: fmt.Sprintf("internal error: %v", r)}
			status = AuditError
		}
	}()

	if strings.TrimSpace(content) == "" {
		return PublishResult{Success: false, Platform: Platform(platformKey), Error: "post content cannot be empty"}, AuditError
	}
	platform, err := ParsePlatform(platformKey)
	if err != nil {
		return PublishResult{Success: false, Platform: Platform(platformKey), Error: err.Error()}, AuditError
	}
	if n := len([]rune(content)); n > platform.Limit() {
		return PublishResult{
			Success:  false,
			Platform: platform,
			Error:    fmt.Sprintf("%s post exceeds %d character limit (%d chars)", platform.Label(), platform.Limit(), n),
		}, AuditError
	}

	pub := d.publishers[platform]
	res, err := pub.Publish(ctx, content, opts)
	if err != nil {
		log.Printf("[Publish] error platform=%s kind=%s err=%v", platform, KindOf(err), err)
		return PublishResult{Success: false, Platform: platform, Error: err.Error()}, AuditError
	}
	res.Platform = platform
	if res.Success {
		return res, AuditSuccess
	}
	// Graceful degradation: no exception, but the platform could not take
	// the post (Skool/Patreon, text-only Instagram, TikTok).
	return res, AuditPartial
}

// PublishAll publishes to each requested platform independently: one
// platform failing never aborts the rest. Successive provider calls are
// paced by the inter-call delay; skipped entries (empty content) don't
// consume a slot.
func (d *Dispatcher) PublishAll(ctx context.Context, posts map[string]PostInput) map[string]PublishResult {
	results := make(map[string]PublishResult, len(posts))
	for _, key := range orderedKeys(posts) {
		in := posts[key]
		if strings.TrimSpace(in.Content) == "" {
			results[key] = PublishResult{Success: false, Platform: Platform(key), Error: "Empty content — skipped."}
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			results[key] = PublishResult{Success: false, Platform: Platform(key), Error: err.Error()}
			continue
		}
		results[key] = d.Publish(ctx, key, in.Content, PublishOptions{Attachment: in.Attachment})
	}
	return results
}

// orderedKeys yields known platforms in their canonical order first, then
// any unrecognized keys, so batch runs are deterministic.
func orderedKeys(posts map[string]PostInput) []string {
	keys := make([]string, 0, len(posts))
	seen := make(map[string]bool, len(posts))
	for _, p := range AllPlatforms() {
		if _, ok := posts[string(p)]; ok {
			keys = append(keys, string(p))
			seen[string(p)] = true
		}
	}
	rest := make([]string, 0)
	for k := range posts {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	// Unknown keys still get a deterministic spot at the end.
	sort.Strings(rest)
	return append(keys, rest...)
}
