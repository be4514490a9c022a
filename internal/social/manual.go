package social

import "context"

// ManualPublisher covers platforms we cannot post to programmatically.
// Skool has no public posting API; Patreon creator posting needs an
// advanced OAuth flow we don't implement. Both return immediately without
// any network call.
type ManualPublisher struct {
	platform Platform
	note     string
}

func NewSkoolPublisher() *ManualPublisher {
	return &ManualPublisher{
		platform: Skool,
		note:     "Skool API posting not currently supported. Please copy the text and post manually.",
	}
}

func NewPatreonPublisher() *ManualPublisher {
	return &ManualPublisher{
		platform: Patreon,
		note:     "Patreon API posting for creators requires advanced OAuth. Please copy the text and post manually.",
	}
}

func (p *ManualPublisher) Platform() Platform { return p.platform }

func (p *ManualPublisher) Publish(ctx context.Context, content string, opts PublishOptions) (PublishResult, error) {
	return PublishResult{Success: false, Platform: p.platform, Note: p.note}, nil
}
