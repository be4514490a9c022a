package social

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"
)

// TwitterPublisher posts tweets via the v2 API with OAuth 1.0a user-context
// signatures. An optional image rides along through the chunked upload
// endpoint; a failed upload degrades the tweet to text-only.
type TwitterPublisher struct {
	creds  CredentialStore
	media  MediaSource
	client *http.Client
}

func NewTwitterPublisher(creds CredentialStore, media MediaSource) *TwitterPublisher {
	return &TwitterPublisher{creds: creds, media: media, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *TwitterPublisher) Platform() Platform { return Twitter }

func (p *TwitterPublisher) Publish(ctx context.Context, content string, opts PublishOptions) (PublishResult, error) {
	apiKey, _ := p.creds.Get(ctx, "TWITTER_API_KEY")
	apiSecret, _ := p.creds.Get(ctx, "TWITTER_API_SECRET")
	accessToken, _ := p.creds.Get(ctx, "TWITTER_ACCESS_TOKEN")
	accessSecret, _ := p.creds.Get(ctx, "TWITTER_ACCESS_TOKEN_SECRET")
	if apiKey == "" || apiSecret == "" || accessToken == "" || accessSecret == "" {
		return PublishResult{}, Errorf(KindCredentialsMissing,
			"twitter credentials missing, need TWITTER_API_KEY, TWITTER_API_SECRET, TWITTER_ACCESS_TOKEN, TWITTER_ACCESS_TOKEN_SECRET")
	}
	oc := OAuth1Credentials{
		ConsumerKey:    apiKey,
		ConsumerSecret: apiSecret,
		Token:          accessToken,
		TokenSecret:    accessSecret,
	}

	payload := map[string]interface{}{"text": content}
	if opts.Attachment != "" && p.media != nil {
		if mediaID, err := p.attachMedia(ctx, oc, opts.Attachment); err != nil {
			// Deliberate non-atomicity: a failed upload drops the media and
			// posts the text anyway.
			log.Printf("[TwitterPublish] media upload failed, posting text-only: %v", err)
		} else {
			payload["media"] = map[string]interface{}{"media_ids": []string{mediaID}}
		}
	}

	const endpoint = "https://api.twitter.com/2/tweets"
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return PublishResult{}, err
	}
	// The tweet body is JSON, so only oauth_* params enter the signature.
	req.Header.Set("Authorization", OAuth1Header("POST", endpoint, nil, oc))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return PublishResult{}, err
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	_ = res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return PublishResult{}, Errorf(KindProvider, "twitter api status=%d body=%s", res.StatusCode, truncate(string(b), 600))
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	_ = json.Unmarshal(b, &resp)
	log.Printf("[TwitterPublish] ok id=%s", resp.Data.ID)
	return PublishResult{Success: true, ID: resp.Data.ID, Platform: Twitter}, nil
}

func (p *TwitterPublisher) attachMedia(ctx context.Context, oc OAuth1Credentials, ref string) (string, error) {
	data, _, err := p.media.Open(ctx, ref)
	if err != nil {
		return "", err
	}
	return uploadToTwitter(ctx, mediaClient(), oc, data)
}
