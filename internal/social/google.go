package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// doWithRefresh performs one bearer-authenticated request and, on HTTP 401,
// refreshes the platform token and retries the same request exactly once.
// The retry is never looped; a second failure is returned as-is.
func doWithRefresh(ctx context.Context, client *http.Client, tokens *TokenManager, p Platform, accessToken string, build func(token string) (*http.Request, error)) (int, []byte, error) {
	req, err := build(accessToken)
	if err != nil {
		return 0, nil, err
	}
	res, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	_ = res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		return res.StatusCode, b, nil
	}

	fresh, rerr := tokens.Refresh(ctx, p)
	if rerr != nil {
		return res.StatusCode, b, Errorf(KindProvider,
			"%s api status=401 body=%s, token refresh also failed: %v", p, truncate(string(b), 300), rerr)
	}
	log.Printf("[Publish] platform=%s got 401, retrying once with refreshed token", p)

	retryReq, err := build(fresh)
	if err != nil {
		return 0, nil, err
	}
	retryRes, err := client.Do(retryReq)
	if err != nil {
		return 0, nil, err
	}
	rb, _ := io.ReadAll(io.LimitReader(retryRes.Body, 1<<20))
	_ = retryRes.Body.Close()
	return retryRes.StatusCode, rb, nil
}

// GBPPublisher creates Google Business Profile local posts. An attachment
// is referenced by its public URL; GBP fetches it server-side.
type GBPPublisher struct {
	creds  CredentialStore
	media  MediaSource
	tokens *TokenManager
	client *http.Client
}

func NewGBPPublisher(creds CredentialStore, media MediaSource, tokens *TokenManager) *GBPPublisher {
	return &GBPPublisher{creds: creds, media: media, tokens: tokens, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *GBPPublisher) Platform() Platform { return GBP }

func (p *GBPPublisher) Publish(ctx context.Context, content string, opts PublishOptions) (PublishResult, error) {
	accessToken, _ := p.creds.Get(ctx, "GBP_ACCESS_TOKEN")
	locationID, _ := p.creds.Get(ctx, "GBP_LOCATION_ID")
	if accessToken == "" {
		return PublishResult{}, Errorf(KindCredentialsMissing, "gbp credentials missing, need GBP_ACCESS_TOKEN")
	}
	if locationID == "" {
		return PublishResult{}, Errorf(KindCredentialsMissing, "GBP_LOCATION_ID not set")
	}

	payload := map[string]interface{}{
		"languageCode": "en-US",
		"summary":      content,
		"topicType":    "STANDARD",
	}
	if opts.Attachment != "" && p.media != nil {
		publicURL, err := p.media.PublicURL(ctx, opts.Attachment)
		if err != nil {
			log.Printf("[GBPPublish] media url failed, posting text-only: %v", err)
		} else {
			payload["media"] = []map[string]string{{"mediaFormat": "PHOTO", "sourceUrl": publicURL}}
		}
	}
	body, _ := json.Marshal(payload)
	endpoint := fmt.Sprintf("https://mybusiness.googleapis.com/v4/accounts/-/locations/%s/localPosts", url.PathEscape(locationID))

	status, b, err := doWithRefresh(ctx, p.client, p.tokens, GBP, accessToken, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return PublishResult{}, err
	}
	if status < 200 || status >= 300 {
		return PublishResult{}, Errorf(KindProvider, "gbp api status=%d body=%s", status, truncate(string(b), 600))
	}

	var resp struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(b, &resp)
	log.Printf("[GBPPublish] ok id=%s", resp.Name)
	return PublishResult{Success: true, ID: resp.Name, Platform: GBP}, nil
}

// YouTubePublisher creates text-only Community tab posts. Channels under
// 500 subscribers are not eligible; the API answers 403 and that surfaces
// as a hard error.
type YouTubePublisher struct {
	creds  CredentialStore
	tokens *TokenManager
	client *http.Client
}

func NewYouTubePublisher(creds CredentialStore, tokens *TokenManager) *YouTubePublisher {
	return &YouTubePublisher{creds: creds, tokens: tokens, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *YouTubePublisher) Platform() Platform { return YouTube }

func (p *YouTubePublisher) Publish(ctx context.Context, content string, opts PublishOptions) (PublishResult, error) {
	accessToken, _ := p.creds.Get(ctx, "YOUTUBE_ACCESS_TOKEN")
	channelID, _ := p.creds.Get(ctx, "YOUTUBE_CHANNEL_ID")
	if accessToken == "" {
		return PublishResult{}, Errorf(KindCredentialsMissing, "youtube credentials missing, need YOUTUBE_ACCESS_TOKEN")
	}
	if channelID == "" {
		return PublishResult{}, Errorf(KindCredentialsMissing, "YOUTUBE_CHANNEL_ID not set")
	}

	payload := map[string]interface{}{
		"snippet": map[string]string{
			"type":         "textPost",
			"textOriginal": content,
		},
	}
	body, _ := json.Marshal(payload)
	endpoint := "https://www.googleapis.com/youtube/v3/communityPosts?part=snippet"

	status, b, err := doWithRefresh(ctx, p.client, p.tokens, YouTube, accessToken, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return PublishResult{}, err
	}
	if status == http.StatusForbidden {
		return PublishResult{}, Errorf(KindProvider,
			"youtube api status=403 (channel may be ineligible for community posts, needs 500+ subscribers) body=%s", truncate(string(b), 400))
	}
	if status < 200 || status >= 300 {
		return PublishResult{}, Errorf(KindProvider, "youtube api status=%d body=%s", status, truncate(string(b), 600))
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(b, &resp)
	log.Printf("[YTPublish] ok id=%s", resp.ID)
	return PublishResult{Success: true, ID: resp.ID, Platform: YouTube}, nil
}
