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

// LinkedInPublisher posts UGC shares to a company page with an OAuth2
// bearer token. Images go through register-upload-then-PUT; like Twitter,
// a failed upload degrades to a text-only share.
type LinkedInPublisher struct {
	creds  CredentialStore
	media  MediaSource
	client *http.Client
}

func NewLinkedInPublisher(creds CredentialStore, media MediaSource) *LinkedInPublisher {
	return &LinkedInPublisher{creds: creds, media: media, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *LinkedInPublisher) Platform() Platform { return LinkedIn }

func (p *LinkedInPublisher) Publish(ctx context.Context, content string, opts PublishOptions) (PublishResult, error) {
	accessToken, _ := p.creds.Get(ctx, "LINKEDIN_ACCESS_TOKEN")
	companyURN, _ := p.creds.Get(ctx, "LINKEDIN_COMPANY_URN")
	if accessToken == "" {
		return PublishResult{}, Errorf(KindCredentialsMissing, "linkedin credentials missing, need LINKEDIN_ACCESS_TOKEN")
	}
	if companyURN == "" {
		return PublishResult{}, Errorf(KindCredentialsMissing, "LINKEDIN_COMPANY_URN not set, format: urn:li:organization:12345678")
	}

	share := map[string]interface{}{
		"shareCommentary":    map[string]string{"text": content},
		"shareMediaCategory": "NONE",
	}
	if opts.Attachment != "" && p.media != nil {
		if asset, err := p.attachMedia(ctx, accessToken, companyURN, opts.Attachment); err != nil {
			log.Printf("[LinkedInPublish] media upload failed, posting text-only: %v", err)
		} else {
			share["shareMediaCategory"] = "IMAGE"
			share["media"] = []map[string]interface{}{{"media": asset, "status": "READY"}}
		}
	}

	payload := map[string]interface{}{
		"author":         companyURN,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": share,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.linkedin.com/v2/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return PublishResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	res, err := p.client.Do(req)
	if err != nil {
		return PublishResult{}, err
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	_ = res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return PublishResult{}, Errorf(KindProvider, "linkedin api status=%d body=%s", res.StatusCode, truncate(string(b), 600))
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(b, &resp)
	log.Printf("[LinkedInPublish] ok id=%s", resp.ID)
	return PublishResult{Success: true, ID: resp.ID, Platform: LinkedIn}, nil
}

func (p *LinkedInPublisher) attachMedia(ctx context.Context, accessToken, ownerURN, ref string) (string, error) {
	data, _, err := p.media.Open(ctx, ref)
	if err != nil {
		return "", err
	}
	return uploadToLinkedIn(ctx, mediaClient(), accessToken, ownerURN, data)
}
