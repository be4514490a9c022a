package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// InstagramPublisher posts through the Graph API using the Facebook page
// token. The linked IG business account id is discovered on first use and
// cached in the credential store. The Graph API has no text-only post type,
// so publishing without an attachment degrades immediately, before any
// network call.
type InstagramPublisher struct {
	creds  CredentialStore
	media  MediaSource
	client *http.Client
}

func NewInstagramPublisher(creds CredentialStore, media MediaSource) *InstagramPublisher {
	return &InstagramPublisher{creds: creds, media: media, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *InstagramPublisher) Platform() Platform { return Instagram }

func (p *InstagramPublisher) Publish(ctx context.Context, content string, opts PublishOptions) (PublishResult, error) {
	if opts.Attachment == "" {
		return PublishResult{
			Success:  false,
			Platform: Instagram,
			Note:     "Instagram requires an image or video, text-only posting is unsupported by the Graph API. Please post manually.",
		}, nil
	}

	token, _ := p.creds.Get(ctx, "FB_PAGE_ACCESS_TOKEN")
	pageID, _ := p.creds.Get(ctx, "FB_PAGE_ID")
	if token == "" || pageID == "" {
		return PublishResult{}, Errorf(KindCredentialsMissing, "instagram credentials missing, need FB_PAGE_ACCESS_TOKEN, FB_PAGE_ID")
	}

	igID, err := p.businessAccountID(ctx, pageID, token)
	if err != nil {
		return PublishResult{}, err
	}

	publicURL, err := p.media.PublicURL(ctx, opts.Attachment)
	if err != nil {
		return PublishResult{}, err
	}

	// Step 1: create the media container.
	form := url.Values{}
	form.Set("image_url", publicURL)
	form.Set("caption", content)
	form.Set("access_token", token)
	endpoint := fmt.Sprintf("https://graph.facebook.com/%s/%s/media", graphVersion, url.PathEscape(igID))
	status, b, err := p.postForm(ctx, endpoint, form)
	if err != nil {
		return PublishResult{}, err
	}
	if status < 200 || status >= 300 {
		return PublishResult{}, Errorf(KindProvider, "instagram media init status=%d error=%s", status, extractGraphError(b, truncate(string(b), 600)))
	}
	var container struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(b, &container)
	if container.ID == "" {
		return PublishResult{}, Errorf(KindProvider, "instagram media init returned no container id: %s", truncate(string(b), 400))
	}

	// Step 2: publish the container.
	form = url.Values{}
	form.Set("creation_id", container.ID)
	form.Set("access_token", token)
	endpoint = fmt.Sprintf("https://graph.facebook.com/%s/%s/media_publish", graphVersion, url.PathEscape(igID))
	status, b, err = p.postForm(ctx, endpoint, form)
	if err != nil {
		return PublishResult{}, err
	}
	if status < 200 || status >= 300 {
		return PublishResult{}, Errorf(KindProvider, "instagram publish status=%d error=%s", status, extractGraphError(b, truncate(string(b), 600)))
	}

	var pub struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(b, &pub)
	log.Printf("[IGPublish] ok id=%s", pub.ID)
	return PublishResult{Success: true, ID: pub.ID, Platform: Instagram}, nil
}

// businessAccountID returns the cached IG business account id, discovering
// it from the page on first use.
func (p *InstagramPublisher) businessAccountID(ctx context.Context, pageID, token string) (string, error) {
	if cached, _ := p.creds.Get(ctx, "INSTAGRAM_ACCOUNT_ID"); strings.TrimSpace(cached) != "" {
		return cached, nil
	}

	endpoint := fmt.Sprintf("https://graph.facebook.com/%s/%s?fields=instagram_business_account&access_token=%s",
		graphVersion, url.PathEscape(pageID), url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	res, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	_ = res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", Errorf(KindProvider, "instagram account lookup status=%d error=%s", res.StatusCode, extractGraphError(b, truncate(string(b), 400)))
	}

	var resp struct {
		InstagramBusinessAccount struct {
			ID string `json:"id"`
		} `json:"instagram_business_account"`
	}
	_ = json.Unmarshal(b, &resp)
	igID := resp.InstagramBusinessAccount.ID
	if igID == "" {
		return "", Errorf(KindProvider, "no Instagram business account linked to page %s, link it in Page settings", pageID)
	}
	_ = p.creds.Set(ctx, "INSTAGRAM_ACCOUNT_ID", igID)
	return igID, nil
}

func (p *InstagramPublisher) postForm(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	res, err := p.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	_ = res.Body.Close()
	return res.StatusCode, b, nil
}
