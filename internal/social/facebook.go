package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const graphVersion = "v19.0"

// FacebookPublisher posts to a Page feed with the page access token as a
// form parameter. A photo attachment goes through the /photos edge instead
// of /feed.
type FacebookPublisher struct {
	creds  CredentialStore
	media  MediaSource
	client *http.Client
}

func NewFacebookPublisher(creds CredentialStore, media MediaSource) *FacebookPublisher {
	return &FacebookPublisher{creds: creds, media: media, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *FacebookPublisher) Platform() Platform { return Facebook }

func (p *FacebookPublisher) Publish(ctx context.Context, content string, opts PublishOptions) (PublishResult, error) {
	token, _ := p.creds.Get(ctx, "FB_PAGE_ACCESS_TOKEN")
	pageID, _ := p.creds.Get(ctx, "FB_PAGE_ID")
	if token == "" || pageID == "" {
		return PublishResult{}, Errorf(KindCredentialsMissing, "facebook credentials missing, need FB_PAGE_ACCESS_TOKEN, FB_PAGE_ID")
	}

	var req *http.Request
	var err error
	if opts.Attachment != "" && p.media != nil {
		req, err = p.photoRequest(ctx, pageID, token, content, opts.Attachment)
		if err != nil {
			log.Printf("[FBPublish] photo attach failed, posting text-only: %v", err)
			req = nil
		}
	}
	if req == nil {
		form := url.Values{}
		form.Set("message", content)
		form.Set("access_token", token)
		endpoint := fmt.Sprintf("https://graph.facebook.com/%s/%s/feed", graphVersion, url.PathEscape(pageID))
		req, err = http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return PublishResult{}, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return PublishResult{}, err
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	_ = res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return PublishResult{}, Errorf(KindProvider, "facebook api status=%d error=%s", res.StatusCode, extractGraphError(b, truncate(string(b), 600)))
	}

	var obj map[string]interface{}
	_ = json.Unmarshal(b, &obj)
	id, _ := obj["id"].(string)
	if pid, ok := obj["post_id"].(string); ok && pid != "" {
		id = pid
	}
	log.Printf("[FBPublish] ok id=%s", id)
	return PublishResult{Success: true, ID: id, Platform: Facebook}, nil
}

func (p *FacebookPublisher) photoRequest(ctx context.Context, pageID, token, caption, ref string) (*http.Request, error) {
	data, _, err := p.media.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("access_token", token)
	_ = w.WriteField("message", caption)
	fw, err := w.CreateFormFile("source", "photo")
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	_, _ = fw.Write(data)
	_ = w.Close()

	endpoint := fmt.Sprintf("https://graph.facebook.com/%s/%s/photos", graphVersion, url.PathEscape(pageID))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

// extractGraphError pulls error.message out of a Graph API error body,
// falling back to the raw body.
func extractGraphError(body []byte, fallback string) string {
	var fb map[string]interface{}
	if json.Unmarshal(body, &fb) == nil {
		if eObj, ok := fb["error"].(map[string]interface{}); ok {
			if m, ok := eObj["message"].(string); ok && m != "" {
				return truncate(m, 400)
			}
		}
	}
	return truncate(fallback, 400)
}
