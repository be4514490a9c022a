package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// ThreadsPublisher uses the two-step container/publish flow: create a TEXT
// or IMAGE container, then publish it.
type ThreadsPublisher struct {
	creds  CredentialStore
	media  MediaSource
	client *http.Client
}

func NewThreadsPublisher(creds CredentialStore, media MediaSource) *ThreadsPublisher {
	return &ThreadsPublisher{creds: creds, media: media, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *ThreadsPublisher) Platform() Platform { return Threads }

func (p *ThreadsPublisher) Publish(ctx context.Context, content string, opts PublishOptions) (PublishResult, error) {
	token, _ := p.creds.Get(ctx, "THREADS_ACCESS_TOKEN")
	userID, _ := p.creds.Get(ctx, "THREADS_USER_ID")
	if token == "" || userID == "" {
		return PublishResult{}, Errorf(KindCredentialsMissing, "threads credentials missing, need THREADS_ACCESS_TOKEN, THREADS_USER_ID")
	}

	q := url.Values{}
	q.Set("text", content)
	q.Set("access_token", token)
	q.Set("media_type", "TEXT")
	if opts.Attachment != "" && p.media != nil {
		if publicURL, err := p.media.PublicURL(ctx, opts.Attachment); err != nil {
			log.Printf("[ThreadsPublish] media url failed, posting text-only: %v", err)
		} else {
			q.Set("media_type", "IMAGE")
			q.Set("image_url", publicURL)
		}
	}

	// Step 1: create the container.
	endpoint := fmt.Sprintf("https://graph.threads.net/v1.0/%s/threads?%s", url.PathEscape(userID), q.Encode())
	status, b, err := p.post(ctx, endpoint)
	if err != nil {
		return PublishResult{}, err
	}
	if status < 200 || status >= 300 {
		return PublishResult{}, Errorf(KindProvider, "threads container status=%d error=%s", status, extractGraphError(b, truncate(string(b), 600)))
	}
	var container struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(b, &container)
	if container.ID == "" {
		return PublishResult{}, Errorf(KindProvider, "threads container returned no id: %s", truncate(string(b), 400))
	}

	// Step 2: publish it.
	pq := url.Values{}
	pq.Set("creation_id", container.ID)
	pq.Set("access_token", token)
	endpoint = fmt.Sprintf("https://graph.threads.net/v1.0/%s/threads_publish?%s", url.PathEscape(userID), pq.Encode())
	status, b, err = p.post(ctx, endpoint)
	if err != nil {
		return PublishResult{}, err
	}
	if status < 200 || status >= 300 {
		return PublishResult{}, Errorf(KindProvider, "threads publish status=%d error=%s", status, extractGraphError(b, truncate(string(b), 600)))
	}

	var pub struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(b, &pub)
	log.Printf("[ThreadsPublish] ok id=%s", pub.ID)
	return PublishResult{Success: true, ID: pub.ID, Platform: Threads}, nil
}

func (p *ThreadsPublisher) post(ctx context.Context, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	res, err := p.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	_ = res.Body.Close()
	return res.StatusCode, b, nil
}
