package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MediaSource resolves an attachment reference to its bytes and MIME type,
// and to a publicly fetchable URL for platforms that pull media server-side.
// PublicURL is idempotent: repeated calls re-assert the same public access.
type MediaSource interface {
	Open(ctx context.Context, ref string) (data []byte, contentType string, err error)
	PublicURL(ctx context.Context, ref string) (string, error)
}

// DirMediaSource serves attachments from a local uploads directory. The
// public URL is the file path under the configured origin, which the API
// server exposes read-only.
type DirMediaSource struct {
	Dir    string
	Origin string
}

func (s *DirMediaSource) Open(ctx context.Context, ref string) ([]byte, string, error) {
	name := sanitizeMediaRef(ref)
	if name == "" {
		return nil, "", Errorf(KindValidation, "invalid media ref %q", ref)
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, "", fmt.Errorf("media ref %q: %w", ref, err)
	}
	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return data, ct, nil
}

func (s *DirMediaSource) PublicURL(ctx context.Context, ref string) (string, error) {
	name := sanitizeMediaRef(ref)
	if name == "" {
		return "", Errorf(KindValidation, "invalid media ref %q", ref)
	}
	if _, err := os.Stat(filepath.Join(s.Dir, name)); err != nil {
		return "", fmt.Errorf("media ref %q: %w", ref, err)
	}
	return strings.TrimRight(s.Origin, "/") + "/media/" + url.PathEscape(name), nil
}

func sanitizeMediaRef(ref string) string {
	name := filepath.Base(strings.TrimSpace(ref))
	if name == "" || name == "." || name == ".." {
		return ""
	}
	return name
}

// uploadToTwitter runs the chunked INIT/APPEND/FINALIZE protocol against
// the Twitter media endpoint and returns the media id. Any non-2xx at any
// step aborts the upload; callers decide whether to drop the media or fail
// the post.
func uploadToTwitter(ctx context.Context, client *http.Client, creds OAuth1Credentials, data []byte) (string, error) {
	const endpoint = "https://upload.twitter.com/1.1/media/upload.json"

	// INIT declares the total byte size and category.
	initParams := map[string]string{
		"command":        "INIT",
		"total_bytes":    fmt.Sprintf("%d", len(data)),
		"media_category": "tweet_image",
	}
	initBody, err := twitterMediaCall(ctx, client, endpoint, initParams, creds, nil, "")
	if err != nil {
		return "", fmt.Errorf("twitter INIT: %w", err)
	}
	var initResp struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.Unmarshal(initBody, &initResp); err != nil || initResp.MediaIDString == "" {
		return "", Errorf(KindProvider, "twitter INIT returned no media id: %s", truncate(string(initBody), 400))
	}
	mediaID := initResp.MediaIDString

	// APPEND segment 0 carries the raw bytes as multipart form data.
	appendParams := map[string]string{
		"command":       "APPEND",
		"media_id":      mediaID,
		"segment_index": "0",
	}
	if _, err := twitterMediaCall(ctx, client, endpoint, appendParams, creds, data, "media"); err != nil {
		return "", fmt.Errorf("twitter APPEND: %w", err)
	}

	finalizeParams := map[string]string{
		"command":  "FINALIZE",
		"media_id": mediaID,
	}
	if _, err := twitterMediaCall(ctx, client, endpoint, finalizeParams, creds, nil, ""); err != nil {
		return "", fmt.Errorf("twitter FINALIZE: %w", err)
	}
	return mediaID, nil
}

// twitterMediaCall POSTs one upload step. Params ride in the query string
// and are included in the OAuth 1.0a signature; file bytes (when present)
// go in a multipart body, which the signature excludes per the provider.
func twitterMediaCall(ctx context.Context, client *http.Client, endpoint string, params map[string]string, creds OAuth1Credentials, file []byte, fileField string) ([]byte, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}

	var body io.Reader
	contentType := ""
	if file != nil {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		fw, err := w.CreateFormFile(fileField, "media")
		if err != nil {
			return nil, err
		}
		_, _ = fw.Write(file)
		_ = w.Close()
		body = bytes.NewReader(buf.Bytes())
		contentType = w.FormDataContentType()
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint+"?"+q.Encode(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", OAuth1Header("POST", endpoint, params, creds))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	_ = res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, Errorf(KindProvider, "twitter media upload status=%d body=%s", res.StatusCode, truncate(string(b), 600))
	}
	return b, nil
}

// uploadToLinkedIn registers an upload slot, PUTs the raw bytes to the
// returned URL, and returns the asset URN to attach to the post payload.
// There is no separate finalize step.
func uploadToLinkedIn(ctx context.Context, client *http.Client, accessToken, ownerURN string, data []byte) (string, error) {
	registerPayload := map[string]interface{}{
		"registerUploadRequest": map[string]interface{}{
			"recipes":                  []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":                    ownerURN,
			"supportedUploadMechanism": []string{"SYNCHRONOUS_UPLOAD"},
		},
	}
	payload, _ := json.Marshal(registerPayload)
	req, err := http.NewRequestWithContext(ctx, "POST",
		"https://api.linkedin.com/v2/assets?action=registerUpload", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	_ = res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", Errorf(KindProvider, "linkedin registerUpload status=%d body=%s", res.StatusCode, truncate(string(b), 600))
	}

	var reg struct {
		Value struct {
			Asset           string `json:"asset"`
			UploadMechanism struct {
				MediaUploadHTTPRequest struct {
					UploadURL string `json:"uploadUrl"`
				} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
			} `json:"uploadMechanism"`
		} `json:"value"`
	}
	if err := json.Unmarshal(b, &reg); err != nil {
		return "", Errorf(KindProvider, "linkedin registerUpload returned invalid json: %s", truncate(string(b), 400))
	}
	uploadURL := reg.Value.UploadMechanism.MediaUploadHTTPRequest.UploadURL
	asset := reg.Value.Asset
	if uploadURL == "" || asset == "" {
		return "", Errorf(KindProvider, "linkedin registerUpload missing uploadUrl or asset: %s", truncate(string(b), 400))
	}

	putReq, err := http.NewRequestWithContext(ctx, "PUT", uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	putReq.Header.Set("Authorization", "Bearer "+accessToken)
	putRes, err := client.Do(putReq)
	if err != nil {
		return "", err
	}
	pb, _ := io.ReadAll(io.LimitReader(putRes.Body, 1<<20))
	_ = putRes.Body.Close()
	if putRes.StatusCode < 200 || putRes.StatusCode >= 300 {
		return "", Errorf(KindProvider, "linkedin media upload status=%d body=%s", putRes.StatusCode, truncate(string(pb), 600))
	}
	return asset, nil
}

func mediaClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
