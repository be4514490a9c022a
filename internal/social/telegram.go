package social

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

// TelegramPublisher sends bot messages to a channel. The bot token lives in
// the URL path; photos go out as multipart sendPhoto, plain text as JSON
// sendMessage.
type TelegramPublisher struct {
	creds  CredentialStore
	media  MediaSource
	client *http.Client
}

func NewTelegramPublisher(creds CredentialStore, media MediaSource) *TelegramPublisher {
	return &TelegramPublisher{creds: creds, media: media, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *TelegramPublisher) Platform() Platform { return Telegram }

func (p *TelegramPublisher) Publish(ctx context.Context, content string, opts PublishOptions) (PublishResult, error) {
	botToken, _ := p.creds.Get(ctx, "TELEGRAM_BOT_TOKEN")
	chatID, _ := p.creds.Get(ctx, "TELEGRAM_CHAT_ID")
	if botToken == "" || chatID == "" {
		return PublishResult{}, Errorf(KindCredentialsMissing, "telegram credentials missing, need TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID")
	}

	var req *http.Request
	var err error
	if opts.Attachment != "" && p.media != nil {
		req, err = p.photoRequest(ctx, botToken, chatID, content, opts.Attachment)
		if err != nil {
			log.Printf("[TGPublish] photo attach failed, sending text-only: %v", err)
			req = nil
		}
	}
	if req == nil {
		endpoint := "https://api.telegram.org/bot" + botToken + "/sendMessage"
		payload, _ := json.Marshal(map[string]string{"chat_id": chatID, "text": content})
		req, err = http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
		if err != nil {
			return PublishResult{}, err
		}
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := p.client.Do(req)
	if err != nil {
		return PublishResult{}, err
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	_ = res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return PublishResult{}, Errorf(KindProvider, "telegram api status=%d body=%s", res.StatusCode, truncate(string(b), 600))
	}

	var resp struct {
		Result struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
	}
	_ = json.Unmarshal(b, &resp)
	id := ""
	if resp.Result.MessageID != 0 {
		id = strconv.FormatInt(resp.Result.MessageID, 10)
	}
	log.Printf("[TGPublish] ok id=%s", id)
	return PublishResult{Success: true, ID: id, Platform: Telegram}, nil
}

func (p *TelegramPublisher) photoRequest(ctx context.Context, botToken, chatID, caption, ref string) (*http.Request, error) {
	data, _, err := p.media.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("chat_id", chatID)
	_ = w.WriteField("caption", caption)
	fw, err := w.CreateFormFile("photo", "photo")
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	_, _ = fw.Write(data)
	_ = w.Close()

	endpoint := "https://api.telegram.org/bot" + botToken + "/sendPhoto"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}
