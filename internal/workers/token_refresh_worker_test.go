package workers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shamrockbb/social-backoffice/internal/social"
)

type stubTransport struct {
	fn func(*http.Request) (*http.Response, error)
}

func (t stubTransport) RoundTrip(r *http.Request) (*http.Response, error) { return t.fn(r) }

func httpJSON(status int, body string) *http.Response {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestRefreshAll_SkipsUnconnectedPlatforms(t *testing.T) {
	creds := social.NewMemCredentials(map[string]string{
		"GBP_REFRESH_TOKEN":          "r1",
		"GOOGLE_OAUTH_CLIENT_ID":     "cid",
		"GOOGLE_OAUTH_CLIENT_SECRET": "cs",
		// YouTube has no token material at all and must be skipped.
	})
	w := &TokenRefreshWorker{
		Tokens:           &social.TokenManager{Creds: creds},
		Creds:            creds,
		InterCallDelayMs: 1,
	}

	var tokenCalls int
	orig := http.DefaultTransport
	defer func() { http.DefaultTransport = orig }()
	http.DefaultTransport = stubTransport{fn: func(r *http.Request) (*http.Response, error) {
		if r.URL.Host != "oauth2.googleapis.com" {
			return httpJSON(500, `{"error":"unexpected_host"}`), nil
		}
		tokenCalls++
		return httpJSON(200, `{"access_token":"fresh"}`), nil
	}}

	w.refreshAll(context.Background(), shortCyclePlatforms)

	if tokenCalls != 1 {
		t.Fatalf("expected 1 refresh call (gbp only), got %d", tokenCalls)
	}
	if v, _ := creds.Get(context.Background(), "GBP_ACCESS_TOKEN"); v != "fresh" {
		t.Fatalf("gbp access token not persisted: %q", v)
	}
}

func TestRefreshAll_ExchangesFacebookPageToken(t *testing.T) {
	creds := social.NewMemCredentials(map[string]string{
		"FB_PAGE_ACCESS_TOKEN": "old60day",
		"FB_APP_ID":            "app1",
		"FB_APP_SECRET":        "s3cret",
	})
	w := &TokenRefreshWorker{
		Tokens:           &social.TokenManager{Creds: creds},
		Creds:            creds,
		InterCallDelayMs: 1,
	}

	var exchangeCalls int
	orig := http.DefaultTransport
	defer func() { http.DefaultTransport = orig }()
	http.DefaultTransport = stubTransport{fn: func(r *http.Request) (*http.Response, error) {
		if r.URL.Host != "graph.facebook.com" {
			return httpJSON(500, `{"error":"unexpected_host"}`), nil
		}
		if got := r.URL.Query().Get("grant_type"); got != "fb_exchange_token" {
			t.Errorf("grant_type = %q, want fb_exchange_token", got)
		}
		if got := r.URL.Query().Get("fb_exchange_token"); got != "old60day" {
			t.Errorf("fb_exchange_token = %q, want old60day", got)
		}
		exchangeCalls++
		return httpJSON(200, `{"access_token":"new60day"}`), nil
	}}

	w.refreshAll(context.Background(), []social.Platform{social.Facebook})

	if exchangeCalls != 1 {
		t.Fatalf("expected 1 fb_exchange_token call for a connected page, got %d", exchangeCalls)
	}
	if v, _ := creds.Get(context.Background(), "FB_PAGE_ACCESS_TOKEN"); v != "new60day" {
		t.Fatalf("page token not rotated: %q", v)
	}
}

func TestHasRefreshMaterial(t *testing.T) {
	creds := social.NewMemCredentials(map[string]string{
		"TIKTOK_REFRESH_TOKEN":   "r",
		"THREADS_ACCESS_TOKEN":   "a",
		"FB_PAGE_ACCESS_TOKEN":   "p",
		"LINKEDIN_REFRESH_TOKEN": "",
	})
	w := &TokenRefreshWorker{Creds: creds}

	if !w.hasRefreshMaterial(context.Background(), social.TikTok) {
		t.Fatal("tiktok has a refresh token")
	}
	if !w.hasRefreshMaterial(context.Background(), social.Threads) {
		t.Fatal("threads refreshes off its access token")
	}
	if !w.hasRefreshMaterial(context.Background(), social.Facebook) {
		t.Fatal("facebook refreshes off the shared page token")
	}
	if !w.hasRefreshMaterial(context.Background(), social.Instagram) {
		t.Fatal("instagram rides on the facebook page token")
	}
	if w.hasRefreshMaterial(context.Background(), social.LinkedIn) {
		t.Fatal("linkedin has nothing stored")
	}
}
