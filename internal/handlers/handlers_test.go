package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/shamrockbb/social-backoffice/internal/social"
)

type memAudit struct {
	mu   sync.Mutex
	recs []social.AuditRecord
}

func (l *memAudit) Record(ctx context.Context, rec social.AuditRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, rec)
	return nil
}

func (l *memAudit) LastPostTimes(ctx context.Context) (map[social.Platform]*time.Time, error) {
	out := make(map[social.Platform]*time.Time)
	for _, p := range social.AllPlatforms() {
		out[p] = nil
	}
	return out, nil
}

type fakeDrafter struct {
	drafts map[social.Platform]string
	err    error
}

func (f *fakeDrafter) Draft(ctx context.Context, topic string, platforms []social.Platform) (map[social.Platform]string, error) {
	return f.drafts, f.err
}

func newTestServer(t *testing.T, creds social.CredentialStore, audit social.AuditLog, drafter social.Drafter) (*mux.Router, *social.TokenManager) {
	t.Helper()
	if creds == nil {
		creds = social.NewMemCredentials(nil)
	}
	if audit == nil {
		audit = &memAudit{}
	}
	if drafter == nil {
		drafter = &fakeDrafter{}
	}
	tokens := &social.TokenManager{Creds: creds, StateSecret: []byte("test-secret"), RedirectURI: "https://app.example/oauth/callback"}
	dispatch := social.NewDispatcher(creds, nil, tokens, audit, "test", time.Millisecond)
	h := New(nil, dispatch, tokens, creds, audit, drafter)
	r := mux.NewRouter()
	RegisterRoutes(h, r)
	return r, tokens
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t, nil, nil, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestPublishPost_BadJSON(t *testing.T) {
	r, _ := newTestServer(t, nil, nil, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/social/publish", strings.NewReader("{not json")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestPublishPost_ManualPlatform(t *testing.T) {
	audit := &memAudit{}
	r, _ := newTestServer(t, nil, audit, nil)

	w := httptest.NewRecorder()
	body := `{"platform":"skool","content":"weekly update"}`
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/social/publish", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var res social.PublishResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Success || !strings.Contains(res.Note, "manually") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(audit.recs) != 1 || audit.recs[0].Status != social.AuditPartial {
		t.Fatalf("expected one partial audit record, got %+v", audit.recs)
	}
}

func TestPublishPost_UnknownPlatform(t *testing.T) {
	r, _ := newTestServer(t, nil, nil, nil)
	w := httptest.NewRecorder()
	body := `{"platform":"myspace","content":"hello"}`
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/social/publish", strings.NewReader(body)))
	// Dispatch failures are results, not transport errors.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res social.PublishResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Success || !strings.Contains(res.Error, "unknown platform") {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPublishAll(t *testing.T) {
	r, _ := newTestServer(t, nil, nil, nil)
	w := httptest.NewRecorder()
	body := `{"posts":{"skool":{"content":"hello"},"patreon":{"content":"  "}}}`
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/social/publish-all", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Results map[string]social.PublishResult `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %v", resp.Results)
	}
	if resp.Results["patreon"].Error != "Empty content — skipped." {
		t.Fatalf("patreon should be skipped: %+v", resp.Results["patreon"])
	}

	// Missing posts object.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/social/publish-all", strings.NewReader(`{}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGenerateDrafts(t *testing.T) {
	drafter := &fakeDrafter{drafts: map[social.Platform]string{social.Twitter: "a draft"}}
	r, _ := newTestServer(t, nil, nil, drafter)

	w := httptest.NewRecorder()
	body := `{"topic":"launch","platforms":["twitter"]}`
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/social/drafts", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "a draft") {
		t.Fatalf("body = %s", w.Body.String())
	}

	// Unknown platform in the request is a 400.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/social/drafts", strings.NewReader(`{"topic":"x","platforms":["myspace"]}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGenerateDrafts_MissingKey(t *testing.T) {
	drafter := &fakeDrafter{err: social.Errorf(social.KindCredentialsMissing, "missing OPENAI_API_KEY")}
	r, _ := newTestServer(t, nil, nil, drafter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/social/drafts", strings.NewReader(`{"topic":"x"}`)))
	if w.Code != http.StatusPreconditionFailed {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCredentialStatus(t *testing.T) {
	creds := social.NewMemCredentials(map[string]string{
		"TELEGRAM_BOT_TOKEN": "b",
		"TELEGRAM_CHAT_ID":   "c",
	})
	r, _ := newTestServer(t, creds, nil, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/social/credential-status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var status map[social.Platform]bool
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status[social.Telegram] || status[social.Twitter] {
		t.Fatalf("unexpected status: %v", status)
	}
}

func TestLastPostTimes(t *testing.T) {
	r, _ := newTestServer(t, nil, nil, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/social/last-post-times", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var times map[social.Platform]*time.Time
	if err := json.Unmarshal(w.Body.Bytes(), &times); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(times) != len(social.AllPlatforms()) {
		t.Fatalf("expected all platforms, got %d", len(times))
	}
}

func TestAuthURL(t *testing.T) {
	creds := social.NewMemCredentials(map[string]string{"GOOGLE_OAUTH_CLIENT_ID": "gid"})
	r, _ := newTestServer(t, creds, nil, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/social/auth-url/youtube", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "accounts.google.com") {
		t.Fatalf("body = %s", w.Body.String())
	}

	// Platforms without a consent flow are a 400.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/social/auth-url/telegram", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestOAuthCallback_Validation(t *testing.T) {
	r, tokens := newTestServer(t, nil, nil, nil)

	// Missing code.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/oauth/callback/youtube?state=x", nil))
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "missing code") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	// Provider-reported error.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/oauth/callback/youtube?error=access_denied", nil))
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "access_denied") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	// Garbage state.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/oauth/callback/youtube?code=c&state=garbage", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}

	// State issued for a different platform than the callback path.
	state, err := tokens.SignState(social.LinkedIn)
	if err != nil {
		t.Fatalf("state err: %v", err)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/oauth/callback/youtube?code=c&state="+state, nil))
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "mismatch") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}
