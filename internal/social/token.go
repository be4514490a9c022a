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
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager owns the OAuth token lifecycle: authorization URLs, code
// exchange, and access-token refresh. Refreshes for the same platform are
// serialized so two concurrent 401s don't double-refresh and clobber a
// rotated refresh token.
type TokenManager struct {
	Creds       CredentialStore
	Client      *http.Client
	StateSecret []byte
	RedirectURI string

	mu    sync.Mutex
	locks map[Platform]*sync.Mutex

	stateMu    sync.Mutex
	usedStates map[string]time.Time
}

const stateTTL = time.Hour

func (m *TokenManager) client() *http.Client {
	if m.Client != nil {
		return m.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (m *TokenManager) lockFor(p Platform) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks == nil {
		m.locks = make(map[Platform]*sync.Mutex)
	}
	// GBP and YouTube share the Google refresh endpoint but hold separate
	// tokens, so each platform gets its own lock.
	l, ok := m.locks[p]
	if !ok {
		l = &sync.Mutex{}
		m.locks[p] = l
	}
	return l
}

// Refresh exchanges the stored refresh token for a fresh access token and
// persists it (plus the rotated refresh token when the provider issues one).
// Returns the new access token.
func (m *TokenManager) Refresh(ctx context.Context, p Platform) (string, error) {
	lock := m.lockFor(p)
	lock.Lock()
	defer lock.Unlock()

	switch p {
	case GBP, YouTube:
		return m.refreshGoogle(ctx, p)
	case TikTok:
		return m.refreshTikTok(ctx)
	case LinkedIn:
		return m.refreshLinkedIn(ctx)
	case Facebook, Instagram:
		return m.exchangeFacebookToken(ctx)
	case Threads:
		return m.exchangeThreadsToken(ctx)
	default:
		return "", Errorf(KindUnsupported, "token refresh not implemented for %s", p)
	}
}

func (m *TokenManager) refreshGoogle(ctx context.Context, p Platform) (string, error) {
	refreshToken, err := m.Creds.Get(ctx, CredentialKey(p, "REFRESH_TOKEN"))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(refreshToken) == "" {
		return "", Errorf(KindCredentialsMissing, "%s has no stored refresh token, re-authenticate required", p)
	}
	clientID, _ := m.Creds.Get(ctx, "GOOGLE_OAUTH_CLIENT_ID")
	clientSecret, _ := m.Creds.Get(ctx, "GOOGLE_OAUTH_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return "", Errorf(KindCredentialsMissing, "GOOGLE_OAUTH_CLIENT_ID or GOOGLE_OAUTH_CLIENT_SECRET missing")
	}

	body, err := m.postForm(ctx, "https://oauth2.googleapis.com/token", url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	})
	if err != nil {
		return "", err
	}
	return m.persistTokens(ctx, p, body)
}

func (m *TokenManager) refreshTikTok(ctx context.Context) (string, error) {
	refreshToken, _ := m.Creds.Get(ctx, "TIKTOK_REFRESH_TOKEN")
	clientKey, _ := m.Creds.Get(ctx, "TIKTOK_CLIENT_KEY")
	clientSecret, _ := m.Creds.Get(ctx, "TIKTOK_CLIENT_SECRET")
	if refreshToken == "" {
		return "", Errorf(KindCredentialsMissing, "tiktok has no stored refresh token, re-authenticate required")
	}
	if clientKey == "" || clientSecret == "" {
		return "", Errorf(KindCredentialsMissing, "TIKTOK_CLIENT_KEY or TIKTOK_CLIENT_SECRET missing")
	}
	body, err := m.postForm(ctx, "https://open.tiktokapis.com/v2/oauth/token/", url.Values{
		"client_key":    {clientKey},
		"client_secret": {clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		return "", err
	}
	return m.persistTokens(ctx, TikTok, body)
}

func (m *TokenManager) refreshLinkedIn(ctx context.Context) (string, error) {
	refreshToken, _ := m.Creds.Get(ctx, "LINKEDIN_REFRESH_TOKEN")
	clientID, _ := m.Creds.Get(ctx, "LINKEDIN_CLIENT_ID")
	clientSecret, _ := m.Creds.Get(ctx, "LINKEDIN_CLIENT_SECRET")
	if refreshToken == "" {
		return "", Errorf(KindCredentialsMissing, "linkedin has no stored refresh token, re-authenticate required")
	}
	if clientID == "" || clientSecret == "" {
		return "", Errorf(KindCredentialsMissing, "LINKEDIN_CLIENT_ID or LINKEDIN_CLIENT_SECRET missing")
	}
	body, err := m.postForm(ctx, "https://www.linkedin.com/oauth/v2/accessToken", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	})
	if err != nil {
		return "", err
	}
	return m.persistTokens(ctx, LinkedIn, body)
}

// exchangeFacebookToken swaps the current long-lived page token for a new
// 60-day one. Instagram rides on the same page token.
func (m *TokenManager) exchangeFacebookToken(ctx context.Context) (string, error) {
	pageToken, _ := m.Creds.Get(ctx, "FB_PAGE_ACCESS_TOKEN")
	appID, _ := m.Creds.Get(ctx, "FB_APP_ID")
	appSecret, _ := m.Creds.Get(ctx, "FB_APP_SECRET")
	if pageToken == "" || appID == "" || appSecret == "" {
		return "", Errorf(KindCredentialsMissing, "FB_PAGE_ACCESS_TOKEN or app credentials missing")
	}
	endpoint := "https://graph.facebook.com/v21.0/oauth/access_token" +
		"?grant_type=fb_exchange_token" +
		"&client_id=" + url.QueryEscape(appID) +
		"&client_secret=" + url.QueryEscape(appSecret) +
		"&fb_exchange_token=" + url.QueryEscape(pageToken)
	body, err := m.getJSON(ctx, endpoint)
	if err != nil {
		return "", err
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		return "", Errorf(KindProvider, "facebook token exchange returned no access_token")
	}
	if err := m.Creds.Set(ctx, "FB_PAGE_ACCESS_TOKEN", token); err != nil {
		return "", err
	}
	return token, nil
}

func (m *TokenManager) exchangeThreadsToken(ctx context.Context) (string, error) {
	token, _ := m.Creds.Get(ctx, "THREADS_ACCESS_TOKEN")
	if token == "" {
		return "", Errorf(KindCredentialsMissing, "THREADS_ACCESS_TOKEN missing")
	}
	endpoint := "https://graph.threads.net/refresh_access_token" +
		"?grant_type=th_exchange_token" +
		"&access_token=" + url.QueryEscape(token)
	body, err := m.getJSON(ctx, endpoint)
	if err != nil {
		return "", err
	}
	fresh, _ := body["access_token"].(string)
	if fresh == "" {
		return "", Errorf(KindProvider, "threads token refresh returned no access_token")
	}
	if err := m.Creds.Set(ctx, "THREADS_ACCESS_TOKEN", fresh); err != nil {
		return "", err
	}
	return fresh, nil
}

// ExchangeCode swaps an authorization code for tokens and persists them.
func (m *TokenManager) ExchangeCode(ctx context.Context, p Platform, code string) error {
	var tokenURL string
	form := url.Values{}

	switch p {
	case GBP, YouTube:
		clientID, _ := m.Creds.Get(ctx, "GOOGLE_OAUTH_CLIENT_ID")
		clientSecret, _ := m.Creds.Get(ctx, "GOOGLE_OAUTH_CLIENT_SECRET")
		if clientID == "" || clientSecret == "" {
			return Errorf(KindCredentialsMissing, "GOOGLE_OAUTH_CLIENT_ID or GOOGLE_OAUTH_CLIENT_SECRET missing")
		}
		tokenURL = "https://oauth2.googleapis.com/token"
		form.Set("code", code)
		form.Set("client_id", clientID)
		form.Set("client_secret", clientSecret)
		form.Set("redirect_uri", m.RedirectURI)
		form.Set("grant_type", "authorization_code")
	case LinkedIn:
		clientID, _ := m.Creds.Get(ctx, "LINKEDIN_CLIENT_ID")
		clientSecret, _ := m.Creds.Get(ctx, "LINKEDIN_CLIENT_SECRET")
		if clientID == "" || clientSecret == "" {
			return Errorf(KindCredentialsMissing, "LINKEDIN_CLIENT_ID or LINKEDIN_CLIENT_SECRET missing")
		}
		tokenURL = "https://www.linkedin.com/oauth/v2/accessToken"
		form.Set("grant_type", "authorization_code")
		form.Set("code", code)
		form.Set("redirect_uri", m.RedirectURI)
		form.Set("client_id", clientID)
		form.Set("client_secret", clientSecret)
	case TikTok:
		clientKey, _ := m.Creds.Get(ctx, "TIKTOK_CLIENT_KEY")
		clientSecret, _ := m.Creds.Get(ctx, "TIKTOK_CLIENT_SECRET")
		if clientKey == "" || clientSecret == "" {
			return Errorf(KindCredentialsMissing, "TIKTOK_CLIENT_KEY or TIKTOK_CLIENT_SECRET missing")
		}
		tokenURL = "https://open.tiktokapis.com/v2/oauth/token/"
		form.Set("client_key", clientKey)
		form.Set("client_secret", clientSecret)
		form.Set("code", code)
		form.Set("grant_type", "authorization_code")
		form.Set("redirect_uri", m.RedirectURI)
	default:
		return Errorf(KindUnsupported, "oauth code exchange not implemented for %s", p)
	}

	body, err := m.postForm(ctx, tokenURL, form)
	if err != nil {
		return err
	}
	if _, err := m.persistTokens(ctx, p, body); err != nil {
		return err
	}
	log.Printf("[Tokens] ok platform=%s action=exchange_code", p)
	return nil
}

// persistTokens stores the access token (required) and the rotated refresh
// token when the provider issued one. Refresh token rotation is
// provider-discretionary, never assumed.
func (m *TokenManager) persistTokens(ctx context.Context, p Platform, body map[string]interface{}) (string, error) {
	access, _ := body["access_token"].(string)
	if access == "" {
		raw, _ := json.Marshal(body)
		return "", Errorf(KindProvider, "no access_token in token response: %s", truncate(string(raw), 200))
	}
	if err := m.Creds.Set(ctx, CredentialKey(p, "ACCESS_TOKEN"), access); err != nil {
		return "", err
	}
	if refresh, _ := body["refresh_token"].(string); refresh != "" {
		if err := m.Creds.Set(ctx, CredentialKey(p, "REFRESH_TOKEN"), refresh); err != nil {
			return "", err
		}
	}
	return access, nil
}

var platformScopes = map[Platform]struct {
	authURL  string
	clientID string
	extra    url.Values
}{
	GBP: {
		authURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		clientID: "GOOGLE_OAUTH_CLIENT_ID",
		extra: url.Values{
			"scope":       {"https://www.googleapis.com/auth/business.manage"},
			"access_type": {"offline"},
			"prompt":      {"consent"},
		},
	},
	YouTube: {
		authURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		clientID: "GOOGLE_OAUTH_CLIENT_ID",
		extra: url.Values{
			"scope":       {"https://www.googleapis.com/auth/youtube"},
			"access_type": {"offline"},
			"prompt":      {"consent"},
		},
	},
	LinkedIn: {
		authURL:  "https://www.linkedin.com/oauth/v2/authorization",
		clientID: "LINKEDIN_CLIENT_ID",
		extra: url.Values{
			"scope": {"w_member_social r_organization_social w_organization_social"},
		},
	},
	TikTok: {
		authURL:  "https://www.tiktok.com/v2/auth/authorize/",
		clientID: "TIKTOK_CLIENT_KEY",
		extra: url.Values{
			"scope": {"user.info.basic,video.publish,video.upload"},
		},
	},
}

// AuthURL builds the provider consent URL with a signed, one-hour state
// token binding the flow to a platform.
func (m *TokenManager) AuthURL(ctx context.Context, p Platform) (string, error) {
	cfg, ok := platformScopes[p]
	if !ok {
		return "", Errorf(KindUnsupported, "oauth authorization not implemented for %s", p)
	}
	clientID, err := m.Creds.Get(ctx, cfg.clientID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(clientID) == "" {
		return "", Errorf(KindCredentialsMissing, "%s not set", cfg.clientID)
	}

	state, err := m.SignState(p)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("redirect_uri", m.RedirectURI)
	q.Set("state", state)
	if p == TikTok {
		q.Set("client_key", clientID)
	} else {
		q.Set("client_id", clientID)
	}
	for k, vs := range cfg.extra {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	return cfg.authURL + "?" + q.Encode(), nil
}

type stateClaims struct {
	Platform string `json:"platform"`
	jwt.RegisteredClaims
}

// SignState issues a one-hour state token bound to a platform.
func (m *TokenManager) SignState(p Platform) (string, error) {
	now := time.Now()
	claims := stateClaims{
		Platform: string(p),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.StateSecret)
}

// ConsumeState validates a callback state token and returns the platform it
// was issued for. Each state is accepted exactly once.
func (m *TokenManager) ConsumeState(state string) (Platform, error) {
	var claims stateClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.StateSecret, nil
	})
	if err != nil {
		return "", Errorf(KindValidation, "invalid oauth state: %v", err)
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.usedStates == nil {
		m.usedStates = make(map[string]time.Time)
	}
	for id, exp := range m.usedStates {
		if time.Now().After(exp) {
			delete(m.usedStates, id)
		}
	}
	if _, used := m.usedStates[claims.ID]; used {
		return "", Errorf(KindValidation, "oauth state already consumed")
	}
	m.usedStates[claims.ID] = claims.ExpiresAt.Time

	return ParsePlatform(claims.Platform)
}

func (m *TokenManager) postForm(ctx context.Context, endpoint string, form url.Values) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return m.do(req)
}

func (m *TokenManager) getJSON(ctx context.Context, endpoint string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return m.do(req)
}

func (m *TokenManager) do(req *http.Request) (map[string]interface{}, error) {
	res, err := m.client().Do(req)
	if err != nil {
		return nil, err
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	_ = res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, Errorf(KindProvider, "token endpoint %s status=%d body=%s", req.URL.Host, res.StatusCode, truncate(string(b), 400))
	}
	var body map[string]interface{}
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, Errorf(KindProvider, "token endpoint %s returned invalid json: %s", req.URL.Host, truncate(string(b), 400))
	}
	return body, nil
}
