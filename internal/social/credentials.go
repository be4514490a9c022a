package social

import (
	"context"
	"database/sql"
	"strings"
	"sync"
)

// CredentialStore holds API keys and OAuth tokens keyed by names like
// TWITTER_API_KEY or GBP_REFRESH_TOKEN. Publishers re-read credentials on
// every call; only the token manager writes.
type CredentialStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// PGCredentialStore persists credentials in the credentials table.
type PGCredentialStore struct {
	DB *sql.DB
}

func (s *PGCredentialStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.DB.QueryRowContext(ctx,
		`SELECT value FROM public.credentials WHERE key=$1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *PGCredentialStore) Set(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO public.credentials (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
		  value = EXCLUDED.value,
		  updated_at = NOW()
	`, key, value)
	return err
}

// MemCredentials is an in-memory CredentialStore used by tests and local
// development.
type MemCredentials struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemCredentials(values map[string]string) *MemCredentials {
	m := &MemCredentials{values: map[string]string{}}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

func (m *MemCredentials) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

func (m *MemCredentials) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// requiredCredentials lists the minimum keys a platform needs before a
// publish attempt can succeed. Skool and Patreon have no API and need none.
var requiredCredentials = map[Platform][]string{
	Twitter:   {"TWITTER_API_KEY", "TWITTER_API_SECRET", "TWITTER_ACCESS_TOKEN", "TWITTER_ACCESS_TOKEN_SECRET"},
	LinkedIn:  {"LINKEDIN_ACCESS_TOKEN", "LINKEDIN_COMPANY_URN"},
	GBP:       {"GBP_ACCESS_TOKEN", "GBP_LOCATION_ID"},
	TikTok:    {"TIKTOK_ACCESS_TOKEN"},
	YouTube:   {"YOUTUBE_ACCESS_TOKEN", "YOUTUBE_CHANNEL_ID"},
	Telegram:  {"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID"},
	Facebook:  {"FB_PAGE_ACCESS_TOKEN", "FB_PAGE_ID"},
	Instagram: {"FB_PAGE_ACCESS_TOKEN", "FB_PAGE_ID"},
	Threads:   {"THREADS_ACCESS_TOKEN", "THREADS_USER_ID"},
	Skool:     {},
	Patreon:   {},
}

// CredentialStatus reports, per platform, whether the minimum credentials
// are present. It never calls any provider and never fails a platform on a
// store read error (the platform is just reported unconfigured).
func CredentialStatus(ctx context.Context, store CredentialStore) map[Platform]bool {
	out := make(map[Platform]bool, len(requiredCredentials))
	for _, p := range AllPlatforms() {
		keys := requiredCredentials[p]
		if len(keys) == 0 {
			out[p] = false
			continue
		}
		ok := true
		for _, k := range keys {
			v, err := store.Get(ctx, k)
			if err != nil || strings.TrimSpace(v) == "" {
				ok = false
				break
			}
		}
		out[p] = ok
	}
	return out
}
