package workers

import (
	"context"
	"log"
	"time"

	"github.com/shamrockbb/social-backoffice/internal/social"
)

// TokenRefreshWorker keeps OAuth2 access tokens warm. Short-lived Google
// tokens (~1h) are refreshed on a tight cycle; long-lived tokens (Facebook,
// Instagram, Threads, TikTok, LinkedIn) are re-exchanged on a slow cycle so
// they never age out.
type TokenRefreshWorker struct {
	Tokens            *social.TokenManager
	Creds             social.CredentialStore
	ShortCycleMinutes int // Google-family refresh cadence (default: 30)
	LongCycleHours    int // long-lived token cadence (default: 24)
	InterCallDelayMs  int // pause between provider calls (default: 1000)
}

var shortCyclePlatforms = []social.Platform{social.GBP, social.YouTube}

var longCyclePlatforms = []social.Platform{
	social.TikTok,
	social.LinkedIn,
	social.Facebook,
	social.Instagram,
	social.Threads,
}

// Start begins the refresh loop. It blocks until ctx is cancelled.
func (w *TokenRefreshWorker) Start(ctx context.Context) {
	if w.ShortCycleMinutes <= 0 {
		w.ShortCycleMinutes = 30
	}
	if w.LongCycleHours <= 0 {
		w.LongCycleHours = 24
	}
	if w.InterCallDelayMs <= 0 {
		w.InterCallDelayMs = 1000
	}

	shortTicker := time.NewTicker(time.Duration(w.ShortCycleMinutes) * time.Minute)
	defer shortTicker.Stop()
	longTicker := time.NewTicker(time.Duration(w.LongCycleHours) * time.Hour)
	defer longTicker.Stop()

	log.Printf("[TokenRefreshWorker] started (short=%dm, long=%dh)", w.ShortCycleMinutes, w.LongCycleHours)

	// Prime the short-lived tokens on startup so publishes right after boot
	// don't hit an expired Google token.
	w.refreshAll(ctx, shortCyclePlatforms)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[TokenRefreshWorker] stopped")
			return
		case <-shortTicker.C:
			w.refreshAll(ctx, shortCyclePlatforms)
		case <-longTicker.C:
			w.refreshAll(ctx, longCyclePlatforms)
		}
	}
}

func (w *TokenRefreshWorker) refreshAll(ctx context.Context, platforms []social.Platform) {
	var refreshed, skipped, errors int
	for _, p := range platforms {
		if !w.hasRefreshMaterial(ctx, p) {
			skipped++
			continue
		}
		if _, err := w.Tokens.Refresh(ctx, p); err != nil {
			errors++
			log.Printf("[TokenRefreshWorker] refresh failed platform=%s kind=%s err=%v", p, social.KindOf(err), err)
		} else {
			refreshed++
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(w.InterCallDelayMs) * time.Millisecond):
		}
	}
	log.Printf("[TokenRefreshWorker] cycle done refreshed=%d skipped=%d errors=%d", refreshed, skipped, errors)
}

// refreshMaterialKeys lists the credentials a platform's refresh grant
// actually consumes. Facebook and Instagram re-exchange the shared page
// token; Threads re-exchanges its own access token.
func refreshMaterialKeys(p social.Platform) []string {
	switch p {
	case social.Facebook, social.Instagram:
		return []string{"FB_PAGE_ACCESS_TOKEN"}
	case social.Threads:
		return []string{"THREADS_ACCESS_TOKEN"}
	default:
		return []string{
			social.CredentialKey(p, "REFRESH_TOKEN"),
			social.CredentialKey(p, "ACCESS_TOKEN"),
		}
	}
}

// hasRefreshMaterial reports whether the platform has anything to refresh
// with; platforms the operator never connected are skipped silently.
func (w *TokenRefreshWorker) hasRefreshMaterial(ctx context.Context, p social.Platform) bool {
	for _, key := range refreshMaterialKeys(p) {
		v, err := w.Creds.Get(ctx, key)
		if err == nil && v != "" {
			return true
		}
	}
	return false
}
