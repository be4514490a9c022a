package social

import (
	"strings"
	"testing"
)

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform("  TikTok ")
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if p != TikTok {
		t.Fatalf("expected tiktok, got %s", p)
	}

	if _, err := ParsePlatform("myspace"); err == nil {
		t.Fatal("expected error for unknown platform")
	} else {
		if KindOf(err) != KindValidation {
			t.Fatalf("expected validation kind, got %s", KindOf(err))
		}
		if !strings.Contains(err.Error(), "myspace") {
			t.Fatalf("error should name the bad key: %v", err)
		}
	}
}

func TestPlatformLimits(t *testing.T) {
	cases := map[Platform]int{
		Twitter:   280,
		LinkedIn:  3000,
		GBP:       1500,
		TikTok:    2200,
		YouTube:   5000,
		Telegram:  4096,
		Facebook:  63206,
		Instagram: 2200,
		Threads:   500,
		Skool:     10000,
		Patreon:   10000,
	}
	for p, want := range cases {
		if got := p.Limit(); got != want {
			t.Errorf("%s limit = %d, want %d", p, got, want)
		}
	}
	if len(AllPlatforms()) != len(cases) {
		t.Fatalf("AllPlatforms returned %d entries, want %d", len(AllPlatforms()), len(cases))
	}
}

func TestCredentialKey(t *testing.T) {
	if got := CredentialKey(Twitter, "ACCESS_TOKEN"); got != "TWITTER_ACCESS_TOKEN" {
		t.Fatalf("got %q", got)
	}
	if got := CredentialKey(GBP, "REFRESH_TOKEN"); got != "GBP_REFRESH_TOKEN" {
		t.Fatalf("got %q", got)
	}
}
