package social

import (
	"fmt"
	"strings"
)

// Platform identifies a social network we can publish to.
type Platform string

const (
	Twitter   Platform = "twitter"
	LinkedIn  Platform = "linkedin"
	GBP       Platform = "gbp"
	TikTok    Platform = "tiktok"
	YouTube   Platform = "youtube"
	Telegram  Platform = "telegram"
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
	Threads   Platform = "threads"
	Skool     Platform = "skool"
	Patreon   Platform = "patreon"
)

type platformInfo struct {
	label string
	chars int
}

var platforms = map[Platform]platformInfo{
	Twitter:   {label: "X (Twitter)", chars: 280},
	LinkedIn:  {label: "LinkedIn", chars: 3000},
	GBP:       {label: "Google Business Profile", chars: 1500},
	TikTok:    {label: "TikTok", chars: 2200},
	YouTube:   {label: "YouTube Community", chars: 5000},
	Telegram:  {label: "Telegram", chars: 4096},
	Facebook:  {label: "Facebook", chars: 63206},
	Instagram: {label: "Instagram", chars: 2200},
	Threads:   {label: "Threads", chars: 500},
	Skool:     {label: "Skool", chars: 10000},
	Patreon:   {label: "Patreon", chars: 10000},
}

// AllPlatforms returns every known platform in a stable order.
func AllPlatforms() []Platform {
	return []Platform{
		Twitter, LinkedIn, GBP, TikTok, YouTube,
		Telegram, Facebook, Instagram, Threads, Skool, Patreon,
	}
}

// ParsePlatform normalizes and validates a platform key.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := platforms[p]; !ok {
		return "", Errorf(KindValidation, "unknown platform %q, valid: %s", s, joinPlatforms())
	}
	return p, nil
}

// Label returns the human-readable platform name.
func (p Platform) Label() string { return platforms[p].label }

// Limit returns the maximum post length in characters.
func (p Platform) Limit() int { return platforms[p].chars }

func (p Platform) String() string { return string(p) }

func joinPlatforms() string {
	all := AllPlatforms()
	keys := make([]string, 0, len(all))
	for _, p := range all {
		keys = append(keys, string(p))
	}
	return strings.Join(keys, ", ")
}

// CredentialKey builds a store key like TWITTER_ACCESS_TOKEN.
func CredentialKey(p Platform, suffix string) string {
	return fmt.Sprintf("%s_%s", strings.ToUpper(string(p)), suffix)
}
