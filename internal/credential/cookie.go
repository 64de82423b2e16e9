// Package credential holds the value types shared by the cookie and key
// actors: the parsed session cookie, its usage/reset bookkeeping, OAuth
// token state, and the reasons a credential can be retired.
package credential

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
)

// cookiePattern matches the 86-char session identifier Anthropic issues,
// optionally prefixed with the sessionKey cookie name.
var cookiePattern = regexp.MustCompile(`(?:sk-ant-sid01-)?([0-9A-Za-z_-]{86}-[0-9A-Za-z_-]{6}AA)`)

// PlaceholderCookie is the zero-value sentinel used before a real cookie is assigned.
const PlaceholderCookie = "PLACEHOLDER_COOKIE"

// Cookie is a parsed Claude Web session identifier. The zero value is not
// valid; construct with ParseCookie.
type Cookie struct {
	inner string
}

// ParseCookie extracts the session identifier from a raw cookie string,
// tolerating copy-pasted `sessionKey=...` prefixes and stray whitespace.
func ParseCookie(raw string) (Cookie, error) {
	var cleaned strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || r == '-' {
			cleaned.WriteRune(r)
		}
	}

	m := cookiePattern.FindStringSubmatch(cleaned.String())
	if m == nil {
		return Cookie{}, errors.Errorf("invalid cookie format")
	}
	return Cookie{inner: m[1]}, nil
}

// String renders the cookie in the form upstream expects as a Cookie header value.
func (c Cookie) String() string {
	return "sessionKey=sk-ant-sid01-" + c.inner
}

// Raw returns the bare session identifier, suitable as a map/set key.
func (c Cookie) Raw() string {
	return c.inner
}

// Ellipsis renders a redacted form safe for logging.
func (c Cookie) Ellipsis() string {
	if len(c.inner) > 10 {
		return c.inner[:10] + "..."
	}
	return c.inner
}

func (c Cookie) IsZero() bool {
	return c.inner == ""
}

// MarshalJSON renders the bare session identifier, so pool snapshots and
// the persisted credential file round-trip through ParseCookie.
func (c Cookie) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.inner)
}

// UnmarshalJSON re-parses a persisted cookie value, accepting the same
// prefixed forms ParseCookie does.
func (c *Cookie) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode cookie")
	}
	parsed, err := ParseCookie(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ModelFamily buckets token usage by model tier for reporting.
type ModelFamily int

const (
	FamilyOther ModelFamily = iota
	FamilySonnet
	FamilyOpus
)

// FamilyForModel buckets a model id by its name.
func FamilyForModel(model string) ModelFamily {
	switch {
	case strings.Contains(model, "sonnet"):
		return FamilySonnet
	case strings.Contains(model, "opus"):
		return FamilyOpus
	default:
		return FamilyOther
	}
}

// UsageBreakdown accumulates token counts for one reporting window.
type UsageBreakdown struct {
	TotalInputTokens   uint64 `json:"total_input_tokens"`
	TotalOutputTokens  uint64 `json:"total_output_tokens"`
	SonnetInputTokens  uint64 `json:"sonnet_input_tokens"`
	SonnetOutputTokens uint64 `json:"sonnet_output_tokens"`
	OpusInputTokens    uint64 `json:"opus_input_tokens"`
	OpusOutputTokens   uint64 `json:"opus_output_tokens"`
}

func (u *UsageBreakdown) add(input, output uint64, family ModelFamily) {
	u.TotalInputTokens += input
	u.TotalOutputTokens += output
	switch family {
	case FamilySonnet:
		u.SonnetInputTokens += input
		u.SonnetOutputTokens += output
	case FamilyOpus:
		u.OpusInputTokens += input
		u.OpusOutputTokens += output
	}
}

// CookieStatus is the pool-owned record for one Claude Web credential:
// the parsed cookie, its optional OAuth token (Claude Code), reset-time
// bookkeeping, and usage counters across four reporting windows.
type CookieStatus struct {
	Cookie             Cookie     `json:"cookie"`
	Token              *TokenInfo `json:"token,omitempty"`
	ResetTime          *int64     `json:"reset_time,omitempty"`
	SupportsClaude1M   *bool      `json:"supports_claude_1m,omitempty"`
	CountTokensAllowed *bool      `json:"count_tokens_allowed,omitempty"`

	SessionUsage    UsageBreakdown `json:"session_usage"`
	WeeklyUsage     UsageBreakdown `json:"weekly_usage"`
	WeeklyOpusUsage UsageBreakdown `json:"weekly_opus_usage"`
	LifetimeUsage   UsageBreakdown `json:"lifetime_usage"`

	SessionResetsAt     *int64 `json:"session_resets_at,omitempty"`
	WeeklyResetsAt      *int64 `json:"weekly_resets_at,omitempty"`
	WeeklyOpusResetsAt  *int64 `json:"weekly_opus_resets_at,omitempty"`
	ResetsLastCheckedAt *int64 `json:"resets_last_checked_at,omitempty"`
}

// NewCookieStatus constructs a fresh pool entry for a raw cookie string.
func NewCookieStatus(raw string, resetTime *int64) (*CookieStatus, error) {
	c, err := ParseCookie(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse cookie")
	}
	return &CookieStatus{Cookie: c, ResetTime: resetTime}, nil
}

// SameIdentity reports whether two statuses refer to the same cookie.
func (s *CookieStatus) SameIdentity(other *CookieStatus) bool {
	return s.Cookie.Raw() == other.Cookie.Raw()
}

// ExpireResetIfDue clears ResetTime (and the session/weekly usage windows
// it gates) once it has passed, mirroring the reset sweep's per-entry check.
func (s *CookieStatus) ExpireResetIfDue(now time.Time) bool {
	if s.ResetTime == nil {
		return false
	}
	if *s.ResetTime > now.Unix() {
		return false
	}
	s.ResetTime = nil
	s.SessionUsage = UsageBreakdown{}
	s.WeeklyUsage = UsageBreakdown{}
	s.WeeklyOpusUsage = UsageBreakdown{}
	return true
}

// AddToken attaches a freshly obtained OAuth token.
func (s *CookieStatus) AddToken(t *TokenInfo) { s.Token = t }

// SetSupportsClaude1M records whether this cookie's organization has been
// probed to support the context-1m-2025-08-07 beta, so later Sonnet 4
// requests can skip straight to the known-good attempt instead of probing
// again.
func (s *CookieStatus) SetSupportsClaude1M(v bool) { s.SupportsClaude1M = &v }

// AddAndBucketUsage folds a completed request's token counts into all four
// reporting windows, bucketed by model family.
func (s *CookieStatus) AddAndBucketUsage(input, output uint64, family ModelFamily) {
	if input == 0 && output == 0 {
		return
	}
	s.SessionUsage.add(input, output, family)
	s.WeeklyUsage.add(input, output, family)
	if family == FamilyOpus {
		s.WeeklyOpusUsage.add(input, output, family)
	}
	s.LifetimeUsage.add(input, output, family)
}

// Clone returns a deep-enough copy safe to hand to callers outside the actor.
func (s *CookieStatus) Clone() *CookieStatus {
	cp := *s
	if s.Token != nil {
		t := *s.Token
		cp.Token = &t
	}
	if s.ResetTime != nil {
		v := *s.ResetTime
		cp.ResetTime = &v
	}
	return &cp
}

func (s *CookieStatus) String() string {
	return fmt.Sprintf("CookieStatus{%s}", s.Cookie.Ellipsis())
}
