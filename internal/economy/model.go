package economy

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInsufficientFunds = errors.New("insufficient entries")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrOutOfStock        = errors.New("tier out of stock")
	ErrNotEligible       = errors.New("not eligible")
	ErrGiveawayClosed    = errors.New("giveaway closed")
	ErrGiveawayNotFound  = errors.New("giveaway not found")
	ErrUnknownTier       = errors.New("unknown purchase tier")
	ErrCodeNotFound      = errors.New("referral code not found")
)

// Params are the tunable thresholds of the economy. Defaults mirror the
// production configuration; every value can be overridden from the
// environment.
type Params struct {
	MinMessageLen    int
	StreakLimit      int
	StreakWindow     time.Duration
	RepeatWindow     time.Duration
	BlockDuration    time.Duration
	RewardCooldown   time.Duration
	MinAccountAge    time.Duration
	MinDailyActivity int
	ReferralCodeTTL  time.Duration
	ResetHour        int
	ResetMinute      int
	Location         *time.Location
}

func DefaultParams() Params {
	return Params{
		MinMessageLen:    10,
		StreakLimit:      5,
		StreakWindow:     12 * time.Second,
		RepeatWindow:     120 * time.Second,
		BlockDuration:    120 * time.Second,
		RewardCooldown:   30 * time.Second,
		MinAccountAge:    30 * 24 * time.Hour,
		MinDailyActivity: 50,
		ReferralCodeTTL:  7 * 24 * time.Hour,
		ResetHour:        21,
		ResetMinute:      0,
		Location:         time.UTC,
	}
}

var linkRE = regexp.MustCompile(`(?i)(https?://|discord\.gg|discord\.com/invite|\b[a-z0-9-]+\.[a-z]{2,})`)

var blacklistTerms = []string{
	"slur", "badword", "nastyword", "hateword",
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// NormalizeContent lowercases and collapses whitespace so two messages that
// differ only in casing or spacing produce the same fingerprint.
func NormalizeContent(content string) string {
	lowered := strings.ToLower(strings.TrimSpace(content))
	return whitespaceRE.ReplaceAllString(lowered, " ")
}

func FingerprintContent(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// contentViolation reports why normalized content is disallowed, or "" if it
// is clean. Link matches are reported ahead of blacklist terms.
func contentViolation(normalized string) string {
	if normalized == "" {
		return ""
	}
	if linkRE.MatchString(normalized) {
		return ReasonLink
	}
	for _, term := range blacklistTerms {
		if strings.Contains(normalized, term) {
			return ReasonBlacklist
		}
	}
	return ""
}

// Admission / punishment reasons surfaced to callers and audit logs.
const (
	ReasonLink       = "link_detected"
	ReasonBlacklist  = "blacklist_detected"
	ReasonSpamStreak = "spam_streak"
	ReasonRepeat     = "repeat_message"
	ReasonBlocked    = "entry_blocked"
	ReasonRewardCool = "reward_cooldown"
	ReasonTooShort   = "message_too_short"
)

var durationUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
}

// ParseDuration parses staff-facing shorthand like "45s", "10m", "2h", "1d".
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if len(value) < 2 {
		return 0, fmt.Errorf("duration must include a number and a unit (s, m, h, d)")
	}
	unit, ok := durationUnits[value[len(value)-1]]
	if !ok {
		return 0, fmt.Errorf("duration unit must be one of: s, m, h, d")
	}
	n, err := strconv.Atoi(value[:len(value)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("duration amount must be a positive integer")
	}
	return time.Duration(n) * unit, nil
}

// NextDailyTime returns the next wall-clock occurrence of hour:minute in loc
// strictly after now. The scheduler re-derives this after every firing so the
// cycle stays aligned to the local target despite drift or restarts.
func NextDailyTime(now time.Time, loc *time.Location, hour, minute int) time.Time {
	local := now.In(loc)
	target := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !target.After(local) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}
