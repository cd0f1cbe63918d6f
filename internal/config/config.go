package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"zyra/internal/db"
	"zyra/internal/economy"
)

type GatewayConfig struct {
	BotToken        string
	GuildID         string
	StaffLogChannel string
	DatabaseURL     string
	ResetHour       int
	ResetMinute     int
	Timezone        *time.Location
	GiveawayPoll    time.Duration
	TierRoles       map[string]string
	Pool            db.PoolConfig
	Params          economy.Params
}

type APIConfig struct {
	Addr        string
	DatabaseURL string
	StaffToken  string
	Pool        db.PoolConfig
	Params      economy.Params
}

type CLIConfig struct {
	APIBaseURL string
	StaffToken string
}

func LoadGatewayFromEnv() (GatewayConfig, error) {
	cfg := GatewayConfig{
		BotToken:        strings.TrimSpace(os.Getenv("ZYRA_BOT_TOKEN")),
		GuildID:         strings.TrimSpace(os.Getenv("ZYRA_GUILD_ID")),
		StaffLogChannel: strings.TrimSpace(os.Getenv("ZYRA_STAFF_LOG_CHANNEL")),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ResetHour:       envIntDefault("ZYRA_RESET_HOUR", 21),
		ResetMinute:     envIntDefault("ZYRA_RESET_MINUTE", 0),
		GiveawayPoll:    envDurationDefault("ZYRA_GIVEAWAY_POLL_EVERY", 15*time.Second),
		TierRoles:       envTierRoles(),
		Pool:            poolFromEnv(),
	}
	if cfg.BotToken == "" {
		return cfg, fmt.Errorf("ZYRA_BOT_TOKEN is required")
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	loc, err := time.LoadLocation(envDefault("ZYRA_TIMEZONE", "Europe/Berlin"))
	if err != nil {
		return cfg, fmt.Errorf("ZYRA_TIMEZONE: %w", err)
	}
	cfg.Timezone = loc
	cfg.Params = paramsFromEnv(cfg.ResetHour, cfg.ResetMinute, loc)
	return cfg, nil
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("ZYRA_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:        addr,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		StaffToken:  strings.TrimSpace(os.Getenv("ZYRA_STAFF_TOKEN")),
		Pool:        poolFromEnv(),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.StaffToken == "" {
		return cfg, fmt.Errorf("ZYRA_STAFF_TOKEN is required")
	}
	loc, err := time.LoadLocation(envDefault("ZYRA_TIMEZONE", "Europe/Berlin"))
	if err != nil {
		return cfg, fmt.Errorf("ZYRA_TIMEZONE: %w", err)
	}
	cfg.Params = paramsFromEnv(envIntDefault("ZYRA_RESET_HOUR", 21), envIntDefault("ZYRA_RESET_MINUTE", 0), loc)
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("ZYRA_API_BASE_URL", "http://localhost:8080"), "/"),
		StaffToken: strings.TrimSpace(os.Getenv("ZYRA_STAFF_TOKEN")),
	}
}

func paramsFromEnv(resetHour, resetMinute int, loc *time.Location) economy.Params {
	p := economy.DefaultParams()
	p.MinMessageLen = envIntDefault("ZYRA_MIN_MESSAGE_LEN", p.MinMessageLen)
	p.StreakLimit = envIntDefault("ZYRA_STREAK_LIMIT", p.StreakLimit)
	p.StreakWindow = envDurationDefault("ZYRA_STREAK_WINDOW", p.StreakWindow)
	p.RepeatWindow = envDurationDefault("ZYRA_REPEAT_WINDOW", p.RepeatWindow)
	p.BlockDuration = envDurationDefault("ZYRA_BLOCK_DURATION", p.BlockDuration)
	p.RewardCooldown = envDurationDefault("ZYRA_REWARD_COOLDOWN", p.RewardCooldown)
	p.MinAccountAge = envDurationDefault("ZYRA_MIN_ACCOUNT_AGE", p.MinAccountAge)
	p.MinDailyActivity = envIntDefault("ZYRA_MIN_DAILY_ACTIVITY", p.MinDailyActivity)
	p.ReferralCodeTTL = envDurationDefault("ZYRA_REFERRAL_CODE_TTL", p.ReferralCodeTTL)
	p.ResetHour = resetHour
	p.ResetMinute = resetMinute
	p.Location = loc
	return p
}

func poolFromEnv() db.PoolConfig {
	return db.PoolConfig{
		MaxConns:        int32(envIntDefault("ZYRA_DB_MAX_CONNS", 16)),
		MinConns:        int32(envIntDefault("ZYRA_DB_MIN_CONNS", 2)),
		MaxConnLifetime: envDurationDefault("ZYRA_DB_CONN_LIFETIME", 30*time.Minute),
		MaxConnIdleTime: envDurationDefault("ZYRA_DB_CONN_IDLE", 10*time.Minute),
	}
}

// envTierRoles parses "bronze=123,silver=456" into tier-name to role-id.
func envTierRoles() map[string]string {
	roles := map[string]string{}
	raw := strings.TrimSpace(os.Getenv("ZYRA_TIER_ROLES"))
	if raw == "" {
		return roles
	}
	for _, pair := range strings.Split(raw, ",") {
		name, id, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		roles[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(id)
	}
	return roles
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
