package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the schema if it does not exist. Statements are
// idempotent so every binary can run this at startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			account_id BIGINT PRIMARY KEY,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			daily_activity_count INT NOT NULL DEFAULT 0,
			last_activity_reset BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_events (
			event_id UUID PRIMARY KEY,
			account_id BIGINT NOT NULL,
			delta BIGINT NOT NULL,
			new_balance BIGINT NOT NULL,
			reason TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_events_account ON ledger_events (account_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS abuse_state (
			account_id BIGINT PRIMARY KEY,
			last_fingerprint TEXT NOT NULL DEFAULT '',
			last_message_at BIGINT NOT NULL DEFAULT 0,
			repeat_count INT NOT NULL DEFAULT 0,
			blocked_until BIGINT NOT NULL DEFAULT 0,
			reward_cooldown_until BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS channel_streaks (
			channel_id BIGINT PRIMARY KEY,
			last_account_id BIGINT NOT NULL DEFAULT 0,
			streak_count INT NOT NULL DEFAULT 0,
			last_message_at BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id BIGSERIAL PRIMARY KEY,
			account_id BIGINT NOT NULL,
			action TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS referral_codes (
			code TEXT PRIMARY KEY,
			owner_id BIGINT NOT NULL,
			external_ref TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			total_uses INT NOT NULL DEFAULT 0,
			valid_uses INT NOT NULL DEFAULT 0,
			invalid_uses INT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_referral_codes_external ON referral_codes (external_ref, created_at)`,
		`CREATE TABLE IF NOT EXISTS referral_joins (
			joined_account_id BIGINT PRIMARY KEY,
			code TEXT,
			referrer_id BIGINT NOT NULL DEFAULT 0,
			joined_at BIGINT NOT NULL,
			valid BOOLEAN NOT NULL,
			invalid_reason TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_referral_joins_referrer ON referral_joins (referrer_id, joined_at) WHERE valid`,
		`CREATE TABLE IF NOT EXISTS stock_state (
			key TEXT PRIMARY KEY,
			cycle_start BIGINT NOT NULL,
			cycle_end BIGINT NOT NULL,
			stock_tier3 INT NOT NULL,
			stock_tier5 INT NOT NULL,
			stock_tier10 INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS giveaways (
			id BIGSERIAL PRIMARY KEY,
			channel_id BIGINT NOT NULL,
			prize TEXT NOT NULL,
			winner_count INT NOT NULL,
			closes_at BIGINT NOT NULL,
			resolved BOOLEAN NOT NULL DEFAULT false,
			created_by BIGINT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS giveaway_entries (
			giveaway_id BIGINT NOT NULL REFERENCES giveaways (id) ON DELETE CASCADE,
			account_id BIGINT NOT NULL,
			stake BIGINT NOT NULL,
			entered_at BIGINT NOT NULL,
			PRIMARY KEY (giveaway_id, account_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
