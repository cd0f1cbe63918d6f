package economy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Join classification reasons.
const (
	InvalidUnknownCode   = "unknown_code"
	InvalidCodeExpired   = "code_expired"
	InvalidAccountTooNew = "account_too_new"
)

// CreateReferralCode issues a fresh code for ownerID tied to a platform
// invite (externalRef). Any previously active code of the same owner is
// expired in place, preserving its audit history: one active code per owner.
func (s *Service) CreateReferralCode(ctx context.Context, ownerID int64, externalRef string) (ReferralCode, error) {
	now := time.Now().UTC()
	rc := ReferralCode{
		OwnerID:     ownerID,
		ExternalRef: externalRef,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.params.ReferralCodeTTL),
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return rc, fmt.Errorf("begin create code: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE referral_codes
		SET expires_at = $1
		WHERE owner_id = $2 AND expires_at > $1
	`, now.Unix(), ownerID); err != nil {
		return rc, fmt.Errorf("supersede codes: %w", err)
	}

	for {
		code, err := generateCode()
		if err != nil {
			return rc, err
		}
		cmd, err := tx.Exec(ctx, `
			INSERT INTO referral_codes (code, owner_id, external_ref, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (code) DO NOTHING
		`, code, ownerID, externalRef, now.Unix(), rc.ExpiresAt.Unix())
		if err != nil {
			return rc, fmt.Errorf("insert code: %w", err)
		}
		if cmd.RowsAffected() == 1 {
			rc.Code = code
			break
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return rc, fmt.Errorf("commit create code: %w", err)
	}
	return rc, nil
}

// RecordJoin classifies a membership join against the referral rules and
// writes at most one join row per joined account, ever. A repeated join
// event for the same account is reported as Duplicate and leaves the
// original row untouched.
func (s *Service) RecordJoin(ctx context.Context, in JoinInput) (JoinResult, error) {
	var res JoinResult
	if in.JoinedAt.IsZero() {
		in.JoinedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return res, fmt.Errorf("begin record join: %w", err)
	}
	defer tx.Rollback(ctx)

	var code string
	var ownerID, expiresAt int64
	codeFound := true
	// Lock the code row so use counters stay consistent under concurrent
	// joins through the same code.
	err = tx.QueryRow(ctx, `
		SELECT code, owner_id, expires_at
		FROM referral_codes
		WHERE external_ref = $1
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, in.ExternalRef).Scan(&code, &ownerID, &expiresAt)
	if err == pgx.ErrNoRows {
		codeFound = false
	} else if err != nil {
		return res, fmt.Errorf("lookup code: %w", err)
	}

	res.Valid = true
	switch {
	case !codeFound:
		res.Valid = false
		res.InvalidReason = InvalidUnknownCode
	case expiresAt <= in.JoinedAt.Unix():
		res.Valid = false
		res.InvalidReason = InvalidCodeExpired
	case in.JoinedAt.Sub(in.AccountCreatedAt) < s.params.MinAccountAge:
		res.Valid = false
		res.InvalidReason = InvalidAccountTooNew
	}

	res.ReferrerID = in.ReferrerID
	if codeFound {
		res.Code = code
		res.ReferrerID = ownerID
	}

	cmd, err := tx.Exec(ctx, `
		INSERT INTO referral_joins (joined_account_id, code, referrer_id, joined_at, valid, invalid_reason)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, NULLIF($6, ''))
		ON CONFLICT (joined_account_id) DO NOTHING
	`, in.AccountID, res.Code, res.ReferrerID, in.JoinedAt.Unix(), res.Valid, res.InvalidReason)
	if err != nil {
		return res, fmt.Errorf("insert join: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		// First-join-wins: the existing row is the fraud signal.
		res = JoinResult{Duplicate: true}
		if err := tx.Commit(ctx); err != nil {
			return res, fmt.Errorf("commit record join: %w", err)
		}
		s.audit(ctx, in.AccountID, "duplicate_join", map[string]any{"external_ref": in.ExternalRef})
		return res, nil
	}

	if codeFound {
		column := "invalid_uses"
		if res.Valid {
			column = "valid_uses"
		}
		query := fmt.Sprintf(`
			UPDATE referral_codes
			SET total_uses = total_uses + 1, %s = %s + 1
			WHERE code = $1
		`, column, column)
		if _, err := tx.Exec(ctx, query, code); err != nil {
			return res, fmt.Errorf("bump code counters: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit record join: %w", err)
	}
	if !res.Valid {
		s.audit(ctx, in.AccountID, "invalid_join", map[string]any{
			"reason":       res.InvalidReason,
			"external_ref": in.ExternalRef,
			"referrer_id":  res.ReferrerID,
		})
	}
	return res, nil
}

// ValidReferralCount counts an account's valid referrals since the given
// cycle start.
func (s *Service) ValidReferralCount(ctx context.Context, referrerID int64, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM referral_joins
		WHERE referrer_id = $1 AND valid = true AND joined_at >= $2
	`, referrerID, since.Unix()).Scan(&n)
	return n, err
}

func tierFor(required int) (PurchaseTier, bool) {
	for _, t := range PurchaseTiers {
		if t.Required == required {
			return t, true
		}
	}
	return PurchaseTier{}, false
}

// Purchase consumes one unit of tier stock and grants the tier reward. The
// stock check, the referral-eligibility check, the decrement and the ledger
// credit all run inside one transaction holding the singleton stock row
// lock, so they commit together or not at all.
func (s *Service) Purchase(ctx context.Context, accountID int64, required int) (PurchaseResult, error) {
	var res PurchaseResult
	tier, ok := tierFor(required)
	if !ok {
		return res, fmt.Errorf("%w: %d", ErrUnknownTier, required)
	}
	res.Tier = tier

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return res, fmt.Errorf("begin purchase: %w", err)
	}
	defer tx.Rollback(ctx)

	st, err := lockStockStateTx(ctx, tx, time.Now())
	if err != nil {
		return res, err
	}
	if st.Stock[required] <= 0 {
		return res, ErrOutOfStock
	}

	var validCount int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM referral_joins
		WHERE referrer_id = $1 AND valid = true AND joined_at >= $2
	`, accountID, st.CycleStart.Unix()).Scan(&validCount); err != nil {
		return res, fmt.Errorf("count referrals: %w", err)
	}
	res.ValidReferrals = validCount
	if validCount < required {
		return res, fmt.Errorf("%w: %d valid referrals, %d required", ErrNotEligible, validCount, required)
	}

	var decrement string
	switch required {
	case 3:
		decrement = `UPDATE stock_state SET stock_tier3 = stock_tier3 - 1 WHERE key = 'global'`
	case 5:
		decrement = `UPDATE stock_state SET stock_tier5 = stock_tier5 - 1 WHERE key = 'global'`
	case 10:
		decrement = `UPDATE stock_state SET stock_tier10 = stock_tier10 - 1 WHERE key = 'global'`
	}
	if _, err := tx.Exec(ctx, decrement); err != nil {
		return res, fmt.Errorf("decrement stock: %w", err)
	}
	res.RemainingStock = st.Stock[required] - 1

	ev, err := applyDeltaTx(ctx, tx, accountID, tier.Reward, "referral_purchase")
	if err != nil {
		return res, err
	}
	res.NewBalance = ev.NewBalance

	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit purchase: %w", err)
	}
	s.emit(ev)
	s.audit(ctx, accountID, "referral_purchase", map[string]any{
		"tier":            required,
		"granted":         tier.Reward,
		"remaining_stock": res.RemainingStock,
		"valid_referrals": validCount,
	})
	return res, nil
}

// Stock returns the current cycle's stock state, creating the singleton
// row with default stock if it does not exist yet.
func (s *Service) Stock(ctx context.Context) (StockState, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return StockState{}, err
	}
	defer tx.Rollback(ctx)
	st, err := lockStockStateTx(ctx, tx, time.Now())
	if err != nil {
		return st, err
	}
	return st, tx.Commit(ctx)
}

// ResetStock atomically restores default stock and starts a new cycle
// ending at cycleEnd.
func (s *Service) ResetStock(ctx context.Context, now, cycleEnd time.Time) (StockState, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return StockState{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := lockStockStateTx(ctx, tx, now); err != nil {
		return StockState{}, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE stock_state
		SET cycle_start = $1, cycle_end = $2, stock_tier3 = $3, stock_tier5 = $4, stock_tier10 = $5
		WHERE key = 'global'
	`, now.Unix(), cycleEnd.Unix(), defaultStock[3], defaultStock[5], defaultStock[10]); err != nil {
		return StockState{}, fmt.Errorf("reset stock: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return StockState{}, err
	}
	st := StockState{
		CycleStart: now,
		CycleEnd:   cycleEnd,
		Stock:      map[int]int{3: defaultStock[3], 5: defaultStock[5], 10: defaultStock[10]},
	}
	s.log.Info("stock reset", "cycle_end", cycleEnd)
	return st, nil
}

func lockStockStateTx(ctx context.Context, tx pgx.Tx, now time.Time) (StockState, error) {
	var st StockState
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_state (key, cycle_start, cycle_end, stock_tier3, stock_tier5, stock_tier10)
		VALUES ('global', $1, $2, $3, $4, $5)
		ON CONFLICT (key) DO NOTHING
	`, now.Unix(), now.Add(24*time.Hour).Unix(), defaultStock[3], defaultStock[5], defaultStock[10]); err != nil {
		return st, fmt.Errorf("ensure stock state: %w", err)
	}
	var cycleStart, cycleEnd int64
	var t3, t5, t10 int
	if err := tx.QueryRow(ctx, `
		SELECT cycle_start, cycle_end, stock_tier3, stock_tier5, stock_tier10
		FROM stock_state
		WHERE key = 'global'
		FOR UPDATE
	`).Scan(&cycleStart, &cycleEnd, &t3, &t5, &t10); err != nil {
		return st, fmt.Errorf("lock stock state: %w", err)
	}
	st.CycleStart = time.Unix(cycleStart, 0)
	st.CycleEnd = time.Unix(cycleEnd, 0)
	st.Stock = map[int]int{3: t3, 5: t5, 10: t10}
	return st, nil
}

func generateCode() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
