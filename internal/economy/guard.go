package economy

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// guardDecision is the pure outcome of evaluating one message against the
// account's abuse state and the channel's streak row. The caller persists
// nextState/nextStreak and acts on the admission.
type guardDecision struct {
	admission      Admission
	rewardEligible bool
	activity       bool
	nextState      abuseState
	nextStreak     channelStreak
}

// evaluateAdmission runs the abuse state machine for one inbound message.
// Block and cooldown expiries are wall-clock timestamps compared here, at
// evaluation time; nothing unblocks in the background.
func evaluateAdmission(p Params, now time.Time, st abuseState, cs channelStreak, msg Message) guardDecision {
	ts := now.Unix()
	normalized := NormalizeContent(msg.Content)
	fingerprint := FingerprintContent(normalized)

	// Channel streak: consecutive messages by the same account, uninterrupted
	// by any other account, inside the streak window.
	next := cs
	if cs.lastAccountID == msg.AccountID && ts-cs.lastMessageAt <= int64(p.StreakWindow/time.Second) {
		next.count++
	} else {
		next.count = 1
	}
	next.lastAccountID = msg.AccountID
	next.lastMessageAt = ts

	violation := contentViolation(normalized)
	repeat := st.lastFingerprint != "" &&
		st.lastFingerprint == fingerprint &&
		ts-st.lastMessageAt <= int64(p.RepeatWindow/time.Second)

	punishReason := violation
	if punishReason == "" && int(next.count) >= p.StreakLimit {
		punishReason = ReasonSpamStreak
	}
	if punishReason == "" && repeat {
		punishReason = ReasonRepeat
	}

	nextState := st
	nextState.lastFingerprint = fingerprint
	nextState.lastMessageAt = ts
	nextState.repeatCount = next.count

	d := guardDecision{nextStreak: next}
	alreadyBlocked := st.blockedUntil > ts

	switch {
	case msg.Privileged:
		// Elevated accounts are exempt from blocking transitions; flagged
		// content is still surfaced for audit.
		d.admission = Admission{Admitted: true, FlaggedBypass: violation != "", Reason: violation}
	case punishReason != "":
		d.admission = Admission{
			Blocked:       true,
			Reason:        punishReason,
			DeleteMessage: violation != "",
		}
		if alreadyBlocked {
			// No stacking: the existing expiry is preserved.
			d.admission.BlockedUntil = time.Unix(st.blockedUntil, 0)
		} else {
			nextState.blockedUntil = ts + int64(p.BlockDuration/time.Second)
			d.admission.BlockedUntil = time.Unix(nextState.blockedUntil, 0)
			d.admission.NewBlock = true
		}
	case alreadyBlocked:
		d.admission = Admission{
			Blocked:      true,
			Reason:       ReasonBlocked,
			BlockedUntil: time.Unix(st.blockedUntil, 0),
		}
	default:
		d.admission = Admission{Admitted: true}
	}

	qualifying := len(msg.Content) >= p.MinMessageLen
	d.activity = d.admission.Admitted && qualifying
	d.rewardEligible = d.activity && st.rewardCooldownUntil <= ts

	// Informational reasons for dry-run callers; the gateway acts only on
	// Blocked and FlaggedBypass.
	if d.admission.Admitted && !d.admission.FlaggedBypass {
		switch {
		case !qualifying:
			d.admission.Reason = ReasonTooShort
		case !d.rewardEligible:
			d.admission.Reason = ReasonRewardCool
		}
	}

	d.nextState = nextState
	return d
}

// HandleMessage is the gateway entry point for every inbound chat message:
// admission, activity counting and the probabilistic reward draw run in one
// transaction so concurrent messages from the same account serialize on the
// abuse-state row.
func (s *Service) HandleMessage(ctx context.Context, msg Message) (MessageOutcome, error) {
	var out MessageOutcome
	if msg.At.IsZero() {
		msg.At = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return out, fmt.Errorf("begin handle message: %w", err)
	}
	defer tx.Rollback(ctx)

	st, err := lockAbuseStateTx(ctx, tx, msg.AccountID)
	if err != nil {
		return out, err
	}
	cs, err := lockChannelStreakTx(ctx, tx, msg.ChannelID)
	if err != nil {
		return out, err
	}

	d := evaluateAdmission(s.params, msg.At, st, cs, msg)
	out.Admission = d.admission

	if d.activity {
		if err := ensureAccountTx(ctx, tx, msg.AccountID); err != nil {
			return out, err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE accounts
			SET daily_activity_count = daily_activity_count + 1
			WHERE account_id = $1
		`, msg.AccountID); err != nil {
			return out, fmt.Errorf("bump activity: %w", err)
		}
	}

	if d.rewardEligible {
		// Every draw arms the cooldown, whether or not a band hits.
		d.nextState.rewardCooldownUntil = msg.At.Unix() + int64(s.params.RewardCooldown/time.Second)
		if amount, public, hit := drawAward(s.nextFloat()); hit {
			ev, err := applyDeltaTx(ctx, tx, msg.AccountID, amount, "chat_reward")
			if err != nil {
				return out, err
			}
			out.Reward = &RewardGrant{Amount: amount, NewBalance: ev.NewBalance, Public: public}
			out.Event = &ev
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE abuse_state
		SET last_fingerprint = $1,
		    last_message_at = $2,
		    repeat_count = $3,
		    blocked_until = $4,
		    reward_cooldown_until = $5
		WHERE account_id = $6
	`, d.nextState.lastFingerprint, d.nextState.lastMessageAt, d.nextState.repeatCount,
		d.nextState.blockedUntil, d.nextState.rewardCooldownUntil, msg.AccountID); err != nil {
		return out, fmt.Errorf("update abuse state: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE channel_streaks
		SET last_account_id = $1, streak_count = $2, last_message_at = $3
		WHERE channel_id = $4
	`, d.nextStreak.lastAccountID, d.nextStreak.count, d.nextStreak.lastMessageAt, msg.ChannelID); err != nil {
		return out, fmt.Errorf("update channel streak: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return out, fmt.Errorf("commit handle message: %w", err)
	}

	if out.Event != nil {
		s.emit(*out.Event)
	}
	if out.Admission.NewBlock {
		s.audit(ctx, msg.AccountID, "automod_punishment", map[string]any{
			"reason":         out.Admission.Reason,
			"channel_id":     msg.ChannelID,
			"message_id":     msg.MessageID,
			"blocked_until":  out.Admission.BlockedUntil.Unix(),
			"content_sample": truncate(msg.Content, 300),
		})
	}
	if out.Admission.FlaggedBypass {
		s.audit(ctx, msg.AccountID, "privileged_bypass", map[string]any{
			"reason":         out.Admission.Reason,
			"channel_id":     msg.ChannelID,
			"message_id":     msg.MessageID,
			"content_sample": truncate(msg.Content, 300),
		})
	}
	return out, nil
}

// CheckAdmission reports how a message would be admitted right now without
// recording it. Exposed to the presentation layer; the gateway path uses
// HandleMessage.
func (s *Service) CheckAdmission(ctx context.Context, accountID, channelID int64, content string) (Admission, error) {
	var st abuseState
	err := s.db.QueryRow(ctx, `
		SELECT last_fingerprint, last_message_at, repeat_count, blocked_until, reward_cooldown_until
		FROM abuse_state
		WHERE account_id = $1
	`, accountID).Scan(&st.lastFingerprint, &st.lastMessageAt, &st.repeatCount, &st.blockedUntil, &st.rewardCooldownUntil)
	if err != nil && err != pgx.ErrNoRows {
		return Admission{}, err
	}
	var cs channelStreak
	err = s.db.QueryRow(ctx, `
		SELECT last_account_id, streak_count, last_message_at
		FROM channel_streaks
		WHERE channel_id = $1
	`, channelID).Scan(&cs.lastAccountID, &cs.count, &cs.lastMessageAt)
	if err != nil && err != pgx.ErrNoRows {
		return Admission{}, err
	}
	d := evaluateAdmission(s.params, time.Now(), st, cs, Message{
		AccountID: accountID,
		ChannelID: channelID,
		Content:   content,
	})
	return d.admission, nil
}

func lockAbuseStateTx(ctx context.Context, tx pgx.Tx, accountID int64) (abuseState, error) {
	var st abuseState
	if _, err := tx.Exec(ctx, `
		INSERT INTO abuse_state (account_id)
		VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID); err != nil {
		return st, fmt.Errorf("ensure abuse state: %w", err)
	}
	err := tx.QueryRow(ctx, `
		SELECT last_fingerprint, last_message_at, repeat_count, blocked_until, reward_cooldown_until
		FROM abuse_state
		WHERE account_id = $1
		FOR UPDATE
	`, accountID).Scan(&st.lastFingerprint, &st.lastMessageAt, &st.repeatCount, &st.blockedUntil, &st.rewardCooldownUntil)
	if err != nil {
		return st, fmt.Errorf("lock abuse state: %w", err)
	}
	return st, nil
}

func lockChannelStreakTx(ctx context.Context, tx pgx.Tx, channelID int64) (channelStreak, error) {
	var cs channelStreak
	if _, err := tx.Exec(ctx, `
		INSERT INTO channel_streaks (channel_id)
		VALUES ($1)
		ON CONFLICT (channel_id) DO NOTHING
	`, channelID); err != nil {
		return cs, fmt.Errorf("ensure channel streak: %w", err)
	}
	err := tx.QueryRow(ctx, `
		SELECT last_account_id, streak_count, last_message_at
		FROM channel_streaks
		WHERE channel_id = $1
		FOR UPDATE
	`, channelID).Scan(&cs.lastAccountID, &cs.count, &cs.lastMessageAt)
	if err != nil {
		return cs, fmt.Errorf("lock channel streak: %w", err)
	}
	return cs, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
