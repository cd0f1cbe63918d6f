package economy

import (
	"context"
	"fmt"
	mathrand "math/rand"
	"time"

	"github.com/jackc/pgx/v5"
)

// drawWinners picks up to k distinct winners from the pool, weighted by
// stake, without replacement: each round draws uniformly over the remaining
// total stake, walks the pool accumulating stake until the cumulative sum
// passes the draw, removes the selected account and recomputes the total.
// Higher stake raises the odds but never guarantees a win. Pure function of
// the pool and the random source.
func drawWinners(rng *mathrand.Rand, pool []Stake, k int) []int64 {
	remaining := make([]Stake, 0, len(pool))
	for _, st := range pool {
		if st.Amount > 0 {
			remaining = append(remaining, st)
		}
	}
	winners := make([]int64, 0, k)
	for len(remaining) > 0 && len(winners) < k {
		var total int64
		for _, st := range remaining {
			total += st.Amount
		}
		roll := rng.Int63n(total)
		var cum int64
		for i, st := range remaining {
			cum += st.Amount
			if roll < cum {
				winners = append(winners, st.AccountID)
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}
	return winners
}

// RunLottery draws k winners from an ad-hoc pool. It touches no stored
// state; stakes were debited when entries were recorded.
func (s *Service) RunLottery(pool []Stake, k int) []int64 {
	return drawWinners(s.lotteryRand(), pool, k)
}

func (s *Service) CreateGiveaway(ctx context.Context, channelID int64, prize string, winnerCount int, closesAt time.Time, createdBy int64) (Giveaway, error) {
	g := Giveaway{
		ChannelID:   channelID,
		Prize:       prize,
		WinnerCount: winnerCount,
		ClosesAt:    closesAt,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
	}
	if winnerCount < 1 {
		return g, fmt.Errorf("winner count must be at least 1")
	}
	if prize == "" {
		return g, fmt.Errorf("prize is required")
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO giveaways (channel_id, prize, winner_count, closes_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, channelID, prize, winnerCount, closesAt.Unix(), createdBy, g.CreatedAt.Unix()).Scan(&g.ID)
	if err != nil {
		return g, fmt.Errorf("create giveaway: %w", err)
	}
	s.audit(ctx, createdBy, "giveaway_created", map[string]any{
		"giveaway_id": g.ID,
		"prize":       prize,
		"winners":     winnerCount,
		"closes_at":   closesAt.Unix(),
	})
	return g, nil
}

// EnterGiveaway records a write-once stake: the debit and the entry row
// commit together, and a second stake attempt for the same account is
// rejected with ErrDuplicateEntry rather than merged.
func (s *Service) EnterGiveaway(ctx context.Context, giveawayID, accountID, stake int64) (int64, error) {
	if stake <= 0 {
		return 0, fmt.Errorf("stake must be positive")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("begin enter giveaway: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the giveaway row so a stake cannot commit after the resolver has
	// already read the entry pool; entries and resolution serialize here.
	var resolved bool
	var closesAt int64
	err = tx.QueryRow(ctx, `
		SELECT resolved, closes_at FROM giveaways WHERE id = $1 FOR UPDATE
	`, giveawayID).Scan(&resolved, &closesAt)
	if err == pgx.ErrNoRows {
		return 0, ErrGiveawayNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load giveaway: %w", err)
	}
	if resolved || closesAt <= time.Now().Unix() {
		return 0, ErrGiveawayClosed
	}

	cmd, err := tx.Exec(ctx, `
		INSERT INTO giveaway_entries (giveaway_id, account_id, stake, entered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (giveaway_id, account_id) DO NOTHING
	`, giveawayID, accountID, stake, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("record stake: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		// Logged as a potential-abuse signal, not a fatal error.
		s.audit(ctx, accountID, "duplicate_stake", map[string]any{"giveaway_id": giveawayID})
		return 0, ErrDuplicateEntry
	}

	ev, err := applyDeltaTx(ctx, tx, accountID, -stake, "lottery_stake")
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit enter giveaway: %w", err)
	}
	s.emit(ev)
	return ev.NewBalance, nil
}

func (s *Service) Giveaway(ctx context.Context, id int64) (Giveaway, error) {
	var g Giveaway
	var closesAt, createdAt int64
	err := s.db.QueryRow(ctx, `
		SELECT id, channel_id, prize, winner_count, closes_at, resolved, created_by, created_at
		FROM giveaways
		WHERE id = $1
	`, id).Scan(&g.ID, &g.ChannelID, &g.Prize, &g.WinnerCount, &closesAt, &g.Resolved, &g.CreatedBy, &createdAt)
	if err == pgx.ErrNoRows {
		return g, ErrGiveawayNotFound
	}
	if err != nil {
		return g, err
	}
	g.ClosesAt = time.Unix(closesAt, 0)
	g.CreatedAt = time.Unix(createdAt, 0)
	return g, nil
}

// CloseDueGiveaways resolves every giveaway whose close time has passed.
// Each giveaway is resolved in its own transaction: the resolved flag flips
// together with reading the entry pool, so a crash or a concurrent closer
// cannot draw the same pool twice.
func (s *Service) CloseDueGiveaways(ctx context.Context, now time.Time) ([]GiveawayResult, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM giveaways WHERE resolved = false AND closes_at <= $1
	`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("list due giveaways: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []GiveawayResult
	for _, id := range ids {
		res, err := s.resolveGiveaway(ctx, id)
		if err != nil {
			s.log.Error("giveaway resolve failed", "giveaway_id", id, "err", err)
			continue
		}
		if res != nil {
			results = append(results, *res)
		}
	}
	return results, nil
}

func (s *Service) resolveGiveaway(ctx context.Context, id int64) (*GiveawayResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var res GiveawayResult
	var closesAt, createdAt int64
	err = tx.QueryRow(ctx, `
		SELECT id, channel_id, prize, winner_count, closes_at, resolved, created_by, created_at
		FROM giveaways
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&res.Giveaway.ID, &res.Giveaway.ChannelID, &res.Giveaway.Prize, &res.Giveaway.WinnerCount,
		&closesAt, &res.Giveaway.Resolved, &res.Giveaway.CreatedBy, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("lock giveaway: %w", err)
	}
	if res.Giveaway.Resolved {
		return nil, nil
	}
	res.Giveaway.ClosesAt = time.Unix(closesAt, 0)
	res.Giveaway.CreatedAt = time.Unix(createdAt, 0)

	rows, err := tx.Query(ctx, `
		SELECT account_id, stake FROM giveaway_entries WHERE giveaway_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load stakes: %w", err)
	}
	for rows.Next() {
		var st Stake
		if err := rows.Scan(&st.AccountID, &st.Amount); err != nil {
			rows.Close()
			return nil, err
		}
		res.Stakes = append(res.Stakes, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE giveaways SET resolved = true WHERE id = $1
	`, id); err != nil {
		return nil, fmt.Errorf("mark resolved: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit resolve: %w", err)
	}

	res.Giveaway.Resolved = true
	res.Winners = drawWinners(s.lotteryRand(), res.Stakes, res.Giveaway.WinnerCount)
	s.audit(ctx, res.Giveaway.CreatedBy, "giveaway_resolved", map[string]any{
		"giveaway_id": id,
		"entrants":    len(res.Stakes),
		"winners":     res.Winners,
	})
	return &res, nil
}
