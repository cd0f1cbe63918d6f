package economy

import (
	"context"
	"fmt"
	"time"
)

// Tier is one rank band. Accounts hold the highest tier whose threshold
// their balance meets; the stipend is credited once per daily cycle to
// accounts that met the activity floor.
type Tier struct {
	Name      string `json:"name"`
	Threshold int64  `json:"threshold"`
	Stipend   int64  `json:"stipend"`
}

// RankTiers is ordered by ascending threshold. ResolveTier depends on the
// ordering.
var RankTiers = []Tier{
	{Name: "bronze", Threshold: 0, Stipend: 0},
	{Name: "silver", Threshold: 100, Stipend: 1},
	{Name: "gold", Threshold: 500, Stipend: 3},
	{Name: "platinum", Threshold: 2500, Stipend: 5},
	{Name: "diamond", Threshold: 10000, Stipend: 10},
}

// ResolveTier returns the highest tier whose threshold the balance meets.
// Negative balances cannot occur in the ledger but still resolve to the
// base tier.
func ResolveTier(balance int64) Tier {
	tier := RankTiers[0]
	for _, t := range RankTiers[1:] {
		if balance >= t.Threshold {
			tier = t
		}
	}
	return tier
}

// RunDailyCycle grants rank stipends to every account that met the daily
// activity floor, resets all activity counters, and restores purchase
// stock for the next cycle. Each stipend is its own transaction so one
// failing account cannot block the rest; failures are counted and logged,
// never retried within the run.
func (s *Service) RunDailyCycle(ctx context.Context, now time.Time) (CycleReport, error) {
	var report CycleReport

	rows, err := s.db.Query(ctx, `
		SELECT account_id, balance
		FROM accounts
		WHERE daily_activity_count >= $1
	`, s.params.MinDailyActivity)
	if err != nil {
		return report, fmt.Errorf("list active accounts: %w", err)
	}
	type candidate struct {
		id      int64
		balance int64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.balance); err != nil {
			rows.Close()
			return report, fmt.Errorf("scan account: %w", err)
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report, fmt.Errorf("list active accounts: %w", err)
	}

	for _, c := range candidates {
		tier := ResolveTier(c.balance)
		if tier.Stipend <= 0 {
			continue
		}
		if _, err := s.ApplyDelta(ctx, c.id, tier.Stipend, "rank_stipend"); err != nil {
			report.StipendErrors++
			s.log.Error("stipend failed", "account_id", c.id, "tier", tier.Name, "error", err)
			continue
		}
		report.StipendsGranted++
	}

	cmd, err := s.db.Exec(ctx, `
		UPDATE accounts
		SET daily_activity_count = 0, last_activity_reset = $1
		WHERE daily_activity_count > 0
	`, now.Unix())
	if err != nil {
		return report, fmt.Errorf("reset activity: %w", err)
	}
	report.AccountsReset = cmd.RowsAffected()

	cycleEnd := NextDailyTime(now, s.params.Location, s.params.ResetHour, s.params.ResetMinute)
	st, err := s.ResetStock(ctx, now, cycleEnd)
	if err != nil {
		return report, err
	}
	report.Stock = st

	s.log.Info("daily cycle complete",
		"stipends_granted", report.StipendsGranted,
		"stipend_errors", report.StipendErrors,
		"accounts_reset", report.AccountsReset,
		"next_cycle_end", cycleEnd,
	)
	return report, nil
}
