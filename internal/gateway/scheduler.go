package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// startScheduler arms the daily cycle at the configured local reset time.
func (b *Bot) startScheduler() error {
	sched, err := gocron.NewScheduler(gocron.WithLocation(b.cfg.Timezone))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(
			gocron.NewAtTime(uint(b.cfg.ResetHour), uint(b.cfg.ResetMinute), 0),
		)),
		gocron.NewTask(b.runDailyCycle),
	)
	if err != nil {
		return fmt.Errorf("schedule daily cycle: %w", err)
	}
	sched.Start()
	b.sched = sched
	return nil
}

func (b *Bot) runDailyCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	report, err := b.eco.RunDailyCycle(ctx, time.Now())
	if err != nil {
		b.log.Error("daily cycle", "error", err)
		return
	}
	b.staffLog(b.session, "Daily reset",
		fmt.Sprintf("Stipends granted: %d (errors: %d). Activity counters reset for %d accounts. Stock restored.",
			report.StipendsGranted, report.StipendErrors, report.AccountsReset))
}

// pollGiveaways resolves due giveaways and announces winners.
func (b *Bot) pollGiveaways(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.GiveawayPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			results, err := b.eco.CloseDueGiveaways(ctx, time.Now())
			if err != nil {
				b.log.Error("close giveaways", "error", err)
				continue
			}
			for _, res := range results {
				b.announceWinners(res)
			}
		}
	}
}

// consumeEvents drains the ledger event stream for role sync.
func (b *Bot) consumeEvents(ctx context.Context) {
	events := b.eco.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case ev := <-events:
			b.syncRoles(ev)
		}
	}
}
