package economy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service owns every mutable record of the entries economy. All balance
// mutations route through ApplyDelta (or its in-transaction form); no caller
// reads-then-writes a balance outside that contract.
type Service struct {
	db     *pgxpool.Pool
	log    *slog.Logger
	params Params

	mu   sync.Mutex
	rand *mathrand.Rand

	events chan LedgerEvent
}

func NewService(db *pgxpool.Pool, logger *slog.Logger, params Params) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     db,
		log:    logger,
		params: params,
		rand:   mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		events: make(chan LedgerEvent, 256),
	}
}

// Events exposes committed ledger events for observers (staff log, tier role
// sync). Delivery is best-effort: if no consumer keeps up, events are
// dropped rather than blocking the mutation path.
func (s *Service) Events() <-chan LedgerEvent {
	return s.events
}

func (s *Service) Params() Params {
	return s.params
}

// ApplyDelta applies a signed entries delta to one account inside a single
// transaction, holding the account row lock for the read-modify-write.
// Concurrent calls on the same account serialize on that lock; a delta that
// would take the balance below zero fails with ErrInsufficientFunds.
func (s *Service) ApplyDelta(ctx context.Context, accountID, delta int64, reason string) (LedgerEvent, error) {
	var ev LedgerEvent
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return ev, fmt.Errorf("begin apply delta: %w", err)
	}
	defer tx.Rollback(ctx)

	ev, err = applyDeltaTx(ctx, tx, accountID, delta, reason)
	if err != nil {
		return ev, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ev, fmt.Errorf("commit apply delta: %w", err)
	}
	s.emit(ev)
	return ev, nil
}

// applyDeltaTx is the ledger contract inside an existing transaction, used
// by purchases, stakes and stipends so the credit or debit commits (or
// aborts) together with its triggering state change. The caller is
// responsible for emitting the returned event after commit.
func applyDeltaTx(ctx context.Context, tx pgx.Tx, accountID, delta int64, reason string) (LedgerEvent, error) {
	var ev LedgerEvent
	if err := ensureAccountTx(ctx, tx, accountID); err != nil {
		return ev, err
	}
	var balance int64
	if err := tx.QueryRow(ctx, `
		SELECT balance
		FROM accounts
		WHERE account_id = $1
		FOR UPDATE
	`, accountID).Scan(&balance); err != nil {
		return ev, fmt.Errorf("lock account %d: %w", accountID, err)
	}
	next, err := nextBalance(balance, delta)
	if err != nil {
		return ev, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE accounts
		SET balance = $1
		WHERE account_id = $2
	`, next, accountID); err != nil {
		return ev, fmt.Errorf("update balance: %w", err)
	}

	ev = LedgerEvent{
		EventID:    uuid.NewString(),
		AccountID:  accountID,
		Delta:      delta,
		NewBalance: next,
		Reason:     reason,
		At:         time.Now().UTC(),
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO ledger_events (event_id, account_id, delta, new_balance, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ev.EventID, ev.AccountID, ev.Delta, ev.NewBalance, ev.Reason, ev.At.Unix()); err != nil {
		return ev, fmt.Errorf("record ledger event: %w", err)
	}
	return ev, nil
}

// nextBalance is the ledger's balance rule: a delta that would take the
// balance below zero is rejected whole, leaving the balance untouched.
func nextBalance(balance, delta int64) (int64, error) {
	next := balance + delta
	if next < 0 {
		return 0, fmt.Errorf("%w: balance %d, delta %d", ErrInsufficientFunds, balance, delta)
	}
	return next, nil
}

// ensureAccountTx is the idempotent account upsert: accounts are created
// lazily on first reference and never deleted.
func ensureAccountTx(ctx context.Context, tx pgx.Tx, accountID int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO accounts (account_id)
		VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID)
	if err != nil {
		return fmt.Errorf("ensure account %d: %w", accountID, err)
	}
	return nil
}

// Balance reads an account's entries, creating the row if this is the first
// reference.
func (s *Service) Balance(ctx context.Context, accountID int64) (int64, error) {
	var balance int64
	err := s.db.QueryRow(ctx, `
		SELECT balance FROM accounts WHERE account_id = $1
	`, accountID).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if err != pgx.ErrNoRows {
		return 0, err
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO accounts (account_id)
		VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID); err != nil {
		return 0, err
	}
	return 0, nil
}

func (s *Service) emit(ev LedgerEvent) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("ledger event dropped", "event_id", ev.EventID, "reason", ev.Reason)
	}
}

// audit writes a best-effort audit row. Failures are logged and swallowed:
// audit must never block or roll back a mutation that already committed.
func (s *Service) audit(ctx context.Context, accountID int64, action string, details map[string]any) {
	payload := ""
	if details != nil {
		raw, err := json.Marshal(details)
		if err == nil {
			payload = string(raw)
		}
	}
	if len(payload) > 500 {
		payload = payload[:500]
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO audit_log (account_id, action, details, created_at)
		VALUES ($1, $2, $3, $4)
	`, accountID, action, payload, time.Now().Unix()); err != nil {
		s.log.Warn("audit write failed", "action", action, "err", err)
	}
}

func (s *Service) nextFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

func (s *Service) lotteryRand() *mathrand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mathrand.New(mathrand.NewSource(s.rand.Int63()))
}
