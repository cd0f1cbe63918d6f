package economy

import "time"

// LedgerEvent records a committed balance mutation. One row is written per
// successful ApplyDelta inside the same transaction as the mutation.
type LedgerEvent struct {
	EventID    string    `json:"event_id"`
	AccountID  int64     `json:"account_id"`
	Delta      int64     `json:"delta"`
	NewBalance int64     `json:"new_balance"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

// Message is an inbound chat event as delivered by the platform gateway.
type Message struct {
	AccountID  int64
	ChannelID  int64
	MessageID  int64
	Content    string
	Privileged bool
	At         time.Time
}

// Admission is the guard's verdict for one inbound message.
type Admission struct {
	Admitted      bool      `json:"admitted"`
	Blocked       bool      `json:"blocked"`
	BlockedUntil  time.Time `json:"blocked_until,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	DeleteMessage bool      `json:"-"`
	FlaggedBypass bool      `json:"-"`
	NewBlock      bool      `json:"-"`
}

// RewardGrant is a probabilistic chat reward that was applied to the ledger.
type RewardGrant struct {
	Amount     int64 `json:"amount"`
	NewBalance int64 `json:"new_balance"`
	Public     bool  `json:"public"`
}

// MessageOutcome bundles everything a gateway handler needs to act on after
// one message has been evaluated: the admission verdict and, if a reward
// band hit, the grant.
type MessageOutcome struct {
	Admission Admission
	Reward    *RewardGrant
	Event     *LedgerEvent
}

type abuseState struct {
	lastFingerprint     string
	lastMessageAt       int64
	repeatCount         int32
	blockedUntil        int64
	rewardCooldownUntil int64
}

type channelStreak struct {
	lastAccountID int64
	count         int32
	lastMessageAt int64
}

// ReferralCode is an invite code owned by a referrer. Superseded codes are
// expired in place, never deleted.
type ReferralCode struct {
	Code        string    `json:"code"`
	OwnerID     int64     `json:"owner_id"`
	ExternalRef string    `json:"external_ref"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	TotalUses   int       `json:"total_uses"`
	ValidUses   int       `json:"valid_uses"`
	InvalidUses int       `json:"invalid_uses"`
}

// JoinInput describes a membership-join event attributed to an invite.
type JoinInput struct {
	AccountID        int64
	ExternalRef      string
	ReferrerID       int64
	AccountCreatedAt time.Time
	JoinedAt         time.Time
}

// JoinResult reports how a join was classified. Duplicate means a row for
// this account already existed and nothing was written.
type JoinResult struct {
	Valid         bool   `json:"valid"`
	InvalidReason string `json:"invalid_reason,omitempty"`
	Code          string `json:"code,omitempty"`
	ReferrerID    int64  `json:"referrer_id"`
	Duplicate     bool   `json:"duplicate"`
}

// PurchaseTier maps a required valid-referral count to a fixed entries
// reward. The table is static; stock per tier lives in the singleton
// StockState row.
type PurchaseTier struct {
	Required int   `json:"required"`
	Reward   int64 `json:"reward"`
}

var PurchaseTiers = []PurchaseTier{
	{Required: 3, Reward: 10},
	{Required: 5, Reward: 25},
	{Required: 10, Reward: 75},
}

var defaultStock = map[int]int{3: 10, 5: 5, 10: 2}

type PurchaseResult struct {
	Tier           PurchaseTier `json:"tier"`
	NewBalance     int64        `json:"new_balance"`
	RemainingStock int          `json:"remaining_stock"`
	ValidReferrals int          `json:"valid_referrals"`
}

// StockState is the singleton purchase-stock record for the current cycle.
type StockState struct {
	CycleStart time.Time   `json:"cycle_start"`
	CycleEnd   time.Time   `json:"cycle_end"`
	Stock      map[int]int `json:"stock"`
}

type Giveaway struct {
	ID          int64     `json:"id"`
	ChannelID   int64     `json:"channel_id"`
	Prize       string    `json:"prize"`
	WinnerCount int       `json:"winner_count"`
	ClosesAt    time.Time `json:"closes_at"`
	Resolved    bool      `json:"resolved"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stake is one account's committed entries in a giveaway pool.
type Stake struct {
	AccountID int64 `json:"account_id"`
	Amount    int64 `json:"amount"`
}

type GiveawayResult struct {
	Giveaway Giveaway `json:"giveaway"`
	Stakes   []Stake  `json:"stakes"`
	Winners  []int64  `json:"winners"`
}

// CycleReport summarizes one daily scheduler run.
type CycleReport struct {
	StipendsGranted int        `json:"stipends_granted"`
	StipendErrors   int        `json:"stipend_errors"`
	AccountsReset   int64      `json:"accounts_reset"`
	Stock           StockState `json:"stock"`
}
