package gateway

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// InviteTracker keeps a snapshot of guild invite use counts so member-join
// events can be attributed to the invite whose count advanced. The platform
// does not say which invite a joiner used; diffing snapshots is the only
// signal, and it is rebuilt from scratch on reconnect because counts drift
// while the gateway is down.
type InviteTracker struct {
	mu   sync.Mutex
	uses map[string]int
}

func NewInviteTracker() *InviteTracker {
	return &InviteTracker{uses: map[string]int{}}
}

// Rebuild replaces the snapshot with the guild's current invites.
func (t *InviteTracker) Rebuild(invites []*discordgo.Invite) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.uses = make(map[string]int, len(invites))
	for _, inv := range invites {
		t.uses[inv.Code] = inv.Uses
	}
}

// Consume diffs the fresh invite list against the snapshot and returns the
// invite whose use count advanced, updating the snapshot in place. Returns
// nil when no single invite can be attributed.
func (t *InviteTracker) Consume(invites []*discordgo.Invite) *discordgo.Invite {
	t.mu.Lock()
	defer t.mu.Unlock()
	var used *discordgo.Invite
	for _, inv := range invites {
		if inv.Uses > t.uses[inv.Code] {
			if used != nil {
				used = nil
				break
			}
			used = inv
		}
	}
	for _, inv := range invites {
		t.uses[inv.Code] = inv.Uses
	}
	return used
}

// Add registers a newly created invite at zero uses.
func (t *InviteTracker) Add(code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.uses[code] = 0
}

// Remove drops a revoked invite from the snapshot.
func (t *InviteTracker) Remove(code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.uses, code)
}
