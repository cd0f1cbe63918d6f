package gateway

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func snapshot(uses map[string]int) []*discordgo.Invite {
	var out []*discordgo.Invite
	for code, n := range uses {
		out = append(out, &discordgo.Invite{Code: code, Uses: n})
	}
	return out
}

func TestConsumeAttributesSingleAdvance(t *testing.T) {
	tr := NewInviteTracker()
	tr.Rebuild(snapshot(map[string]int{"aaa": 3, "bbb": 1}))

	used := tr.Consume(snapshot(map[string]int{"aaa": 4, "bbb": 1}))
	if used == nil || used.Code != "aaa" {
		t.Fatalf("expected aaa attributed, got %v", used)
	}

	// Snapshot advanced in place: the same diff again attributes nothing.
	if again := tr.Consume(snapshot(map[string]int{"aaa": 4, "bbb": 1})); again != nil {
		t.Fatalf("stale diff attributed %v", again)
	}
}

func TestConsumeAmbiguousAdvance(t *testing.T) {
	tr := NewInviteTracker()
	tr.Rebuild(snapshot(map[string]int{"aaa": 0, "bbb": 0}))
	if used := tr.Consume(snapshot(map[string]int{"aaa": 1, "bbb": 1})); used != nil {
		t.Fatalf("two advancing invites must not attribute, got %v", used)
	}
	// Both counts were still absorbed into the snapshot.
	if used := tr.Consume(snapshot(map[string]int{"aaa": 2, "bbb": 1})); used == nil || used.Code != "aaa" {
		t.Fatalf("expected aaa after absorption, got %v", used)
	}
}

func TestConsumeNewInvite(t *testing.T) {
	tr := NewInviteTracker()
	tr.Rebuild(nil)
	tr.Add("fresh")
	if used := tr.Consume(snapshot(map[string]int{"fresh": 1})); used == nil || used.Code != "fresh" {
		t.Fatalf("expected fresh attributed, got %v", used)
	}
	tr.Remove("fresh")
	if used := tr.Consume(snapshot(map[string]int{"fresh": 2})); used == nil || used.Code != "fresh" {
		t.Fatalf("removed invite reappearing should attribute, got %v", used)
	}
}
