package economy

import (
	"fmt"
	"testing"
	"time"
)

var testStart = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func chatMsg(accountID int64, content string, at time.Time) Message {
	return Message{AccountID: accountID, ChannelID: 55, MessageID: 1, Content: content, At: at}
}

// runSequence threads state through evaluateAdmission the way HandleMessage
// does, returning the final decision.
func runSequence(t *testing.T, p Params, msgs []Message) guardDecision {
	t.Helper()
	st := map[int64]abuseState{}
	var cs channelStreak
	var last guardDecision
	for _, m := range msgs {
		last = evaluateAdmission(p, m.At, st[m.AccountID], cs, m)
		st[m.AccountID] = last.nextState
		cs = last.nextStreak
	}
	return last
}

func TestStreakTriggersBlock(t *testing.T) {
	p := DefaultParams()
	var msgs []Message
	for i := 0; i < p.StreakLimit; i++ {
		msgs = append(msgs, chatMsg(1, fmt.Sprintf("different message number %d", i), testStart.Add(time.Duration(i)*2*time.Second)))
	}
	d := runSequence(t, p, msgs)
	if !d.admission.Blocked || d.admission.Reason != ReasonSpamStreak {
		t.Fatalf("expected streak block, got %+v", d.admission)
	}
	if !d.admission.NewBlock {
		t.Fatalf("expected a fresh block")
	}
	if d.admission.DeleteMessage {
		t.Fatalf("streak blocks must not delete the message")
	}
	want := msgs[len(msgs)-1].At.Add(p.BlockDuration).Unix()
	if d.admission.BlockedUntil.Unix() != want {
		t.Fatalf("blocked until %d, want %d", d.admission.BlockedUntil.Unix(), want)
	}
}

func TestBlockedAccountStaysDenied(t *testing.T) {
	p := DefaultParams()
	st := abuseState{blockedUntil: testStart.Add(60 * time.Second).Unix()}
	d := evaluateAdmission(p, testStart, st, channelStreak{}, chatMsg(1, "a perfectly normal message", testStart))
	if d.admission.Admitted || d.admission.Reason != ReasonBlocked {
		t.Fatalf("expected denial during block, got %+v", d.admission)
	}
	if d.activity || d.rewardEligible {
		t.Fatalf("blocked messages must not count as activity")
	}
	if d.admission.BlockedUntil.Unix() != st.blockedUntil {
		t.Fatalf("expiry must be reported unchanged")
	}
}

func TestBlockExpiresOnItsOwn(t *testing.T) {
	p := DefaultParams()
	st := abuseState{blockedUntil: testStart.Unix() - 1}
	d := evaluateAdmission(p, testStart, st, channelStreak{}, chatMsg(1, "a perfectly normal message", testStart))
	if !d.admission.Admitted {
		t.Fatalf("expected admission after expiry, got %+v", d.admission)
	}
}

func TestInterveningAccountResetsStreak(t *testing.T) {
	p := DefaultParams()
	var msgs []Message
	at := testStart
	for i := 0; i < p.StreakLimit-1; i++ {
		msgs = append(msgs, chatMsg(1, fmt.Sprintf("account one message %d", i), at))
		at = at.Add(2 * time.Second)
	}
	msgs = append(msgs, chatMsg(2, "someone else interrupts here", at))
	msgs = append(msgs, chatMsg(1, "account one talks once more", at.Add(2*time.Second)))
	d := runSequence(t, p, msgs)
	if !d.admission.Admitted {
		t.Fatalf("streak should have reset, got %+v", d.admission)
	}
	if d.nextStreak.count != 1 {
		t.Fatalf("streak count = %d, want 1", d.nextStreak.count)
	}
}

func TestStreakWindowGapResets(t *testing.T) {
	p := DefaultParams()
	cs := channelStreak{lastAccountID: 1, count: int32(p.StreakLimit - 1), lastMessageAt: testStart.Unix()}
	late := testStart.Add(p.StreakWindow + time.Second)
	d := evaluateAdmission(p, late, abuseState{}, cs, chatMsg(1, "back after a quiet spell", late))
	if !d.admission.Admitted {
		t.Fatalf("gap past the window must reset the streak, got %+v", d.admission)
	}
	if d.nextStreak.count != 1 {
		t.Fatalf("streak count = %d, want 1", d.nextStreak.count)
	}
}

func TestLinkContentDeletedAndBlocked(t *testing.T) {
	p := DefaultParams()
	d := evaluateAdmission(p, testStart, abuseState{}, channelStreak{}, chatMsg(1, "join via https://example.com now", testStart))
	if !d.admission.Blocked || d.admission.Reason != ReasonLink {
		t.Fatalf("expected link block, got %+v", d.admission)
	}
	if !d.admission.DeleteMessage {
		t.Fatalf("link violations must request deletion")
	}
}

func TestBlacklistedTermBlocked(t *testing.T) {
	p := DefaultParams()
	d := evaluateAdmission(p, testStart, abuseState{}, channelStreak{}, chatMsg(1, "that guy is such a badword honestly", testStart))
	if !d.admission.Blocked || d.admission.Reason != ReasonBlacklist {
		t.Fatalf("expected blacklist block, got %+v", d.admission)
	}
	if !d.admission.DeleteMessage {
		t.Fatalf("blacklist violations must request deletion")
	}
}

func TestPrivilegedBypass(t *testing.T) {
	p := DefaultParams()
	msg := chatMsg(1, "check https://example.com please", testStart)
	msg.Privileged = true
	d := evaluateAdmission(p, testStart, abuseState{}, channelStreak{}, msg)
	if !d.admission.Admitted || d.admission.Blocked {
		t.Fatalf("privileged accounts are never blocked, got %+v", d.admission)
	}
	if !d.admission.FlaggedBypass {
		t.Fatalf("flagged content by privileged accounts must be surfaced")
	}
	if d.nextState.blockedUntil != 0 {
		t.Fatalf("privileged messages must not arm a block")
	}
}

func TestPrivilegedStillAdvancesStreak(t *testing.T) {
	p := DefaultParams()
	cs := channelStreak{lastAccountID: 1, count: 2, lastMessageAt: testStart.Unix()}
	msg := chatMsg(1, "privileged message in a row", testStart.Add(time.Second))
	msg.Privileged = true
	d := evaluateAdmission(p, msg.At, abuseState{}, cs, msg)
	if d.nextStreak.count != 3 {
		t.Fatalf("streak count = %d, want 3", d.nextStreak.count)
	}
}

func TestRepeatFingerprintBlocked(t *testing.T) {
	p := DefaultParams()
	first := chatMsg(1, "Hello There Friends", testStart)
	d := evaluateAdmission(p, first.At, abuseState{}, channelStreak{}, first)
	if !d.admission.Admitted {
		t.Fatalf("first message should pass, got %+v", d.admission)
	}

	// Casing and spacing differences still fingerprint identically.
	second := chatMsg(1, "hello   there friends", testStart.Add(10*time.Second))
	// Another account breaks the streak so only the repeat rule fires.
	d2 := evaluateAdmission(p, second.At, d.nextState, channelStreak{lastAccountID: 2, count: 1, lastMessageAt: second.At.Unix()}, second)
	if !d2.admission.Blocked || d2.admission.Reason != ReasonRepeat {
		t.Fatalf("expected repeat block, got %+v", d2.admission)
	}
	if d2.admission.DeleteMessage {
		t.Fatalf("repeats are blocked but not deleted")
	}
}

func TestRepeatOutsideWindowAllowed(t *testing.T) {
	p := DefaultParams()
	st := abuseState{
		lastFingerprint: FingerprintContent(NormalizeContent("hello there friends")),
		lastMessageAt:   testStart.Unix(),
	}
	late := testStart.Add(p.RepeatWindow + time.Second)
	d := evaluateAdmission(p, late, st, channelStreak{}, chatMsg(1, "hello there friends", late))
	if !d.admission.Admitted {
		t.Fatalf("repeat outside the window should pass, got %+v", d.admission)
	}
}

func TestBlocksDoNotStack(t *testing.T) {
	p := DefaultParams()
	existing := testStart.Add(30 * time.Second).Unix()
	st := abuseState{blockedUntil: existing}
	d := evaluateAdmission(p, testStart, st, channelStreak{}, chatMsg(1, "spam https://example.com again", testStart))
	if !d.admission.Blocked {
		t.Fatalf("expected block, got %+v", d.admission)
	}
	if d.admission.NewBlock {
		t.Fatalf("a violation during a block must not arm a new one")
	}
	if d.admission.BlockedUntil.Unix() != existing {
		t.Fatalf("expiry moved from %d to %d", existing, d.admission.BlockedUntil.Unix())
	}
	if d.nextState.blockedUntil != existing {
		t.Fatalf("persisted expiry moved from %d to %d", existing, d.nextState.blockedUntil)
	}
}

func TestContentViolationOutranksStreak(t *testing.T) {
	p := DefaultParams()
	cs := channelStreak{lastAccountID: 1, count: int32(p.StreakLimit - 1), lastMessageAt: testStart.Unix()}
	d := evaluateAdmission(p, testStart.Add(time.Second), abuseState{}, cs, chatMsg(1, "streak finale with https://example.com", testStart.Add(time.Second)))
	if d.admission.Reason != ReasonLink {
		t.Fatalf("reason = %q, want %q", d.admission.Reason, ReasonLink)
	}
	if !d.admission.DeleteMessage {
		t.Fatalf("content violations always delete")
	}
}

func TestShortMessageAdmittedButNotActivity(t *testing.T) {
	p := DefaultParams()
	d := evaluateAdmission(p, testStart, abuseState{}, channelStreak{}, chatMsg(1, "short", testStart))
	if !d.admission.Admitted {
		t.Fatalf("short messages are admitted, got %+v", d.admission)
	}
	if d.activity || d.rewardEligible {
		t.Fatalf("short messages count toward neither activity nor rewards")
	}
}

func TestRewardCooldownSuppressesEligibility(t *testing.T) {
	p := DefaultParams()
	st := abuseState{rewardCooldownUntil: testStart.Add(10 * time.Second).Unix()}
	d := evaluateAdmission(p, testStart, st, channelStreak{}, chatMsg(1, "a perfectly normal message", testStart))
	if !d.admission.Admitted || !d.activity {
		t.Fatalf("message should be admitted activity, got %+v", d)
	}
	if d.rewardEligible {
		t.Fatalf("cooldown must suppress reward eligibility")
	}

	after := testStart.Add(11 * time.Second)
	d2 := evaluateAdmission(p, after, st, channelStreak{}, chatMsg(1, "another perfectly fine message", after))
	if !d2.rewardEligible {
		t.Fatalf("expired cooldown must restore eligibility")
	}
}
