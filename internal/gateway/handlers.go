package gateway

import (
	"context"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"zyra/internal/economy"
)

func (b *Bot) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	invites, err := s.GuildInvites(b.cfg.GuildID)
	if err != nil {
		b.log.Error("rebuild invite snapshot", "error", err)
		return
	}
	b.invites.Rebuild(invites)
	b.log.Info("invite snapshot rebuilt", "invites", len(invites))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	accountID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		return
	}
	channelID, _ := strconv.ParseInt(m.ChannelID, 10, 64)
	messageID, _ := strconv.ParseInt(m.ID, 10, 64)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := b.eco.HandleMessage(ctx, economy.Message{
		AccountID:  accountID,
		ChannelID:  channelID,
		MessageID:  messageID,
		Content:    m.Content,
		Privileged: b.isPrivileged(s, m),
		At:         time.Now(),
	})
	if err != nil {
		b.log.Error("handle message", "account_id", accountID, "error", err)
		return
	}

	adm := out.Admission
	switch {
	case adm.FlaggedBypass:
		b.staffLog(s, "Privileged bypass",
			"<@"+m.Author.ID+"> posted flagged content ("+adm.Reason+") in <#"+m.ChannelID+">; no action taken.")
	case adm.Blocked:
		if adm.DeleteMessage {
			if err := s.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
				b.log.Warn("delete message", "message_id", m.ID, "error", err)
			}
		}
		if adm.NewBlock {
			b.notifyBlocked(s, m.Author.ID, adm)
			b.staffLog(s, "Entry block",
				"<@"+m.Author.ID+"> blocked for "+adm.Reason+" until <t:"+strconv.FormatInt(adm.BlockedUntil.Unix(), 10)+":T>.")
		}
	}

	if out.Reward != nil && out.Reward.Public {
		b.announceReward(s, m.ChannelID, m.Author.ID, out.Reward)
	}
}

func (b *Bot) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User == nil || m.User.Bot {
		return
	}
	invites, err := s.GuildInvites(m.GuildID)
	if err != nil {
		b.log.Error("list invites on join", "error", err)
		return
	}
	used := b.invites.Consume(invites)

	accountID, err := strconv.ParseInt(m.User.ID, 10, 64)
	if err != nil {
		return
	}
	createdAt, err := discordgo.SnowflakeTimestamp(m.User.ID)
	if err != nil {
		createdAt = time.Now()
	}

	in := economy.JoinInput{
		AccountID:        accountID,
		AccountCreatedAt: createdAt,
		JoinedAt:         time.Now(),
	}
	if used != nil {
		in.ExternalRef = used.Code
		if used.Inviter != nil {
			in.ReferrerID, _ = strconv.ParseInt(used.Inviter.ID, 10, 64)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := b.eco.RecordJoin(ctx, in)
	if err != nil {
		b.log.Error("record join", "account_id", accountID, "error", err)
		return
	}
	switch {
	case res.Duplicate:
		b.staffLog(s, "Rejoin", "<@"+m.User.ID+"> rejoined; the original join already counted.")
	case !res.Valid:
		b.staffLog(s, "Invalid referral", "<@"+m.User.ID+"> joined but the referral was rejected: "+res.InvalidReason+".")
	}
}

func (b *Bot) onInviteCreate(_ *discordgo.Session, i *discordgo.InviteCreate) {
	b.invites.Add(i.Code)
}

func (b *Bot) onInviteDelete(_ *discordgo.Session, i *discordgo.InviteDelete) {
	b.invites.Remove(i.Code)
}

// isPrivileged treats accounts that can manage messages in the channel as
// exempt from blocking.
func (b *Bot) isPrivileged(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	perms, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionManageMessages != 0
}
