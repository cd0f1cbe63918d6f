package gateway

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"zyra/internal/economy"
)

func (b *Bot) staffLog(s *discordgo.Session, title, description string) {
	if b.cfg.StaffLogChannel == "" {
		return
	}
	_, err := s.ChannelMessageSendEmbed(b.cfg.StaffLogChannel, &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       0xed4245,
	})
	if err != nil {
		b.log.Warn("staff log send", "error", err)
	}
}

func (b *Bot) announceReward(s *discordgo.Session, channelID, userID string, grant *economy.RewardGrant) {
	_, err := s.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Title:       "Entries reward!",
		Description: fmt.Sprintf("<@%s> just won **%d entries**! New balance: %d.", userID, grant.Amount, grant.NewBalance),
		Color:       0x57f287,
	})
	if err != nil {
		b.log.Warn("reward announce", "channel_id", channelID, "error", err)
	}
}

// notifyBlocked DMs the blocked account. DM failures are expected (closed
// DMs) and only logged.
func (b *Bot) notifyBlocked(s *discordgo.Session, userID string, adm economy.Admission) {
	ch, err := s.UserChannelCreate(userID)
	if err != nil {
		b.log.Debug("open dm", "user_id", userID, "error", err)
		return
	}
	msg := fmt.Sprintf("Your messages stopped earning entries (%s). You can earn again <t:%d:R>.",
		adm.Reason, adm.BlockedUntil.Unix())
	if _, err := s.ChannelMessageSend(ch.ID, msg); err != nil {
		b.log.Debug("dm blocked notice", "user_id", userID, "error", err)
	}
}

// syncRoles moves the member onto the role for their new tier when a ledger
// event crosses a threshold. The pre-event balance is recovered from the
// event itself so no extra read is needed.
func (b *Bot) syncRoles(ev economy.LedgerEvent) {
	if len(b.cfg.TierRoles) == 0 || b.cfg.GuildID == "" {
		return
	}
	oldTier := economy.ResolveTier(ev.NewBalance - ev.Delta)
	newTier := economy.ResolveTier(ev.NewBalance)
	if oldTier.Name == newTier.Name {
		return
	}
	userID := strconv.FormatInt(ev.AccountID, 10)
	if roleID, ok := b.cfg.TierRoles[newTier.Name]; ok {
		if err := b.session.GuildMemberRoleAdd(b.cfg.GuildID, userID, roleID); err != nil {
			b.log.Warn("grant tier role", "account_id", ev.AccountID, "tier", newTier.Name, "error", err)
			return
		}
	}
	for name, roleID := range b.cfg.TierRoles {
		if name == newTier.Name {
			continue
		}
		if err := b.session.GuildMemberRoleRemove(b.cfg.GuildID, userID, roleID); err != nil {
			b.log.Debug("revoke tier role", "account_id", ev.AccountID, "tier", name, "error", err)
		}
	}
	b.log.Info("tier change", "account_id", ev.AccountID, "from", oldTier.Name, "to", newTier.Name)
}

func (b *Bot) announceWinners(res economy.GiveawayResult) {
	channelID := strconv.FormatInt(res.Giveaway.ChannelID, 10)
	if len(res.Winners) == 0 {
		_, err := b.session.ChannelMessageSend(channelID,
			fmt.Sprintf("The giveaway for **%s** closed with no entries.", res.Giveaway.Prize))
		if err != nil {
			b.log.Warn("announce empty giveaway", "giveaway_id", res.Giveaway.ID, "error", err)
		}
		return
	}
	mentions := ""
	for i, w := range res.Winners {
		if i > 0 {
			mentions += ", "
		}
		mentions += "<@" + strconv.FormatInt(w, 10) + ">"
	}
	_, err := b.session.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Title:       "Giveaway results",
		Description: fmt.Sprintf("**%s** goes to %s! Congratulations!", res.Giveaway.Prize, mentions),
		Color:       0xfee75c,
	})
	if err != nil {
		b.log.Warn("announce winners", "giveaway_id", res.Giveaway.ID, "error", err)
	}
}
