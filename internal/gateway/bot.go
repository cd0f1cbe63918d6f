package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/go-co-op/gocron/v2"

	"zyra/internal/config"
	"zyra/internal/economy"
)

// Bot wires the chat platform to the economy: inbound messages feed the
// admission guard, member joins feed the referral validator, and ledger
// events flow back out as notifications and role changes.
type Bot struct {
	cfg     config.GatewayConfig
	log     *slog.Logger
	eco     *economy.Service
	session *discordgo.Session
	invites *InviteTracker
	sched   gocron.Scheduler
	done    chan struct{}
}

func New(cfg config.GatewayConfig, logger *slog.Logger, eco *economy.Service) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildInvites

	b := &Bot{
		cfg:     cfg,
		log:     logger,
		eco:     eco,
		session: session,
		invites: NewInviteTracker(),
		done:    make(chan struct{}),
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onGuildMemberAdd)
	session.AddHandler(b.onInviteCreate)
	session.AddHandler(b.onInviteDelete)
	return b, nil
}

// Start opens the gateway connection and launches the daily cycle job, the
// giveaway poller and the ledger-event consumer. It returns once connected;
// use Close to shut everything down.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	if err := b.startScheduler(); err != nil {
		b.session.Close()
		return err
	}
	go b.pollGiveaways(ctx)
	go b.consumeEvents(ctx)
	b.log.Info("gateway connected", "guild_id", b.cfg.GuildID)
	return nil
}

func (b *Bot) Close() error {
	close(b.done)
	if b.sched != nil {
		_ = b.sched.Shutdown()
	}
	return b.session.Close()
}
