// Package discord connects the bot's subsystems to the Discord gateway:
// it dispatches interactions to the command registry and turns gateway
// events into movie night and voice notifications.
package discord

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"filmklub/internal/apperr"
	"filmklub/internal/command"
	"filmklub/internal/config"
	mn "filmklub/internal/movienight"
	"filmklub/internal/soundboard"
	"filmklub/internal/voice"
	"filmklub/pkg/cmd"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsGuildScheduledEvents

// NewSession creates a gateway session with the intents the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = intents
	return dg, nil
}

type Options struct {
	Session    *discordgo.Session
	Config     *config.Config
	Registry   *cmd.Registry
	Controller *mn.Controller
	Voice      *voice.Manager
	Transport  *VoiceTransport
	Lookup     *VoiceLookup
	Entrances  *soundboard.Entrances
	DataDir    string // command hash cache lives below it
	Logger     zerolog.Logger
}

// Bot is the Discord front end.
type Bot struct {
	dg         *discordgo.Session
	cfg        *config.Config
	registry   *cmd.Registry
	controller *mn.Controller
	voice      *voice.Manager
	transport  *VoiceTransport
	lookup     *VoiceLookup
	entrances  *soundboard.Entrances
	dataDir    string
	log        zerolog.Logger

	ctx        context.Context
	events     *eventTracker
	resumeOnce sync.Once
	registered sync.Map // guild id -> struct{}
}

func NewBot(opts Options) *Bot {
	return &Bot{
		dg:         opts.Session,
		cfg:        opts.Config,
		registry:   opts.Registry,
		controller: opts.Controller,
		voice:      opts.Voice,
		transport:  opts.Transport,
		lookup:     opts.Lookup,
		entrances:  opts.Entrances,
		dataDir:    opts.DataDir,
		log:        opts.Logger,
		ctx:        context.Background(),
		events:     newEventTracker(),
	}
}

// Run opens the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onVoiceStateUpdate)
	b.dg.AddHandler(b.onScheduledEventCreate)
	b.dg.AddHandler(b.onScheduledEventUpdate)
	b.dg.AddHandler(b.onScheduledEventDelete)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("Shutdown signal received, closing gateway")
	return nil
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.DiscordGuildBlacklist, guildID)
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.resumeOnce.Do(func() {
		if err := b.controller.Resume(b.ctx); err != nil {
			b.log.Error().Err(err).Msg("Failed to resume rating polls")
		}
	})
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Discord bot is running")
}

// onGuildCreate fires for every guild once the session is ready and again
// for guilds joined later.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log := b.log.With().Str("guild", g.ID).Logger()

	if b.isGuildBlacklisted(g.ID) {
		log.Info().Str("name", g.Name).Msg("Leaving blacklisted guild")
		if err := s.GuildLeave(g.ID); err != nil {
			log.Error().Err(err).Msg("Failed to leave guild")
		}
		return
	}

	if b.cfg.InitSlashCommands {
		if _, done := b.registered.LoadOrStore(g.ID, struct{}{}); !done {
			if err := b.registerCommands(g.ID); err != nil {
				b.registered.Delete(g.ID)
				log.Error().Err(err).Msg("Failed to register commands")
			}
		}
	}

	b.autoJoin(g.ID)
}

// autoJoin joins the first voice channel that has a non-bot member.
func (b *Bot) autoJoin(guildID string) {
	if b.voice.IsConnected(guildID) {
		return
	}
	channelID, ok := b.lookup.FirstOccupiedChannel(guildID)
	if !ok {
		return
	}
	if _, err := b.voice.EnsureJoined(b.ctx, guildID, channelID, false); err != nil {
		b.log.Warn().Err(err).Str("guild", guildID).Str("channel", channelID).Msg("Failed to auto-join voice channel")
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID != "" && b.isGuildBlacklisted(i.GuildID) {
		return
	}

	reply := newResponder(s, i.Interaction)
	name, data := b.interactionContext(s, i, reply)
	if name == "" {
		b.log.Debug().Int("type", int(i.Type)).Msg("Unhandled interaction")
		return
	}

	c := b.registry.Get(name)
	if c == nil {
		b.log.Warn().Str("command", name).Msg("Unknown command")
		return
	}

	err := c.Run(b.ctx, &cmd.Invocation{Data: data})
	if err == nil {
		return
	}
	if i.Type == discordgo.InteractionApplicationCommandAutocomplete {
		b.log.Warn().Err(err).Str("command", name).Msg("Autocomplete failed")
		return
	}
	b.replyError(reply, name, err)
}

// interactionContext returns the registry name an interaction is routed to
// and the context handed to the command.
func (b *Bot) interactionContext(s *discordgo.Session, i *discordgo.InteractionCreate, reply command.Responder) (string, any) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		d := i.ApplicationCommandData()
		if d.CommandType == discordgo.UserApplicationCommand {
			var target *discordgo.User
			if d.Resolved != nil {
				target = d.Resolved.Users[d.TargetID]
			}
			return d.Name, &command.UserCommandContext{Session: s, Event: i, Reply: reply, Target: target}
		}
		return d.Name, &command.SlashInteractionContext{Session: s, Event: i, Reply: reply}

	case discordgo.InteractionApplicationCommandAutocomplete:
		return i.ApplicationCommandData().Name, &command.AutocompleteContext{Session: s, Event: i, Reply: reply}

	case discordgo.InteractionMessageComponent:
		return componentOwner(i.MessageComponentData().CustomID), &command.ComponentInteractionContext{Session: s, Event: i, Reply: reply}

	case discordgo.InteractionModalSubmit:
		return componentOwner(i.ModalSubmitData().CustomID), &command.ComponentInteractionContext{Session: s, Event: i, Reply: reply}
	}
	return "", nil
}

// componentOwner returns the command owning a custom id of the form
// "<command>:<payload>".
func componentOwner(customID string) string {
	name, _, _ := strings.Cut(customID, ":")
	return name
}

func (b *Bot) replyError(reply command.Responder, name string, err error) {
	log := b.log.With().Str("command", name).Err(err).Logger()
	if apperr.IsUserFacing(err) {
		log.Debug().Msg("Command rejected")
	} else {
		log.Error().Msg("Command failed")
	}
	if rerr := reply.Respond(command.Ephemeral(apperr.UserMessage(err))); rerr != nil {
		log.Warn().AnErr("reply_err", rerr).Msg("Failed to send error reply")
	}
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil {
		return
	}
	change := b.voiceChange(v)

	if s.State.User != nil && v.UserID == s.State.User.ID {
		switch {
		case v.ChannelID == "":
			b.transport.Disconnected(v.GuildID, change.OldChannelID)
		case b.transport.Moved(v.GuildID, v.ChannelID):
			b.voice.LeaveIfAlone(v.GuildID, b.cfg.LeaveDelay)
		}
		return
	}

	b.entrances.OnVoiceStateChange(b.ctx, change)
}

func (b *Bot) voiceChange(v *discordgo.VoiceStateUpdate) soundboard.VoiceChange {
	oldChannel := ""
	if v.BeforeUpdate != nil {
		oldChannel = v.BeforeUpdate.ChannelID
	}
	return soundboard.VoiceChange{
		GuildID:      v.GuildID,
		UserID:       v.UserID,
		OldChannelID: oldChannel,
		NewChannelID: v.ChannelID,
		Bot:          b.lookup.isBot(v.GuildID)(v.VoiceState),
	}
}

func (b *Bot) onScheduledEventCreate(_ *discordgo.Session, e *discordgo.GuildScheduledEventCreate) {
	b.handleEventStatus(e.GuildScheduledEvent)
}

func (b *Bot) onScheduledEventUpdate(_ *discordgo.Session, e *discordgo.GuildScheduledEventUpdate) {
	b.handleEventStatus(e.GuildScheduledEvent)
}

func (b *Bot) onScheduledEventDelete(_ *discordgo.Session, e *discordgo.GuildScheduledEventDelete) {
	if e.GuildScheduledEvent == nil {
		return
	}
	b.events.forget(e.ID)
	if err := b.controller.OnEventDeleted(b.ctx, toEvent(e.GuildScheduledEvent)); err != nil {
		b.log.Error().Err(err).Str("event", e.ID).Msg("Failed to handle deleted event")
	}
}

func (b *Bot) handleEventStatus(ev *discordgo.GuildScheduledEvent) {
	if ev == nil {
		return
	}
	status := toStatus(ev.Status)
	old, changed := b.events.transition(ev.ID, status)
	if !changed {
		return
	}
	if err := b.controller.OnEventStatusChange(b.ctx, toEvent(ev), old, status); err != nil {
		b.log.Error().Err(err).Str("event", ev.ID).Msg("Failed to handle event status change")
	}
	if status == mn.StatusCompleted || status == mn.StatusCanceled {
		b.events.forget(ev.ID)
	}
}
