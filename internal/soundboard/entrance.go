package soundboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"filmklub/internal/apperr"
	"filmklub/internal/storage"
	"filmklub/internal/voice"
)

const (
	defaultEntranceDelay = time.Second
	defaultLeaveDelay    = 2 * time.Second
)

// Player is the part of the voice manager that entrance sounds drive.
type Player interface {
	IsConnected(guildID string) bool
	ChannelID(guildID string) (string, bool)
	EnsureJoined(ctx context.Context, guildID, channelID string, forceSwitch bool) (voice.Connection, error)
	PlaySound(ctx context.Context, guildID, channelID, path string, forceSwitch bool) (*voice.Task, error)
	LeaveIfAlone(guildID string, delay time.Duration)
}

// VoiceChange is one member's move between voice channels. An empty
// channel id means "not in voice".
type VoiceChange struct {
	GuildID      string
	UserID       string
	OldChannelID string
	NewChannelID string
	Bot          bool
}

type Entrances struct {
	repo   storage.Repository
	lib    *Library
	player Player
	jobs   voice.Scheduler
	log    zerolog.Logger

	Delay      time.Duration
	LeaveDelay time.Duration
}

func NewEntrances(repo storage.Repository, lib *Library, player Player, jobs voice.Scheduler, logger zerolog.Logger) *Entrances {
	return &Entrances{
		repo:       repo,
		lib:        lib,
		player:     player,
		jobs:       jobs,
		log:        logger,
		Delay:      defaultEntranceDelay,
		LeaveDelay: defaultLeaveDelay,
	}
}

func entranceJob(guildID, userID string) string { return "entrance:" + guildID + ":" + userID }

// Get returns the user's entrance sound name.
func (e *Entrances) Get(guildID, userID string) (string, bool, error) {
	var file string
	var ok bool
	err := e.repo.View(func(doc *storage.Document) error {
		file, ok = doc.EntranceSound(guildID, userID)
		return nil
	})
	if err != nil || !ok {
		return "", false, err
	}
	return trimExt(file), true, nil
}

// Set makes name the user's entrance sound. The sound must exist.
func (e *Entrances) Set(guildID, userID, name string) error {
	if !e.lib.Exists(name) {
		return apperr.NotFound("soundboard.entrance", "Sound not found.")
	}
	return e.repo.Update(func(doc *storage.Document) error {
		doc.SetEntranceSound(guildID, userID, FileName(name))
		return nil
	})
}

// Clear removes the user's entrance sound.
func (e *Entrances) Clear(guildID, userID string) error {
	return e.repo.Update(func(doc *storage.Document) error {
		if !doc.RemoveEntranceSound(guildID, userID) {
			return apperr.NotFound("soundboard.entrance", "You don't have an entrance sound.")
		}
		return nil
	})
}

// OnVoiceStateChange reacts to a member joining, switching or leaving a
// voice channel.
func (e *Entrances) OnVoiceStateChange(ctx context.Context, ch VoiceChange) {
	if ch.Bot || ch.OldChannelID == ch.NewChannelID {
		return
	}
	log := e.log.With().Str("guild", ch.GuildID).Str("user", ch.UserID).Logger()

	switch {
	case ch.OldChannelID == "" && ch.NewChannelID != "":
		if !e.player.IsConnected(ch.GuildID) {
			if _, err := e.player.EnsureJoined(ctx, ch.GuildID, ch.NewChannelID, false); err != nil {
				log.Error().Err(err).Str("channel", ch.NewChannelID).Msg("Failed to auto-join voice channel")
			}
		}
		e.playEntrance(ctx, ch.GuildID, ch.UserID, ch.NewChannelID)

	case ch.OldChannelID != "" && ch.NewChannelID != "":
		e.player.LeaveIfAlone(ch.GuildID, e.LeaveDelay)
		e.playEntrance(ctx, ch.GuildID, ch.UserID, ch.NewChannelID)

	case ch.OldChannelID != "" && ch.NewChannelID == "":
		e.player.LeaveIfAlone(ch.GuildID, e.LeaveDelay)
	}
}

// playEntrance moves the bot to channelID and plays the user's entrance
// sound after Delay.
func (e *Entrances) playEntrance(ctx context.Context, guildID, userID, channelID string) {
	var file string
	var ok bool
	if err := e.repo.View(func(doc *storage.Document) error {
		file, ok = doc.EntranceSound(guildID, userID)
		return nil
	}); err != nil {
		e.log.Error().Err(err).Msg("Failed to read entrance sounds")
		return
	}
	if !ok {
		return
	}
	path := e.lib.FilePath(file)
	if !fileExists(path) {
		e.log.Debug().Str("file", file).Msg("Entrance sound file is missing")
		return
	}

	current, connected := e.player.ChannelID(guildID)
	sameChannel := connected && current == channelID
	if _, err := e.player.EnsureJoined(ctx, guildID, channelID, !sameChannel); err != nil {
		e.log.Error().Err(err).Str("user", userID).Msg("Failed to join for entrance sound")
		return
	}

	e.jobs.After(entranceJob(guildID, userID), e.Delay, func(ctx context.Context) error {
		if _, err := e.player.PlaySound(ctx, guildID, channelID, path, false); err != nil {
			return fmt.Errorf("play entrance sound for %s: %w", userID, err)
		}
		return nil
	})
}

func trimExt(file string) string {
	return strings.TrimSuffix(file, Ext)
}
