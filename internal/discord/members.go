package discord

import (
	"github.com/bwmarrin/discordgo"

	"filmklub/internal/command/nick"
)

// Members reads members from the state cache and falls back to the API.
type Members struct {
	s *discordgo.Session
}

var _ nick.Members = (*Members)(nil)

func NewMembers(s *discordgo.Session) *Members {
	return &Members{s: s}
}

func (m *Members) Member(guildID, userID string) (*discordgo.Member, error) {
	if mem, err := m.s.State.Member(guildID, userID); err == nil {
		return mem, nil
	}
	return m.s.GuildMember(guildID, userID)
}

func (m *Members) SetNickname(guildID, userID, nickname string) error {
	return m.s.GuildMemberNickname(guildID, userID, nickname)
}
