package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.DiscordToken)
	assert.Equal(t, "data/movienight.json", cfg.StoragePath)
	assert.Equal(t, "Dalles Filmklub", cfg.EventLocation)
	assert.Equal(t, 2*time.Second, cfg.LeaveDelay)
	assert.Equal(t, time.Minute, cfg.RatingPollDelay)
	assert.Equal(t, 5*time.Second, cfg.DeleteGrace)
	assert.True(t, cfg.InitSlashCommands)
}

func TestNewRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	_, err := New()
	assert.Error(t, err)
}

func TestNewOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("LEAVE_DELAY", "10s")
	t.Setenv("DISCORD_GUILD_BLACKLIST", "1,2")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.LeaveDelay)
	assert.Equal(t, []string{"1", "2"}, cfg.DiscordGuildBlacklist)
}
