package discord

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"layeh.com/gopus"

	"filmklub/internal/voice"
)

const (
	frameInterval = 20 * time.Millisecond
	maxOpusBytes  = 4000
)

// VoiceTransport joins voice channels through the gateway session.
type VoiceTransport struct {
	s   *discordgo.Session
	log zerolog.Logger

	mu    sync.Mutex
	conns map[string]*voiceConn
}

var _ voice.Transport = (*VoiceTransport)(nil)

func NewVoiceTransport(s *discordgo.Session, logger zerolog.Logger) *VoiceTransport {
	return &VoiceTransport{s: s, log: logger, conns: make(map[string]*voiceConn)}
}

func (t *VoiceTransport) Join(ctx context.Context, guildID, channelID string) (voice.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := t.s.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}
	enc, err := gopus.NewEncoder(voice.SampleRate, voice.Channels, gopus.Audio)
	if err != nil {
		vc.Disconnect()
		return nil, err
	}

	c := &voiceConn{
		guildID:   guildID,
		vc:        vc,
		channelID: channelID,
		mixer:     voice.NewMixer(),
		enc:       enc,
		log:       t.log.With().Str("guild", guildID).Logger(),
		done:      make(chan struct{}),
		release:   t.release,
		hangup:    vc.Disconnect,
	}
	t.mu.Lock()
	t.conns[guildID] = c
	t.mu.Unlock()

	go c.run()
	return c, nil
}

func (t *VoiceTransport) release(c *voiceConn) {
	t.mu.Lock()
	if t.conns[c.guildID] == c {
		delete(t.conns, c.guildID)
	}
	t.mu.Unlock()
}

// Moved records that someone else moved the bot to channelID. It reports
// whether a live connection changed channel.
func (t *VoiceTransport) Moved(guildID, channelID string) bool {
	t.mu.Lock()
	c, ok := t.conns[guildID]
	t.mu.Unlock()
	if !ok || c.ChannelID() == channelID {
		return false
	}
	c.log.Info().Str("from", c.ChannelID()).Str("to", channelID).Msg("Moved to another voice channel")
	c.setChannel(channelID)
	return true
}

// Disconnected ends the connection after the bot was removed from
// channelID by someone else. A stale event for a channel the bot already
// left is ignored.
func (t *VoiceTransport) Disconnected(guildID, channelID string) {
	t.mu.Lock()
	c, ok := t.conns[guildID]
	if ok && (channelID == "" || c.ChannelID() == channelID) {
		delete(t.conns, guildID)
	} else {
		ok = false
	}
	t.mu.Unlock()

	if ok {
		c.close()
		if err := c.hangup(); err != nil {
			c.log.Debug().Err(err).Msg("Voice disconnect after removal")
		}
	}
}

// voiceConn feeds the mixed PCM of its tasks to Discord, one opus frame
// every 20ms.
type voiceConn struct {
	guildID string
	vc      *discordgo.VoiceConnection
	mixer   *voice.Mixer
	enc     *gopus.Encoder
	log     zerolog.Logger

	mu        sync.Mutex
	channelID string

	done    chan struct{}
	once    sync.Once
	release func(*voiceConn)
	hangup  func() error
}

func (c *voiceConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *voiceConn) setChannel(channelID string) {
	c.mu.Lock()
	c.channelID = channelID
	c.mu.Unlock()
}

func (c *voiceConn) Subscribe(t *voice.Task) { c.mixer.Add(t) }
func (c *voiceConn) Done() <-chan struct{}   { return c.done }
func (c *voiceConn) close()                  { c.once.Do(func() { close(c.done) }) }

func (c *voiceConn) Destroy() error {
	c.release(c)
	c.close()
	return c.hangup()
}

func (c *voiceConn) run() {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	pcm := make([]int16, voice.FrameSamples)
	speaking := false
	setSpeaking := func(on bool) {
		if speaking == on {
			return
		}
		speaking = on
		if err := c.vc.Speaking(on); err != nil {
			c.log.Debug().Err(err).Bool("speaking", on).Msg("Failed to set speaking state")
		}
	}
	defer c.mixer.Reset()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		if !c.mixer.Next(pcm) {
			setSpeaking(false)
			continue
		}
		setSpeaking(true)

		frame, err := c.enc.Encode(pcm, voice.FrameSize, maxOpusBytes)
		if err != nil {
			c.log.Debug().Err(err).Msg("Dropping frame that failed to encode")
			continue
		}
		select {
		case c.vc.OpusSend <- frame:
		case <-c.done:
			return
		}
	}
}

// VoiceLookup answers voice questions from the gateway state cache.
type VoiceLookup struct {
	s *discordgo.Session
}

var _ voice.Occupancy = (*VoiceLookup)(nil)

func NewVoiceLookup(s *discordgo.Session) *VoiceLookup {
	return &VoiceLookup{s: s}
}

func (v *VoiceLookup) NonBotMembers(guildID, channelID string) (int, error) {
	states, err := v.channelStates(guildID)
	if err != nil {
		return 0, err
	}
	return countHumans(states, channelID, v.selfID(), v.isBot(guildID)), nil
}

// UserVoiceChannel returns the channel a member is connected to.
func (v *VoiceLookup) UserVoiceChannel(guildID, userID string) (string, bool) {
	vs, err := v.s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

// FirstOccupiedChannel returns a voice channel with at least one non-bot
// member, if any.
func (v *VoiceLookup) FirstOccupiedChannel(guildID string) (string, bool) {
	states, err := v.channelStates(guildID)
	if err != nil {
		return "", false
	}
	isBot := v.isBot(guildID)
	self := v.selfID()
	for _, vs := range states {
		if vs.ChannelID != "" && vs.UserID != self && !isBot(vs) {
			return vs.ChannelID, true
		}
	}
	return "", false
}

// channelStates copies the guild's voice states so member lookups can run
// without holding the state lock.
func (v *VoiceLookup) channelStates(guildID string) ([]*discordgo.VoiceState, error) {
	guild, err := v.s.State.Guild(guildID)
	if err != nil {
		return nil, err
	}
	v.s.State.RLock()
	defer v.s.State.RUnlock()
	states := make([]*discordgo.VoiceState, len(guild.VoiceStates))
	copy(states, guild.VoiceStates)
	return states, nil
}

func (v *VoiceLookup) selfID() string {
	if v.s.State.User == nil {
		return ""
	}
	return v.s.State.User.ID
}

func (v *VoiceLookup) isBot(guildID string) func(*discordgo.VoiceState) bool {
	return func(vs *discordgo.VoiceState) bool {
		if vs.Member != nil && vs.Member.User != nil {
			return vs.Member.User.Bot
		}
		if m, err := v.s.State.Member(guildID, vs.UserID); err == nil && m.User != nil {
			return m.User.Bot
		}
		return false
	}
}

func countHumans(states []*discordgo.VoiceState, channelID, selfID string, isBot func(*discordgo.VoiceState) bool) int {
	n := 0
	for _, vs := range states {
		if vs == nil || vs.ChannelID != channelID || vs.UserID == selfID || isBot(vs) {
			continue
		}
		n++
	}
	return n
}
