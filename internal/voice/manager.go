package voice

import (
	"context"
	"errors"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"filmklub/internal/apperr"
	"filmklub/internal/metrics"
)

const defaultTaskGrace = time.Second

// Session is the live state of one guild's voice connection.
type Session struct {
	GuildID string
	conn    Connection
	tasks   []*Task
}

type Manager struct {
	transport Transport
	decoder   Decoder
	occupancy Occupancy
	jobs      Scheduler
	log       zerolog.Logger
	taskGrace time.Duration

	mu         sync.Mutex
	sessions   map[string]*Session
	guildLocks map[string]*sync.Mutex
}

func NewManager(transport Transport, decoder Decoder, occupancy Occupancy, jobs Scheduler, logger zerolog.Logger) *Manager {
	return &Manager{
		transport:  transport,
		decoder:    decoder,
		occupancy:  occupancy,
		jobs:       jobs,
		log:        logger,
		taskGrace:  defaultTaskGrace,
		sessions:   make(map[string]*Session),
		guildLocks: make(map[string]*sync.Mutex),
	}
}

// SetTaskGrace changes how long finished tasks stay listed.
func (m *Manager) SetTaskGrace(d time.Duration) { m.taskGrace = d }

func leaveJob(guildID string) string { return "leave:" + guildID }

// guildLock serializes join, switch and leave for one guild.
func (m *Manager) guildLock(guildID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.guildLocks[guildID]
	if !ok {
		l = &sync.Mutex{}
		m.guildLocks[guildID] = l
	}
	return l
}

func (m *Manager) session(guildID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[guildID]
}

// EnsureJoined returns the guild's connection, joining channelID if there is
// none. A connection to another channel is kept unless forceSwitch is set.
func (m *Manager) EnsureJoined(ctx context.Context, guildID, channelID string, forceSwitch bool) (Connection, error) {
	l := m.guildLock(guildID)
	l.Lock()
	defer l.Unlock()
	return m.ensureJoinedLocked(ctx, guildID, channelID, forceSwitch)
}

func (m *Manager) ensureJoinedLocked(ctx context.Context, guildID, channelID string, forceSwitch bool) (Connection, error) {
	if s := m.session(guildID); s != nil {
		if s.conn.ChannelID() == channelID || !forceSwitch {
			return s.conn, nil
		}
		m.log.Info().Str("guild", guildID).
			Str("from", s.conn.ChannelID()).
			Str("to", channelID).
			Msg("Switching voice channel")
		m.teardown(guildID, s.conn)
	}

	conn, err := m.transport.Join(ctx, guildID, channelID)
	if err != nil {
		return nil, apperr.External("voice.join", "could not join the voice channel", err)
	}

	m.mu.Lock()
	m.sessions[guildID] = &Session{GuildID: guildID, conn: conn}
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.SetVoiceSessions(n)

	m.log.Info().Str("guild", guildID).Str("channel", channelID).Msg("Joined voice channel")
	go m.watch(guildID, conn)
	return conn, nil
}

// watch cleans up after a connection that ended on its own.
func (m *Manager) watch(guildID string, conn Connection) {
	<-conn.Done()

	m.mu.Lock()
	s, ok := m.sessions[guildID]
	if !ok || s.conn != conn {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, guildID)
	tasks := s.tasks
	n := len(m.sessions)
	m.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
	m.jobs.Cancel(leaveJob(guildID))
	metrics.SetVoiceSessions(n)
	m.log.Info().Str("guild", guildID).Msg("Voice connection closed externally")
}

// teardown removes the session holding conn, stops its tasks and destroys
// the connection.
func (m *Manager) teardown(guildID string, conn Connection) {
	m.mu.Lock()
	var tasks []*Task
	if s, ok := m.sessions[guildID]; ok && s.conn == conn {
		delete(m.sessions, guildID)
		tasks = s.tasks
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
	if err := conn.Destroy(); err != nil {
		m.log.Warn().Err(err).Str("guild", guildID).Msg("Failed to destroy voice connection")
	}
	metrics.SetVoiceSessions(n)
}

// PlaySound plays the file in channelID. If the bot already sits in another
// channel it only moves when forceSwitch is set; otherwise the sound plays
// where the bot is.
func (m *Manager) PlaySound(ctx context.Context, guildID, channelID, path string, forceSwitch bool) (*Task, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NotFound("voice.play", "Sound not found.")
		}
		return nil, apperr.IO("voice.play", "could not read sound", err)
	}

	l := m.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	doSwitch := false
	if s := m.session(guildID); s != nil {
		doSwitch = s.conn.ChannelID() != channelID && forceSwitch
	}

	conn, err := m.ensureJoinedLocked(ctx, guildID, channelID, doSwitch)
	if err != nil {
		return nil, err
	}

	src, err := m.decoder.Open(ctx, path)
	if err != nil {
		return nil, apperr.External("voice.play", "could not decode sound", err)
	}

	task := newTask(uuid.NewString(), path, src, m.onTaskState(guildID))

	m.mu.Lock()
	s, ok := m.sessions[guildID]
	if !ok || s.conn != conn {
		m.mu.Unlock()
		task.Stop()
		return nil, apperr.External("voice.play", "voice connection closed", errors.New("connection gone"))
	}
	s.tasks = append(s.tasks, task)
	m.mu.Unlock()

	conn.Subscribe(task)
	m.log.Debug().Str("guild", guildID).Str("task", task.ID).Str("path", path).Msg("Playing sound")
	return task, nil
}

func (m *Manager) onTaskState(guildID string) func(*Task, TaskState) {
	return func(t *Task, state TaskState) {
		metrics.ObservePlayback(state.String())
		switch state {
		case TaskIdle:
			m.jobs.After("task:"+t.ID, m.taskGrace, func(context.Context) error {
				m.removeTask(guildID, t)
				return nil
			})
		case TaskError:
			m.log.Warn().Err(t.Err()).Str("guild", guildID).Str("task", t.ID).Msg("Playback task failed")
			t.Stop()
			m.removeTask(guildID, t)
		}
	}
}

func (m *Manager) removeTask(guildID string, t *Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[guildID]; ok {
		s.tasks = slices.DeleteFunc(s.tasks, func(x *Task) bool { return x == t })
	}
}

// LeaveIfAlone disconnects after delay if no non-bot member remains in the
// bot's channel. Calling it again before the delay restarts the timer.
func (m *Manager) LeaveIfAlone(guildID string, delay time.Duration) {
	m.jobs.After(leaveJob(guildID), delay, func(context.Context) error {
		return m.leaveIfAloneNow(guildID)
	})
}

func (m *Manager) leaveIfAloneNow(guildID string) error {
	l := m.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	s := m.session(guildID)
	if s == nil {
		return nil
	}
	n, err := m.occupancy.NonBotMembers(guildID, s.conn.ChannelID())
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	m.log.Info().Str("guild", guildID).Str("channel", s.conn.ChannelID()).Msg("Leaving empty voice channel")
	m.teardown(guildID, s.conn)
	return nil
}

// Leave disconnects from the guild unconditionally.
func (m *Manager) Leave(guildID string) {
	l := m.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	if s := m.session(guildID); s != nil {
		m.teardown(guildID, s.conn)
	}
	m.jobs.Cancel(leaveJob(guildID))
}

func (m *Manager) IsConnected(guildID string) bool {
	return m.session(guildID) != nil
}

// ChannelID returns the channel the bot is connected to in the guild.
func (m *Manager) ChannelID(guildID string) (string, bool) {
	s := m.session(guildID)
	if s == nil {
		return "", false
	}
	return s.conn.ChannelID(), true
}

// IsAlone reports whether the bot's channel has no non-bot members. It is
// false when the bot is not connected.
func (m *Manager) IsAlone(guildID string) bool {
	s := m.session(guildID)
	if s == nil {
		return false
	}
	n, err := m.occupancy.NonBotMembers(guildID, s.conn.ChannelID())
	if err != nil {
		m.log.Warn().Err(err).Str("guild", guildID).Msg("Failed to count voice members")
		return false
	}
	return n == 0
}

// Tasks returns the guild's tasks that have not been removed yet.
func (m *Manager) Tasks(guildID string) []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[guildID]; ok {
		return slices.Clone(s.tasks)
	}
	return nil
}

// Shutdown disconnects every guild.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	guilds := make([]string, 0, len(m.sessions))
	for g := range m.sessions {
		guilds = append(guilds, g)
	}
	m.mu.Unlock()

	for _, g := range guilds {
		m.Leave(g)
	}
}
