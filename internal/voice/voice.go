// Package voice keeps at most one voice connection per guild and plays
// sound files on it. Several sounds may play at once; their PCM frames are
// summed before encoding.
package voice

import (
	"context"
	"io"
	"time"
)

const (
	Channels   = 2
	SampleRate = 48000
	FrameSize  = 960 // 20ms at 48kHz

	// FrameSamples is the interleaved sample count of one frame.
	FrameSamples = FrameSize * Channels
)

// Transport opens voice connections.
type Transport interface {
	Join(ctx context.Context, guildID, channelID string) (Connection, error)
}

// Connection is one joined voice channel. Done is closed when the connection
// ends, whether through Destroy or from the remote side.
type Connection interface {
	ChannelID() string
	Subscribe(t *Task)
	Destroy() error
	Done() <-chan struct{}
}

// Decoder turns a sound file into s16le 48kHz stereo PCM.
type Decoder interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Occupancy counts the non-bot members in a voice channel.
type Occupancy interface {
	NonBotMembers(guildID, channelID string) (int, error)
}

// Scheduler runs named fire-once jobs; registering a name again replaces it.
type Scheduler interface {
	After(name string, delay time.Duration, fn func(ctx context.Context) error)
	Cancel(name string) bool
}
