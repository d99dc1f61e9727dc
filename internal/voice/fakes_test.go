package voice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	channel string

	mu        sync.Mutex
	tasks     []*Task
	destroyed bool
	done      chan struct{}
	once      sync.Once
}

func newFakeConn(channel string) *fakeConn {
	return &fakeConn{channel: channel, done: make(chan struct{})}
}

func (c *fakeConn) ChannelID() string { return c.channel }

func (c *fakeConn) Subscribe(t *Task) {
	c.mu.Lock()
	c.tasks = append(c.tasks, t)
	c.mu.Unlock()
}

func (c *fakeConn) Destroy() error {
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
	c.close()
	return nil
}

// close simulates the remote side ending the connection.
func (c *fakeConn) close() { c.once.Do(func() { close(c.done) }) }

func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func (c *fakeConn) Subscribed() []*Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Task(nil), c.tasks...)
}

type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (f *fakeTransport) Join(_ context.Context, _, channelID string) (Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := newFakeConn(channelID)
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeTransport) Joins() []*fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeConn(nil), f.conns...)
}

// fakeDecoder serves size bytes of a constant sample per Open. With fail set
// the stream errors on the first read.
type fakeDecoder struct {
	size   int
	sample byte
	err    error
	fail   bool
}

func (d fakeDecoder) Open(context.Context, string) (io.ReadCloser, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.fail {
		return &errReader{served: true}, nil
	}
	return io.NopCloser(bytes.NewReader(bytes.Repeat([]byte{d.sample, 0}, d.size/2))), nil
}

type fakeOccupancy struct {
	mu      sync.Mutex
	members map[string]int
	calls   atomic.Int32
}

func (o *fakeOccupancy) NonBotMembers(_, channelID string) (int, error) {
	o.calls.Add(1)
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.members[channelID], nil
}

func (o *fakeOccupancy) set(channelID string, n int) {
	o.mu.Lock()
	o.members[channelID] = n
	o.mu.Unlock()
}

// errReader fails after returning one full frame.
type errReader struct {
	served bool
	closed atomic.Bool
}

func (r *errReader) Read(p []byte) (int, error) {
	if !r.served {
		r.served = true
		clear(p)
		return len(p), nil
	}
	return 0, errors.New("decode failed")
}

func (r *errReader) Close() error {
	r.closed.Store(true)
	return nil
}

func soundFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boom.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	return path
}
