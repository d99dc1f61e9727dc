package voice

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"
)

type TaskState int

const (
	TaskPlaying TaskState = iota
	TaskIdle
	TaskError
)

func (s TaskState) String() string {
	switch s {
	case TaskPlaying:
		return "playing"
	case TaskIdle:
		return "idle"
	case TaskError:
		return "error"
	}
	return "unknown"
}

// frameBuffer is how many decoded frames a task keeps ahead of playback.
const frameBuffer = 5

type frame struct {
	pcm  []int16
	last bool
}

// Task is one sound being played from its own decoder. A goroutine per task
// decodes ahead into a small buffer, so a slow decoder only starves its own
// task.
type Task struct {
	ID   string
	Path string

	src       io.ReadCloser
	frames    chan frame
	quit      chan struct{}
	readErr   error // written by decode before frames is closed
	closeOnce sync.Once

	mu      sync.Mutex
	state   TaskState
	stopped bool
	err     error
	onState func(*Task, TaskState)
}

func newTask(id, path string, src io.ReadCloser, onState func(*Task, TaskState)) *Task {
	t := &Task{
		ID:      id,
		Path:    path,
		src:     src,
		frames:  make(chan frame, frameBuffer),
		quit:    make(chan struct{}),
		state:   TaskPlaying,
		onState: onState,
	}
	go t.decode()
	return t
}

func (t *Task) decode() {
	defer close(t.frames)
	defer t.closeSource()

	buf := make([]byte, FrameSamples*2)
	for {
		var f frame
		n, err := io.ReadFull(t.src, buf)
		switch {
		case err == nil:
		case errors.Is(err, io.ErrUnexpectedEOF):
			clear(buf[n:])
			f.last = true
		case errors.Is(err, io.EOF):
			return
		default:
			t.readErr = err
			return
		}

		f.pcm = make([]int16, FrameSamples)
		decodePCM(f.pcm, buf)
		select {
		case t.frames <- f:
		case <-t.quit:
			return
		}
		if f.last {
			return
		}
	}
}

func (t *Task) closeSource() {
	t.closeOnce.Do(func() { t.src.Close() })
}

func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the error that ended the task, if any.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// ReadFrame blocks until the next frame is decoded into pcm. A short final
// frame is padded with silence and the following call returns io.EOF. A
// decode error moves the task to the error state, unless the task was
// stopped meanwhile.
func (t *Task) ReadFrame(pcm []int16) error {
	if !t.playing() {
		return io.EOF
	}
	f, ok := <-t.frames
	return t.consume(pcm, f, ok)
}

// NextFrame is ReadFrame without waiting: ready is false when the decoder
// has not produced a frame yet.
func (t *Task) NextFrame(pcm []int16) (ready bool, err error) {
	if !t.playing() {
		return false, io.EOF
	}
	select {
	case f, ok := <-t.frames:
		if err := t.consume(pcm, f, ok); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

func (t *Task) playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && t.state == TaskPlaying
}

func (t *Task) consume(pcm []int16, f frame, ok bool) error {
	if !ok {
		if t.readErr != nil {
			if t.finish(TaskError, t.readErr) {
				return t.readErr
			}
			return io.EOF
		}
		t.finish(TaskIdle, nil)
		return io.EOF
	}
	copy(pcm, f.pcm)
	if f.last {
		t.finish(TaskIdle, nil)
	}
	return nil
}

// finish records the final state once. It reports false if the task was
// stopped or already finished.
func (t *Task) finish(state TaskState, err error) bool {
	t.mu.Lock()
	if t.stopped || t.state != TaskPlaying {
		t.mu.Unlock()
		return false
	}
	t.state = state
	t.err = err
	cb := t.onState
	t.mu.Unlock()

	t.closeSource()
	if cb != nil {
		go cb(t, state)
	}
	return true
}

// Stop ends playback and releases the decoder. Later read errors are ignored.
func (t *Task) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	if t.state == TaskPlaying {
		t.state = TaskIdle
	}
	t.mu.Unlock()

	close(t.quit)
	t.closeSource()
}

func decodePCM(dst []int16, src []byte) {
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(src[i*2 : i*2+2]))
	}
}
