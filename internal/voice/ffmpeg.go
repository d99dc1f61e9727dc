package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// stderrLimit caps how much ffmpeg diagnostic output is kept for errors.
const stderrLimit = 1024

// FFmpegDecoder decodes files with an ffmpeg subprocess, one per Open.
type FFmpegDecoder struct {
	Binary string // defaults to "ffmpeg"
}

func (d FFmpegDecoder) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bin := d.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.Command(bin,
		"-i", path,
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "warning",
		"pipe:1",
	)
	stderr := &tailBuffer{}
	cmd.Stderr = stderr

	reader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("command start error: %w", err)
	}

	return &processStream{stdout: reader, cmd: cmd, stderr: stderr}, nil
}

// processStream reads ffmpeg's output. At EOF it reaps the process and turns
// a failed exit into a read error.
type processStream struct {
	stdout io.ReadCloser
	cmd    *exec.Cmd
	stderr *tailBuffer

	once    sync.Once
	waitErr error
}

func (p *processStream) Read(b []byte) (int, error) {
	n, err := p.stdout.Read(b)
	if errors.Is(err, io.EOF) {
		if werr := p.wait(); werr != nil {
			if msg := p.stderr.String(); msg != "" {
				return n, fmt.Errorf("ffmpeg failed: %w: %s", werr, msg)
			}
			return n, fmt.Errorf("ffmpeg failed: %w", werr)
		}
	}
	return n, err
}

func (p *processStream) wait() error {
	p.once.Do(func() { p.waitErr = p.cmd.Wait() })
	return p.waitErr
}

// Close kills the process and reaps it.
func (p *processStream) Close() error {
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.wait()
	return nil
}

// tailBuffer keeps the last stderrLimit bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - stderrLimit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
